// ABOUTME: Play command for one-shot media playback
// ABOUTME: Plays a URL, file or bundled asset and waits for it to end
package cmd

import (
	"fmt"

	"github.com/Resonate-Protocol/resonate-metronome/internal/media"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <uri>",
	Short: "Play a sound and wait for it to finish",
	Long:  `Plays an http(s) URL, a file path, or with --resource a bundled asset looked up by name in the assets directory.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolP("resource", "r", false, "treat the argument as an asset name")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	isResource, _ := cmd.Flags().GetBool("resource")
	uri := args[0]

	player := media.NewPlayer(media.Config{
		AssetsDir: cfg.Media.AssetsDir,
		CacheTTL:  cfg.Media.CacheTTL,
	})
	defer player.Stop()

	if err := <-player.Play(cmd.Context(), uri, isResource); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Played %s\n", uri)
	return nil
}
