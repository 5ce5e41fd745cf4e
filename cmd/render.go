// ABOUTME: Render command for inspecting the click sounds
// ABOUTME: Writes tick and tock as WAV or raw PCM files
package cmd

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/Resonate-Protocol/resonate-metronome/internal/config"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/encode"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the tick and tock clicks to files",
	Long:  `Renders both clicks at the given volume and writes them as WAV or raw 16-bit little-endian mono PCM at 44100Hz, for inspection in an audio editor.`,
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringP("out", "o", ".", "output directory")
	renderCmd.Flags().StringP("format", "f", "wav", "output format (wav, raw)")
	renderCmd.Flags().Float64("volume", config.Defaults().Volume, "click volume (0-1)")
	renderCmd.Flags().Uint64("seed", 0, "noise seed (0 picks one at random)")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")
	seed, _ := cmd.Flags().GetUint64("seed")

	// --volume is bound to the volume key, so cfg already holds the validated value
	volume := cfg.Volume

	ext := ".wav"
	switch format {
	case "wav":
	case "raw":
		ext = ".pcm"
	default:
		return fmt.Errorf("unknown format %q (want wav or raw)", format)
	}

	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	engine := metronome.NewEngine(metronome.EngineConfig{Rand: rng})
	tick, tock := engine.Clicks(volume)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	for _, click := range []metronome.ClickBuffer{tick, tock} {
		data := click.Bytes()
		if format == "wav" {
			var buf bytes.Buffer
			if err := encode.WriteWAV(&buf, metronome.MonoFormat, data); err != nil {
				return fmt.Errorf("encoding %s: %w", click.Role(), err)
			}
			data = buf.Bytes()
		}

		path := filepath.Join(outDir, click.Role().String()+ext)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d samples, peak %d)\n", path, metronome.ClickSamples, click.Peak())
	}

	return nil
}
