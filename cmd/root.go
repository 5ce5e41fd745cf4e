// ABOUTME: Root command for the metronome CLI
// ABOUTME: Loads configuration and binds flags before any subcommand runs
package cmd

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/resonate-metronome/internal/config"
	"github.com/Resonate-Protocol/resonate-metronome/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgPath string
	v       *viper.Viper
	cfg     config.Config
)

// flagKeys maps config keys to the flags that override them
var flagKeys = map[string]string{
	"bpm":              "bpm",
	"volume":           "volume",
	"backend":          "backend",
	"log_file":         "log-file",
	"no_tui":           "no-tui",
	"debug":            "debug",
	"bridge.enabled":   "bridge",
	"bridge.port":      "bridge-port",
	"bridge.mdns":      "mdns",
	"bridge.name":      "name",
	"media.assets_dir": "assets",
}

var rootCmd = &cobra.Command{
	Use:     "metronome",
	Short:   "A real-time tick/tock metronome",
	Long:    `Plays alternating tick and tock clicks at a steady, adjustable tempo. Runs with a terminal UI by default, and can expose a WebSocket bridge so other apps can drive it.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd.Flags())
	},
	RunE:          runMetronome,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $XDG_CONFIG_HOME/metronome/config.yaml)")

	d := config.Defaults()
	f := rootCmd.Flags()
	f.Float64("bpm", d.BPM, "tempo in beats per minute (40-240)")
	f.Float64("volume", d.Volume, "click volume (0-1)")
	f.String("backend", d.Backend, "audio output backend (oto, null)")
	f.String("log-file", d.LogFile, "log file path")
	f.Bool("no-tui", d.NoTUI, "disable TUI, use streaming logs instead")
	f.Bool("debug", d.Debug, "log every beat")
	f.Bool("bridge", d.Bridge.Enabled, "serve the WebSocket bridge")
	f.Int("bridge-port", d.Bridge.Port, "bridge port")
	f.Bool("mdns", d.Bridge.MDNS, "advertise the bridge over mDNS")
	f.String("name", d.Bridge.Name, "bridge name (default: hostname-metronome)")
	f.String("assets", d.Media.AssetsDir, "directory of bundled sounds")
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig builds the viper instance, layers flags on top and validates
func loadConfig(flags *pflag.FlagSet) error {
	var err error
	v, err = config.New(cfgPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, flags); err != nil {
		return err
	}
	cfg, err = config.Load(v)
	return err
}

// bindFlags binds every known flag that flags defines
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}
