// ABOUTME: Configuration loading for the metronome
// ABOUTME: Defaults, YAML file, METRONOME_* env and flags merged through viper
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides (METRONOME_BPM, METRONOME_BRIDGE_PORT)
const EnvPrefix = "METRONOME"

// Config holds all configuration options
type Config struct {
	BPM     float64      `mapstructure:"bpm"`
	Volume  float64      `mapstructure:"volume"`
	Backend string       `mapstructure:"backend"`
	LogFile string       `mapstructure:"log_file"`
	NoTUI   bool         `mapstructure:"no_tui"`
	Debug   bool         `mapstructure:"debug"`
	Bridge  BridgeConfig `mapstructure:"bridge"`
	Media   MediaConfig  `mapstructure:"media"`
}

// BridgeConfig controls the websocket control surface
type BridgeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	MDNS    bool   `mapstructure:"mdns"`
	Name    string `mapstructure:"name"`
}

// MediaConfig controls one-shot media playback
type MediaConfig struct {
	AssetsDir string        `mapstructure:"assets_dir"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		BPM:     metronome.DefaultBPM,
		Volume:  metronome.DefaultVolume,
		Backend: "oto",
		LogFile: "metronome.log",
		Bridge: BridgeConfig{
			Port: 8928,
			MDNS: true,
		},
		Media: MediaConfig{
			AssetsDir: "assets",
			CacheTTL:  10 * time.Minute,
		},
	}
}

// SetDefaults registers Defaults() on v
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("bpm", d.BPM)
	v.SetDefault("volume", d.Volume)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("no_tui", d.NoTUI)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("bridge.enabled", d.Bridge.Enabled)
	v.SetDefault("bridge.port", d.Bridge.Port)
	v.SetDefault("bridge.mdns", d.Bridge.MDNS)
	v.SetDefault("bridge.name", d.Bridge.Name)
	v.SetDefault("media.assets_dir", d.Media.AssetsDir)
	v.SetDefault("media.cache_ttl", d.Media.CacheTTL)
}

// DefaultPath returns $XDG_CONFIG_HOME/metronome/config.yaml (or the
// ~/.config equivalent)
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "metronome", "config.yaml")
}

// New returns a viper instance with defaults and env bindings applied.
// An empty path falls back to DefaultPath; a missing default file is not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return v, nil
	}

	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return v, nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return v, nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its allowed range
func (c Config) Validate() error {
	if err := metronome.ValidateBPM(c.BPM); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := metronome.ValidateVolume(c.Volume); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch c.Backend {
	case "oto", "null", "memory":
	default:
		return fmt.Errorf("config: unknown backend %q (want oto or null)", c.Backend)
	}

	if c.Bridge.Enabled && (c.Bridge.Port < 1 || c.Bridge.Port > 65535) {
		return fmt.Errorf("config: bridge.port %d out of range", c.Bridge.Port)
	}
	if c.Media.CacheTTL < 0 {
		return fmt.Errorf("config: media.cache_ttl must not be negative")
	}

	return nil
}

// Watch calls onChange with the new configuration whenever the config file
// changes. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, onChange func(Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := Load(v)
		if err != nil {
			log.Printf("Ignoring config change in %s: %v", e.Name, err)
			return
		}

		log.Printf("Config reloaded from %s", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}
