// Package config holds recorderd's configuration: static YAML settings
// read at startup, and a SQLite-backed settings store that can be
// hot-reloaded without restarting the process.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnorman/domcorder/browserdom/rodpage"
)

// Config is recorderd's top-level configuration.
type Config struct {
	Addr       string        `yaml:"addr"`
	LogLevel   string        `yaml:"log_level"`
	SettingsDB string        `yaml:"settings_db"`
	Browser    BrowserConfig `yaml:"browser"`
	Recorder   RecorderConfig `yaml:"recorder"`
}

// BrowserConfig controls the Chrome lifecycle rodpage.Manager uses for
// every tab opened by POST /sessions.
type BrowserConfig struct {
	Remote          string        `yaml:"remote"`
	MemoryLimit     int64         `yaml:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
	Stealth         string        `yaml:"stealth"` // headless | headful
	XvfbDisplay     string        `yaml:"xvfb_display"`
}

// RecorderConfig supplies the per-session defaults passed to
// recorder.Config when a new recording session starts.
type RecorderConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	DiffDebounce       time.Duration `yaml:"diff_debounce"`
	StylesheetDebounce time.Duration `yaml:"stylesheet_debounce"`
	FetchConcurrency   int           `yaml:"fetch_concurrency"`
}

// Default returns a Config with every field at its default value, for
// callers running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file and applies defaults for any
// zero-valued field.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":7070"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SettingsDB == "" {
		c.SettingsDB = "recorderd.db"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Recorder.HeartbeatInterval <= 0 {
		c.Recorder.HeartbeatInterval = 30 * time.Second
	}
	if c.Recorder.DiffDebounce <= 0 {
		c.Recorder.DiffDebounce = 500 * time.Millisecond
	}
	if c.Recorder.StylesheetDebounce <= 0 {
		c.Recorder.StylesheetDebounce = 250 * time.Millisecond
	}
	if c.Recorder.FetchConcurrency <= 0 {
		c.Recorder.FetchConcurrency = 6
	}
}

// StealthLevel resolves the configured stealth string to the level
// rodpage.Config expects, defaulting to headless on an unrecognized value.
func (b BrowserConfig) StealthLevel() rodpage.StealthLevel {
	switch b.Stealth {
	case "headful":
		return rodpage.LevelHeadful
	default:
		return rodpage.LevelHeadless
	}
}
