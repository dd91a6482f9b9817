// CLAUDE:SUMMARY Defines framecap config structs and parses YAML configuration files with defaults.
// Package config handles framecap configuration from a YAML file, a .env
// file and FRAMECAP_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/framecap/internal/compose"
)

// Config is the top-level framecap configuration.
type Config struct {
	Browser BrowserConfig  `yaml:"browser"`
	Capture CaptureConfig  `yaml:"capture"`
	Compose compose.Config `yaml:"compose"`
	Output  OutputConfig   `yaml:"output"`
	Prefs   PrefsConfig    `yaml:"prefs"`
	Server  ServerConfig   `yaml:"server"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	WindowWidth      int           `yaml:"window_width"`
	WindowHeight     int           `yaml:"window_height"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // plain | headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// CaptureConfig controls the capture coordinator and the pixel budget.
type CaptureConfig struct {
	SettleDelay   time.Duration `yaml:"settle_delay"`
	RevertTimeout time.Duration `yaml:"revert_timeout"`
	MaxLongEdge   int           `yaml:"max_long_edge"`
	MaxPixels     int           `yaml:"max_pixels"`
}

// OutputConfig defines where framed screenshots go.
type OutputConfig struct {
	Dir         string   `yaml:"dir"`
	Filename    string   `yaml:"filename"`
	NoClipboard bool     `yaml:"no_clipboard"`
	Stdout      string   `yaml:"stdout"` // "" | json | raw
	Webhooks    []string `yaml:"webhooks"`
}

// PrefsConfig locates the preference database.
type PrefsConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	Timeout      time.Duration `yaml:"timeout"`

	// AllowPrivateURLs lets API callers capture loopback and private hosts.
	AllowPrivateURLs bool `yaml:"allow_private_urls"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file. An empty path returns Default().
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "plain", "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want plain, headless or headful", c.Browser.Stealth)
	}
	switch c.Output.Stdout {
	case "", "json", "raw":
	default:
		return fmt.Errorf("config: output.stdout %q: want json or raw", c.Output.Stdout)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.WindowWidth <= 0 {
		c.Browser.WindowWidth = 1280
	}
	if c.Browser.WindowHeight <= 0 {
		c.Browser.WindowHeight = 800
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Capture.SettleDelay == 0 {
		c.Capture.SettleDelay = 120 * time.Millisecond
	}
	if c.Capture.RevertTimeout <= 0 {
		c.Capture.RevertTimeout = 5 * time.Second
	}
	if c.Capture.MaxLongEdge <= 0 {
		c.Capture.MaxLongEdge = 8192
	}
	if c.Capture.MaxPixels <= 0 {
		c.Capture.MaxPixels = 33554432
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.Filename == "" {
		c.Output.Filename = "aesthetic-screenshot.png"
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = defaultPrefsPath()
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = 60 * time.Second
	}
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "framecap-prefs.db"
	}
	return dir + string(os.PathSeparator) + "framecap" + string(os.PathSeparator) + "prefs.db"
}
