// Package config loads brandbar.toml.
//
// A missing file yields DefaultConfig. Every value is range checked on load;
// out-of-range settings are rejected rather than clamped.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/youruser/brandbar/assets"
	imagepkg "github.com/youruser/brandbar/internal/image"
	"github.com/youruser/brandbar/internal/util"
)

// FileName is the default config file name.
const FileName = "brandbar.toml"

// CurrentVersion is the schema version written by Save.
const CurrentVersion = 1

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

type Config struct {
	Version int           `toml:"version"`
	Footer  FooterConfig  `toml:"footer"`
	Logo    LogoConfig    `toml:"logo"`
	Output  OutputConfig  `toml:"output"`
	Preview PreviewConfig `toml:"preview"`
	Server  ServerConfig  `toml:"server"`
	Fetch   FetchConfig   `toml:"fetch"`
	Log     LogConfig     `toml:"log"`
}

// FooterConfig holds the bar style.
type FooterConfig struct {
	// Color is the bar fill as "#rrggbb".
	Color string `toml:"color"`
	// Opacity is the bar alpha in [0,1].
	Opacity float64 `toml:"opacity"`
	// HeightRatio is the bar height as a fraction of the photo, in (0,1).
	HeightRatio float64 `toml:"height_ratio"`
}

// LogoConfig selects the logo and how it sits in the bar.
type LogoConfig struct {
	// Source is a file path, URL, data URI or "builtin:<id>". Empty disables the logo.
	Source string `toml:"source"`
	// Padding is the inset above and below the logo, in [0,0.5).
	Padding float64 `toml:"padding"`
	// ForceWhite recolors the logo to white.
	ForceWhite bool `toml:"force_white"`
	// SVGHeight is the raster height for vector logos.
	SVGHeight int `toml:"svg_height"`
}

type OutputConfig struct {
	Dir            string `toml:"dir"`
	FilenamePrefix string `toml:"filename_prefix"`
}

type PreviewConfig struct {
	// DebounceMS delays a run after an input change so bursts coalesce.
	DebounceMS int `toml:"debounce_ms"`
}

type ServerConfig struct {
	Addr              string `toml:"addr"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
	MaxUploadMB       int    `toml:"max_upload_mb"`
	// PublicURL prefixes links handed out in QR codes; empty uses the request host.
	PublicURL string `toml:"public_url,omitempty"`
}

type FetchConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	RetryMax       int `toml:"retry_max"`
}

type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `toml:"level"`
	// File is the log path; empty logs to stderr.
	File      string `toml:"file,omitempty"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

func DefaultConfig() *Config {
	s := imagepkg.DefaultSettings()
	return &Config{
		Version: CurrentVersion,
		Footer: FooterConfig{
			Color:       s.FooterColor,
			Opacity:     s.FooterOpacity,
			HeightRatio: s.FooterHeightRatio,
		},
		Logo: LogoConfig{
			Source:     imagepkg.BuiltinPrefix + assets.DefaultLogoID,
			Padding:    s.LogoPadding,
			ForceWhite: s.ForceLogoWhite,
			SVGHeight:  imagepkg.DefaultSVGHeight,
		},
		Output: OutputConfig{
			Dir:            "exports",
			FilenamePrefix: "oright-pro",
		},
		Preview: PreviewConfig{DebounceMS: 100},
		Server: ServerConfig{
			Addr:              ":8080",
			SessionTTLMinutes: 30,
			MaxUploadMB:       25,
		},
		Fetch: FetchConfig{TimeoutSeconds: 10, RetryMax: 2},
		Log:   LogConfig{Level: "info", MaxSizeMB: 10},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads path. A missing file returns DefaultConfig; keys absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as TOML, atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("config version %d is newer than supported version %d", c.Version, CurrentVersion)
	}
	if err := c.Settings().Validate(); err != nil {
		return err
	}
	if c.Logo.Source != "" {
		if _, err := imagepkg.ParseSource(c.Logo.Source); err != nil {
			return fmt.Errorf("logo.source: %w", err)
		}
	}
	if c.Logo.SVGHeight <= 0 {
		return fmt.Errorf("logo.svg_height must be > 0, got %d", c.Logo.SVGHeight)
	}
	if c.Preview.DebounceMS < 0 {
		return fmt.Errorf("preview.debounce_ms must be >= 0, got %d", c.Preview.DebounceMS)
	}
	if c.Server.SessionTTLMinutes <= 0 {
		return fmt.Errorf("server.session_ttl_minutes must be > 0, got %d", c.Server.SessionTTLMinutes)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be > 0, got %d", c.Server.MaxUploadMB)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0, got %d", c.Fetch.TimeoutSeconds)
	}
	if c.Fetch.RetryMax < 0 {
		return fmt.Errorf("fetch.retry_max must be >= 0, got %d", c.Fetch.RetryMax)
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

// ///////////////////////////////////////////////
// Accessors
// ///////////////////////////////////////////////

// Settings returns the compositor settings described by the config.
func (c *Config) Settings() imagepkg.Settings {
	return imagepkg.Settings{
		FooterColor:       c.Footer.Color,
		FooterOpacity:     c.Footer.Opacity,
		FooterHeightRatio: c.Footer.HeightRatio,
		LogoPadding:       c.Logo.Padding,
		ForceLogoWhite:    c.Logo.ForceWhite,
	}
}

// LogoSource returns the configured logo, or nil when the logo is disabled.
func (c *Config) LogoSource() *imagepkg.Source {
	if c.Logo.Source == "" {
		return nil
	}
	src, err := imagepkg.ParseSource(c.Logo.Source)
	if err != nil {
		return nil
	}
	return &src
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Preview.DebounceMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}
