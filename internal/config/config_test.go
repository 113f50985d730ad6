package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	imagepkg "github.com/youruser/brandbar/internal/image"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Settings() != imagepkg.DefaultSettings() {
		t.Errorf("Settings = %+v, want defaults", cfg.Settings())
	}
	if cfg.Logo.Source != "builtin:oright-pro-vertical" {
		t.Errorf("Logo.Source = %q", cfg.Logo.Source)
	}
	if cfg.Debounce() != 100*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Debounce())
	}
}

func TestLoad_OverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
[footer]
color = "#000000"
opacity = 0.8

[logo]
source = "logos/brand.png"
force_white = true

[server]
addr = ":9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := cfg.Settings()
	if s.FooterColor != "#000000" || s.FooterOpacity != 0.8 || !s.ForceLogoWhite {
		t.Errorf("Settings = %+v", s)
	}
	if s.FooterHeightRatio != 0.15 || s.LogoPadding != 0.12 {
		t.Errorf("unset values lost their defaults: %+v", s)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.SessionTTLMinutes != 30 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	src := cfg.LogoSource()
	if src == nil || src.Kind != imagepkg.KindFile || src.Ref != "logos/brand.png" {
		t.Errorf("LogoSource = %+v", src)
	}
	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
}

func TestLoad_EmptyLogoDisablesLogo(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[logo]\nsource = \"\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogoSource() != nil {
		t.Errorf("LogoSource = %+v, want nil", cfg.LogoSource())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"syntax", "[footer\ncolor = 1", "parse config"},
		{"opacity", "[footer]\nopacity = 1.5", "opacity"},
		{"ratio", "[footer]\nheight_ratio = 0", "height ratio"},
		{"padding", "[logo]\npadding = 0.5", "padding"},
		{"color", "[footer]\ncolor = \"#12\"", "color"},
		{"logo data uri", "[logo]\nsource = \"data:image/png;base64\"", "logo.source"},
		{"version", "version = 99", "newer"},
		{"debounce", "[preview]\ndebounce_ms = -1", "debounce_ms"},
		{"log level", "[log]\nlevel = \"loud\"", "log.level"},
		{"upload", "[server]\nmax_upload_mb = 0", "max_upload_mb"},
		{"retries", "[fetch]\nretry_max = -2", "retry_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Footer.Color = "#336699"
	cfg.Logo.Source = "https://cdn.example.com/logo.svg"
	cfg.Server.PublicURL = "https://brand.example.com"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestAccessors(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SessionTTL() != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL())
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout())
	}
	if cfg.MaxUploadBytes() != 25<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}
