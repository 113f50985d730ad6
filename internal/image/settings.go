package imagepkg

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Settings controls the footer bar and logo placement of one composite.
type Settings struct {
	// FooterColor is the bar color as "#rrggbb" or "#rgb".
	FooterColor string `json:"footerColor"`
	// FooterOpacity is the alpha applied to the bar fill, in [0,1].
	FooterOpacity float64 `json:"footerOpacity"`
	// FooterHeightRatio is the bar height as a fraction of the photo height, in (0,1).
	FooterHeightRatio float64 `json:"footerHeightRatio"`
	// LogoPadding is the inset applied above and below the logo inside the bar, in [0,0.5).
	LogoPadding float64 `json:"logoPadding"`
	// ForceLogoWhite recolors the logo to opaque white, keeping its alpha.
	ForceLogoWhite bool `json:"forceLogoWhite"`
}

// DefaultSettings returns the stock brand style: a deep green bar at 40%
// covering the bottom 15% of the photo.
func DefaultSettings() Settings {
	return Settings{
		FooterColor:       "#1a331a",
		FooterOpacity:     0.4,
		FooterHeightRatio: 0.15,
		LogoPadding:       0.12,
		ForceLogoWhite:    false,
	}
}

// Validate checks every field against its allowed range.
func (s Settings) Validate() error {
	if _, err := ParseHexColor(s.FooterColor); err != nil {
		return fmt.Errorf("footer color: %w", err)
	}
	if !inRange(s.FooterOpacity, 0, 1) {
		return fmt.Errorf("footer opacity must be in [0,1], got %v", s.FooterOpacity)
	}
	if !(s.FooterHeightRatio > 0 && s.FooterHeightRatio < 1) {
		return fmt.Errorf("footer height ratio must be in (0,1), got %v", s.FooterHeightRatio)
	}
	if !(s.LogoPadding >= 0 && s.LogoPadding < 0.5) {
		return fmt.Errorf("logo padding must be in [0,0.5), got %v", s.LogoPadding)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// ParseHexColor parses "#RRGGBB" or the short "#RGB" form into an opaque
// color.NRGBA. The leading '#' is optional.
func ParseHexColor(hex string) (color.NRGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: must be 3 or 6 hex digits", hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
