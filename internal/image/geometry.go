package imagepkg

import (
	"image"
	"math"
)

// Geometry describes where the footer bar and logo land on the output canvas.
// Positions are kept unrounded; Rect helpers snap them to whole pixels.
type Geometry struct {
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	FooterY      float64        `json:"footerY"`
	FooterHeight float64        `json:"footerHeight"`
	Logo         *LogoPlacement `json:"logo,omitempty"`
}

// LogoPlacement is the scaled logo box inside the footer bar.
type LogoPlacement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// FooterGeometry computes the bar for a width x height canvas. The ratio is
// used as given; out-of-range values produce a bar that FooterRect clips.
func FooterGeometry(width, height int, ratio float64) Geometry {
	fh := float64(height) * ratio
	return Geometry{
		Width:        width,
		Height:       height,
		FooterHeight: fh,
		FooterY:      float64(height) - fh,
	}
}

// FooterRect returns the pixel rows covered by the bar, clipped to the canvas.
func (g Geometry) FooterRect() image.Rectangle {
	y := int(math.Round(g.FooterY))
	y = max(0, min(y, g.Height))
	return image.Rect(0, y, g.Width, g.Height)
}

// PlaceLogo scales a logoW x logoH logo uniformly to fit the bar height minus
// padding on both sides, and centers it in the bar.
func PlaceLogo(g Geometry, logoW, logoH int, padding float64) (LogoPlacement, error) {
	if logoW <= 0 || logoH <= 0 {
		return LogoPlacement{}, &CompositeError{Reason: "logo has zero width or height"}
	}
	maxH := g.FooterHeight * (1 - 2*padding)
	scale := maxH / float64(logoH)
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return LogoPlacement{}, &CompositeError{Reason: "logo scale factor is not a positive finite number"}
	}
	w := float64(logoW) * scale
	h := float64(logoH) * scale
	return LogoPlacement{
		X:      (float64(g.Width) - w) / 2,
		Y:      g.FooterY + (g.FooterHeight-h)/2,
		Width:  w,
		Height: h,
		Scale:  scale,
	}, nil
}

// Rect snaps the placement to whole pixels.
func (p LogoPlacement) Rect() image.Rectangle {
	x := int(math.Round(p.X))
	y := int(math.Round(p.Y))
	return image.Rect(x, y, x+int(math.Round(p.Width)), y+int(math.Round(p.Height)))
}
