package imagepkg

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Composite draws main at its native size, blends the footer bar over the
// bottom rows and, when logo is non-nil, centers the scaled logo in the bar.
// Neither input is modified.
func Composite(main, logo *Bitmap, s Settings) (*Bitmap, Geometry, error) {
	if main == nil {
		return nil, Geometry{}, &CompositeError{Reason: "no main image"}
	}
	fill, err := ParseHexColor(s.FooterColor)
	if err != nil {
		return nil, Geometry{}, &CompositeError{Reason: "footer color", Err: err}
	}
	for _, v := range []float64{s.FooterOpacity, s.FooterHeightRatio, s.LogoPadding} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, Geometry{}, &CompositeError{Reason: "settings contain a non-finite value"}
		}
	}

	g := FooterGeometry(main.Width(), main.Height(), s.FooterHeightRatio)
	canvas := imaging.Clone(main.pix)

	if band := g.FooterRect(); !band.Empty() {
		bar := imaging.New(band.Dx(), band.Dy(), fill)
		canvas = imaging.Overlay(canvas, bar, band.Min, s.FooterOpacity)
	}

	if logo != nil {
		p, err := PlaceLogo(g, logo.Width(), logo.Height(), s.LogoPadding)
		if err != nil {
			return nil, Geometry{}, err
		}
		g.Logo = &p

		var src image.Image = logo.pix
		if s.ForceLogoWhite {
			src = ForceWhite(src)
		}
		// A logo snapped to less than one pixel has nothing to draw.
		if r := p.Rect(); r.Dx() > 0 && r.Dy() > 0 {
			scaled := imaging.Resize(src, r.Dx(), r.Dy(), imaging.Lanczos)
			canvas = imaging.Overlay(canvas, scaled, r.Min, 1.0)
		}
	}

	return &Bitmap{pix: canvas}, g, nil
}
