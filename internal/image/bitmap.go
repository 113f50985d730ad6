package imagepkg

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// Bitmap is a decoded raster with known pixel dimensions. Once built its
// pixels are never modified; every operation that changes pixels returns a
// new Bitmap.
type Bitmap struct {
	pix *image.NRGBA
}

// NewBitmap copies img into a Bitmap anchored at the origin.
func NewBitmap(img image.Image) (*Bitmap, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if img.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}
	return &Bitmap{pix: imaging.Clone(img)}, nil
}

// Width returns the width in pixels.
func (b *Bitmap) Width() int { return b.pix.Rect.Dx() }

// Height returns the height in pixels.
func (b *Bitmap) Height() int { return b.pix.Rect.Dy() }

// Image exposes the pixels for reading. Callers must not modify it.
func (b *Bitmap) Image() image.Image { return b.pix }
