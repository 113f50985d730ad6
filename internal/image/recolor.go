package imagepkg

import (
	"image"

	"github.com/disintegration/imaging"
)

// ForceWhite returns a copy of src with every color channel set to full
// intensity. Alpha is copied unchanged, so the silhouette is kept exactly.
func ForceWhite(src image.Image) *image.NRGBA {
	dst := imaging.Clone(src)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = 0xff
		dst.Pix[i+1] = 0xff
		dst.Pix[i+2] = 0xff
	}
	return dst
}
