package imagepkg

import (
	"bytes"
	"errors"

	"github.com/disintegration/imaging"
)

// JPEGQuality is the fixed output quality (0.95 on a 0..1 scale).
const JPEGQuality = 95

// Encode serializes b as a JPEG at JPEGQuality.
func Encode(b *Bitmap) ([]byte, error) {
	return encode(b, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}

// EncodePNG serializes b losslessly; used for logo previews.
func EncodePNG(b *Bitmap) ([]byte, error) {
	return encode(b, imaging.PNG)
}

func encode(b *Bitmap, format imaging.Format, opts ...imaging.EncodeOption) ([]byte, error) {
	if b == nil {
		return nil, &EncodeError{Err: errors.New("nil bitmap")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.pix, format, opts...); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}
