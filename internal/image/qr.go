package imagepkg

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QR code edge length bounds, in pixels.
const (
	MinQRSize = 64
	MaxQRSize = 1024
)

// GenerateQRPNG returns PNG bytes of a QR code for text, used to hand a
// download link to another device. size is clamped to [MinQRSize, MaxQRSize].
func GenerateQRPNG(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, errors.New("qr: empty text")
	}
	size = max(MinQRSize, min(size, MaxQRSize))
	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}
	return png, nil
}
