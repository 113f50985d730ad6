package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// isSVG sniffs the head of data for an <svg> root element.
func isSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	head = bytes.TrimSpace(head)
	if len(head) == 0 || head[0] != '<' {
		return false
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// rasterizeSVG renders an SVG document at the given height, keeping the
// viewBox aspect ratio. The raster size is checked against maxPixels before
// anything is allocated.
func rasterizeSVG(data []byte, height int, maxPixels int64) (*Bitmap, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		return nil, errors.New("svg has no usable viewBox")
	}
	fw := math.Round(vw * float64(height) / vh)
	if math.IsNaN(fw) || fw > float64(maxPixels) {
		return nil, fmt.Errorf("svg raster %gx%d exceeds %d pixels", fw, height, maxPixels)
	}
	width := max(1, int(fw))
	if err := checkPixels(width, height, maxPixels); err != nil {
		return nil, err
	}

	icon.SetTarget(0, 0, float64(width), float64(height))
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)
	return NewBitmap(dst)
}
