package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// PrepareImage decodes raw image bytes, downscales so the longer side does
// not exceed maxDim pixels, and re-encodes as PNG for the vision model.
// Images already within bounds are re-encoded without scaling.
func PrepareImage(data []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = 2048
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ocr: decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("ocr: empty image %dx%d", w, h)
	}

	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(max(w, h))
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("ocr: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
