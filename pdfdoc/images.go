package pdfdoc

import (
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// PageImage is one embedded image stream extracted from a page.
type PageImage struct {
	Data     []byte
	FileType string // "png", "jpg", "tiff", ...
}

// PageImageCount returns the number of image XObjects referenced by a page.
func (d *Document) PageImageCount(pageNr int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Optimize == nil {
		return 0
	}
	return len(pdfcpu.ImageObjNrs(d.ctx, pageNr))
}

// LargestPageImage extracts the biggest image stream on a page. For scanned
// documents this is the page scan itself, which is what the OCR fallback
// needs. Returns an error when the page carries no extractable image.
func (d *Document) LargestPageImage(pageNr int) (*PageImage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	imgs, err := pdfcpu.ExtractPageImages(d.ctx, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: extract images page %d: %w", pageNr, err)
	}
	if len(imgs) == 0 {
		return nil, fmt.Errorf("pdfdoc: page %d has no image streams", pageNr)
	}

	var best *PageImage
	for _, img := range imgs {
		data, err := io.ReadAll(img)
		if err != nil || len(data) == 0 {
			continue
		}
		if best == nil || len(data) > len(best.Data) {
			best = &PageImage{Data: data, FileType: img.FileType}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("pdfdoc: page %d image streams unreadable", pageNr)
	}
	return best, nil
}
