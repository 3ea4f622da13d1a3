package pdfdoc

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// OutlineEntry is one bookmark in the document outline.
type OutlineEntry struct {
	Title    string
	Level    int // 1 = top level
	PageFrom int // 1-based start page
}

// Outline returns the document outline flattened depth-first, levels
// starting at 1. Returns nil when the PDF carries no bookmarks.
func (d *Document) Outline() []OutlineEntry {
	d.mu.Lock()
	bms, err := pdfcpu.Bookmarks(d.ctx)
	d.mu.Unlock()
	if err != nil || len(bms) == 0 {
		return nil
	}

	var entries []OutlineEntry
	flattenBookmarks(bms, 1, &entries)
	return entries
}

// OutlineEntryCount returns the total number of outline entries across all
// levels.
func (d *Document) OutlineEntryCount() int {
	return len(d.Outline())
}

func flattenBookmarks(bms []pdfcpu.Bookmark, level int, out *[]OutlineEntry) {
	for _, bm := range bms {
		title := strings.TrimSpace(bm.Title)
		if title != "" && bm.PageFrom > 0 {
			*out = append(*out, OutlineEntry{
				Title:    title,
				Level:    level,
				PageFrom: bm.PageFrom,
			})
		}
		if len(bm.Kids) > 0 {
			flattenBookmarks(bm.Kids, level+1, out)
		}
	}
}
