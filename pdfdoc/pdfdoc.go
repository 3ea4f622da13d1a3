// Package pdfdoc wraps pdfcpu with a page-oriented view of a PDF document.
//
// A Document exposes page count, the hierarchical outline (bookmarks),
// per-page text extraction under three strategies of increasing
// aggressiveness, per-page font-size signals, and access to embedded image
// streams. All parsing is pure Go, CGO_ENABLED=0 compatible.
//
// pdfcpu's model.Context is not safe for concurrent random page access, so
// every page-level method serialises on an internal mutex. Callers running
// page work in parallel share one Document without further coordination.
package pdfdoc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Strategy selects how page text is pulled out of the content stream.
type Strategy int

const (
	// StrategyLayout walks text operators (Tj, TJ, ', Td, T*) preserving
	// line and word breaks. The primary strategy.
	StrategyLayout Strategy = iota
	// StrategyBlocks extracts per BT..ET text block, one block per line.
	StrategyBlocks
	// StrategyGlyphs sweeps the raw stream for string literals and hex
	// strings regardless of operator context. Last structural resort.
	StrategyGlyphs
)

// String returns the strategy name for logging.
func (s Strategy) String() string {
	switch s {
	case StrategyLayout:
		return "layout"
	case StrategyBlocks:
		return "blocks"
	case StrategyGlyphs:
		return "glyphs"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Document is an opened PDF.
type Document struct {
	path string

	mu  sync.Mutex
	ctx *model.Context
}

// Open reads, validates, and optimizes the PDF at path.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: open %s: %w", path, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: read %s: %w", path, err)
	}

	return &Document{path: path, ctx: ctx}, nil
}

// Path returns the source file path.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx.PageCount
}

// PageText extracts text from page pageNr (1-based) using the given
// strategy. It never fails: unreadable content streams yield "".
func (d *Document) PageText(pageNr int, strat Strategy) string {
	data := d.pageContent(pageNr)
	if len(data) == 0 {
		return ""
	}
	switch strat {
	case StrategyBlocks:
		return extractBlocks(data)
	case StrategyGlyphs:
		return extractGlyphs(data)
	default:
		return extractLayout(data)
	}
}

// SampleText concatenates the layout extraction of up to maxPages leading
// pages. Classification heuristics run over this sample.
func (d *Document) SampleText(maxPages int) string {
	n := d.PageCount()
	if n > maxPages {
		n = maxPages
	}
	var sb strings.Builder
	for pageNr := 1; pageNr <= n; pageNr++ {
		if t := d.PageText(pageNr, StrategyLayout); t != "" {
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// FirstLines returns up to n non-empty leading lines of a page's layout
// extraction. Used for chapter-heading pattern scans.
func (d *Document) FirstLines(pageNr, n int) []string {
	text := d.PageText(pageNr, StrategyLayout)
	if text == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= n {
			break
		}
	}
	return lines
}

// FontSizes returns every font size set by a Tf operator on the page.
func (d *Document) FontSizes(pageNr int) []float64 {
	data := d.pageContent(pageNr)
	if len(data) == 0 {
		return nil
	}
	return scanFontSizes(data)
}

// TitleGuess derives a document title: the first non-empty line of the
// first pages with extractable text, else the base filename.
func (d *Document) TitleGuess() string {
	pages := d.PageCount()
	if pages > 5 {
		pages = 5
	}
	for pageNr := 1; pageNr <= pages; pageNr++ {
		for _, line := range d.FirstLines(pageNr, 1) {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	name := filepath.Base(d.path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// pageContent reads the raw content stream of a page under the lock.
func (d *Document) pageContent(pageNr int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pageNr < 1 || pageNr > d.ctx.PageCount {
		return nil
	}
	r, err := pdfcpu.ExtractPageContent(d.ctx, pageNr)
	if err != nil || r == nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return data
}
