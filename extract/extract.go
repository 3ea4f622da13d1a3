// Package extract turns PDF pages into clean text.
//
// Per page it runs an escalating cascade: the layout strategy first, then
// block-level, then a raw glyph sweep, each accepted as soon as its
// corruption ratio (share of U+FFFD replacement characters) stays at or
// below the threshold. When every structural strategy is too corrupted and
// a vision OCR client is configured, the page's scan image goes to the
// model; OCR output below a minimum length is discarded in favour of the
// least-corrupted structural attempt. Nothing in the cascade raises — a bad
// page degrades, it never fails.
//
// Per chapter it aggregates pages, word and image counts, a quality score,
// and the content hash used for deduplication.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/folioworks/folio/pdfdoc"
)

// PageSource is the document view the extractor reads from. *pdfdoc.Document
// implements it; tests substitute fakes.
type PageSource interface {
	PageText(pageNr int, strat pdfdoc.Strategy) string
	PageImageCount(pageNr int) int
	LargestPageImage(pageNr int) (*pdfdoc.PageImage, error)
}

// Config configures the extractor.
type Config struct {
	// CorruptionThreshold is the max acceptable corruption ratio before
	// escalating to the next strategy. Default: 0.05.
	CorruptionThreshold float64
	// MinOCRChars is the minimum OCR output length to accept. Default: 100.
	MinOCRChars int
	// OCR is the vision fallback client. Nil disables OCR; that is not an
	// error, the cascade then keeps its best structural attempt.
	OCR OCRClient
	// Logger for per-page escalation events.
	Logger *slog.Logger
}

// OCRClient mirrors ocr.Client without importing the package, keeping the
// dependency direction extractor→interface.
type OCRClient interface {
	ExtractPageImage(ctx context.Context, imageData []byte) (string, error)
}

func (c *Config) defaults() {
	if c.CorruptionThreshold <= 0 {
		c.CorruptionThreshold = 0.05
	}
	if c.MinOCRChars <= 0 {
		c.MinOCRChars = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor runs the per-page cascade and per-chapter aggregation.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// PageResult is one page's extraction outcome.
type PageResult struct {
	Text            string  // post-processed text, may be empty
	Method          string  // "layout", "blocks", "glyphs", or "ocr"
	CorruptionRatio float64 // ratio of the accepted raw text
	Corrupted       bool    // still above threshold after the full cascade
}

var structuralStrategies = []pdfdoc.Strategy{
	pdfdoc.StrategyLayout,
	pdfdoc.StrategyBlocks,
	pdfdoc.StrategyGlyphs,
}

// ExtractPage runs the cascade for a single page. It never returns an
// error; the worst case is an empty result.
func (e *Extractor) ExtractPage(ctx context.Context, src PageSource, pageNr int) PageResult {
	var bestText string
	var bestMethod string
	bestReplacements := -1

	for _, strat := range structuralStrategies {
		raw := src.PageText(pageNr, strat)
		ratio := CorruptionRatio(raw)

		if raw != "" && ratio <= e.cfg.CorruptionThreshold {
			return PageResult{
				Text:            PostProcess(raw),
				Method:          strat.String(),
				CorruptionRatio: ratio,
			}
		}

		if n := replacementCount(raw); raw != "" && (bestReplacements < 0 || n < bestReplacements) {
			bestText = raw
			bestMethod = strat.String()
			bestReplacements = n
		}
	}

	// Every structural strategy exceeded the threshold (or yielded nothing).
	if e.cfg.OCR != nil {
		if text, ok := e.tryOCR(ctx, src, pageNr); ok {
			return PageResult{
				Text:   PostProcess(text),
				Method: "ocr",
			}
		}
	}

	ratio := CorruptionRatio(bestText)
	return PageResult{
		Text:            PostProcess(bestText),
		Method:          bestMethod,
		CorruptionRatio: ratio,
		Corrupted:       bestText != "" && ratio > e.cfg.CorruptionThreshold,
	}
}

// tryOCR submits the page's scan image to the vision model. Any failure —
// no image stream, transport errors after retries, output too short —
// degrades to the structural result.
func (e *Extractor) tryOCR(ctx context.Context, src PageSource, pageNr int) (string, bool) {
	img, err := src.LargestPageImage(pageNr)
	if err != nil {
		e.cfg.Logger.Debug("extract: no page image for ocr", "page", pageNr, "error", err)
		return "", false
	}

	text, err := e.cfg.OCR.ExtractPageImage(ctx, img.Data)
	if err != nil {
		e.cfg.Logger.Warn("extract: ocr failed, keeping structural text",
			"page", pageNr, "error", err)
		return "", false
	}
	if len(text) <= e.cfg.MinOCRChars {
		e.cfg.Logger.Debug("extract: ocr output too short",
			"page", pageNr, "chars", len(text))
		return "", false
	}
	return text, true
}

// ChapterSpan is the page range and metadata of one detected chapter.
type ChapterSpan struct {
	Title     string
	Number    *int
	StartPage int
	EndPage   int
}

// ChapterContent is the aggregated extraction result for a chapter.
type ChapterContent struct {
	Text         string
	WordCount    int
	ImageCount   int
	HasImages    bool
	ContentHash  string
	QualityScore float64
	PageCount    int
	CorruptPages int
	OCRPages     int
}

// ExtractChapter extracts every page in the span, joined by newlines, and
// computes word count, image stats, quality score, and content hash.
// Cancellation is checked between pages. It returns an error only when the
// whole span produced no text at all — the caller skips that chapter and
// continues with the rest of the document.
func (e *Extractor) ExtractChapter(ctx context.Context, src PageSource, span ChapterSpan) (*ChapterContent, error) {
	if span.StartPage < 1 || span.EndPage < span.StartPage {
		return nil, fmt.Errorf("extract: invalid page range %d-%d", span.StartPage, span.EndPage)
	}

	var pages []string
	imageCount := 0
	corrupt := 0
	ocrPages := 0

	for pageNr := span.StartPage; pageNr <= span.EndPage; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract: chapter %q cancelled: %w", span.Title, err)
		}

		res := e.ExtractPage(ctx, src, pageNr)
		if res.Text != "" {
			pages = append(pages, res.Text)
		}
		if res.Corrupted {
			corrupt++
		}
		if res.Method == "ocr" {
			ocrPages++
		}
		imageCount += src.PageImageCount(pageNr)
	}

	text := strings.Join(pages, "\n")
	pageCount := span.EndPage - span.StartPage + 1

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("extract: chapter %q (pages %d-%d): no extractable text",
			span.Title, span.StartPage, span.EndPage)
	}

	corruptFraction := float64(corrupt) / float64(pageCount)
	if corrupt > 0 {
		// Observability only; residual corruption is a quality metric, not
		// a failure.
		e.cfg.Logger.Warn("extract: chapter has corrupted pages after full cascade",
			"chapter", span.Title,
			"corrupt_pages", corrupt,
			"page_count", pageCount,
			"corrupt_fraction", corruptFraction)
	}

	return &ChapterContent{
		Text:         text,
		WordCount:    len(strings.Fields(text)),
		ImageCount:   imageCount,
		HasImages:    imageCount > 0,
		ContentHash:  ContentHash(text, span.Title, span.StartPage, span.EndPage),
		QualityScore: QualityScore(text, corruptFraction),
		PageCount:    pageCount,
		CorruptPages: corrupt,
		OCRPages:     ocrPages,
	}, nil
}
