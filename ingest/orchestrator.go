// Package ingest drives the document pipeline: claim a book, open and
// classify the PDF, detect chapter boundaries, extract chapters in
// parallel, persist, and deduplicate across the corpus. It also carries
// the HTTP intake surface and the MCP tools.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/folioworks/folio/chunk"
	"github.com/folioworks/folio/classify"
	"github.com/folioworks/folio/dedup"
	"github.com/folioworks/folio/detect"
	"github.com/folioworks/folio/extract"
	"github.com/folioworks/folio/idgen"
	"github.com/folioworks/folio/pdfdoc"
	"github.com/folioworks/folio/store"
)

// Document is the read surface the pipeline needs from an opened PDF.
// *pdfdoc.Document implements it; its page access is serialized
// internally, so parallel chapter workers can share one handle.
type Document interface {
	PageCount() int
	OutlineEntryCount() int
	SampleText(maxPages int) string
	Outline() []pdfdoc.OutlineEntry
	FirstLines(pageNr, n int) []string
	FontSizes(pageNr int) []float64
	TitleGuess() string
	PageText(pageNr int, strat pdfdoc.Strategy) string
	PageImageCount(pageNr int) int
	LargestPageImage(pageNr int) (*pdfdoc.PageImage, error)
}

// Orchestrator runs ingestions end to end.
type Orchestrator struct {
	store     *store.Store
	extractor *extract.Extractor
	detector  *detect.Detector
	dedup     *dedup.Deduplicator
	cfg       *Config
	logger    *slog.Logger
	newID     idgen.Generator

	// open is swapped in tests.
	open func(path string) (Document, error)
}

// NewOrchestrator wires the pipeline stages from config. ocrClient may be
// nil when OCR is disabled.
func NewOrchestrator(st *store.Store, cfg *Config, ocrClient extract.OCRClient, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store: st,
		extractor: extract.New(extract.Config{
			CorruptionThreshold: cfg.CorruptionThreshold,
			MinOCRChars:         cfg.OCR.MinChars,
			OCR:                 ocrClient,
			Logger:              logger,
		}),
		detector: detect.New(detect.Config{
			Confidence: detect.Confidences{
				Outline:  cfg.Detection.OutlineConfidence,
				Pattern:  cfg.Detection.PatternConfidence,
				Heading:  cfg.Detection.HeadingConfidence,
				Fallback: cfg.Detection.FallbackConfidence,
			},
			Logger: logger,
		}),
		dedup:  dedup.New(dedup.Config{Preference: cfg.Preference, Logger: logger}),
		cfg:    cfg,
		logger: logger,
		newID:  idgen.Default,
		open: func(path string) (Document, error) {
			return pdfdoc.Open(path)
		},
	}
}

// Run ingests one book: pending → processing → completed or failed. A
// chapter that fails extraction is logged and skipped; only pre-detection
// failures or cancellation fail the document.
func (o *Orchestrator) Run(ctx context.Context, bookID string) error {
	if err := o.store.MarkProcessing(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrBadTransition) {
			return fmt.Errorf("%w: %s", ErrAlreadyProcessing, bookID)
		}
		return err
	}

	book, err := o.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}

	if err := o.process(ctx, book); err != nil {
		reason := err.Error()
		if ctx.Err() != nil {
			reason = fmt.Sprintf("cancelled: %v", context.Cause(ctx))
		}
		if ferr := o.store.MarkFailed(context.WithoutCancel(ctx), bookID, reason); ferr != nil {
			o.logger.Error("ingest: could not record failure", "book_id", bookID, "error", ferr)
		}
		o.logger.Warn("ingest: document failed", "book_id", bookID, "reason", reason)
		return err
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, book *store.Book) error {
	doc, err := o.open(book.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}

	docType := classify.Classify(doc, o.logger)
	detection := o.detector.Detect(doc)

	title := book.Title
	if title == "" {
		title = doc.TitleGuess()
		if title == "" {
			title = book.OriginalFilename
		}
		if title != "" {
			if err := o.store.SetBookTitle(ctx, book.ID, title); err != nil {
				return err
			}
		}
	}

	o.logger.Info("ingest: document classified",
		"book_id", book.ID,
		"type", string(docType),
		"pages", doc.PageCount(),
		"detection_method", string(detection.Method),
		"chapters", len(detection.Chapters))

	persisted, failed := o.extractChapters(ctx, book, doc, docType, detection)
	if err := ctx.Err(); err != nil {
		return err
	}
	if persisted == 0 {
		return fmt.Errorf("%w: %d of %d failed", ErrNoChapters, failed, len(detection.Chapters))
	}

	meta, _ := json.Marshal(map[string]any{
		"document_type":        string(docType),
		"detection_method":     string(detection.Method),
		"detection_confidence": detection.Confidence,
		"chapters_detected":    len(detection.Chapters),
		"chapters_persisted":   persisted,
		"chapters_failed":      failed,
	})
	if err := o.store.MarkCompleted(ctx, book.ID, doc.PageCount(), string(meta)); err != nil {
		return err
	}

	o.logger.Info("ingest: document completed",
		"book_id", book.ID, "chapters", persisted, "failed", failed)

	// Batch, cross-document, idempotent; completion does not wait on it
	// being current.
	if err := o.Dedup(ctx); err != nil {
		o.logger.Warn("ingest: dedup pass failed", "error", err)
	}
	return nil
}

// extractChapters runs chapter extraction across a bounded worker pool and
// persists each result as it lands. Chapter failures are counted, not
// propagated.
func (o *Orchestrator) extractChapters(ctx context.Context, book *store.Book, doc Document, docType classify.DocumentType, detection detect.Result) (persisted, failed int) {
	sourceType := chapterSourceType(docType)
	var bookRef *string
	if sourceType == "textbook_chapter" {
		bookRef = &book.ID
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ChapterWorkers)

	for _, ch := range detection.Chapters {
		g.Go(func() error {
			content, err := o.extractor.ExtractChapter(gctx, doc, extract.ChapterSpan{
				Title:     ch.Title,
				Number:    ch.Number,
				StartPage: ch.StartPage,
				EndPage:   ch.EndPage,
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.logger.Warn("ingest: chapter skipped",
					"book_id", book.ID, "title", ch.Title,
					"pages", fmt.Sprintf("%d-%d", ch.StartPage, ch.EndPage),
					"error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			if err := o.persistChapter(gctx, bookRef, sourceType, ch, detection, content); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				o.logger.Warn("ingest: chapter persist failed",
					"book_id", book.ID, "title", ch.Title, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			persisted++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return persisted, failed
}

func (o *Orchestrator) persistChapter(ctx context.Context, bookRef *string, sourceType string, ch detect.Chapter, detection detect.Result, content *extract.ChapterContent) error {
	chapterID := idgen.Prefixed("ch_", o.newID)()
	err := o.store.InsertChapter(ctx, &store.Chapter{
		ID:                  chapterID,
		BookID:              bookRef,
		SourceType:          sourceType,
		ChapterNumber:       ch.Number,
		ChapterTitle:        ch.Title,
		StartPage:           ch.StartPage,
		EndPage:             ch.EndPage,
		ExtractedText:       content.Text,
		WordCount:           content.WordCount,
		HasImages:           content.HasImages,
		ImageCount:          content.ImageCount,
		ContentHash:         content.ContentHash,
		DetectionMethod:     string(detection.Method),
		DetectionConfidence: detection.Confidence,
		QualityScore:        content.QualityScore,
	})
	if err != nil {
		return err
	}

	pieces := chunk.Split(content.Text, chunk.Options{ThresholdWords: o.cfg.LongChapterWords})
	if len(pieces) == 0 {
		return nil
	}
	rows := make([]*store.Chunk, len(pieces))
	for i, p := range pieces {
		rows[i] = &store.Chunk{
			ID:          idgen.Prefixed("cnk_", o.newID)(),
			ChapterID:   chapterID,
			ChunkIndex:  p.Index,
			ChunkText:   p.Text,
			StartOffset: p.StartOffset,
			EndOffset:   p.EndOffset,
			Heading:     p.Heading,
			WordCount:   p.WordCount,
		}
	}
	return o.store.InsertChunks(ctx, rows)
}

// Dedup runs a full cross-document deduplication pass. Safe to re-run at
// any time, including startup.
func (o *Orchestrator) Dedup(ctx context.Context) error {
	cands, err := o.store.DedupCandidates(ctx)
	if err != nil {
		return err
	}
	return o.store.ApplyDedup(ctx, o.dedup.Run(cands))
}

// chapterSourceType maps the document label to the provenance recorded on
// its chapters.
func chapterSourceType(t classify.DocumentType) string {
	switch t {
	case classify.Textbook:
		return "textbook_chapter"
	case classify.ResearchPaper:
		return "research_paper"
	default:
		return "standalone_chapter"
	}
}
