// Package classify assigns a document type label before chapter detection.
// The label steers downstream policy (how chapters are detected, how
// duplicates are preferred); it never blocks ingestion, so classification
// has no error path.
package classify

import (
	"log/slog"
	"regexp"
	"strings"
)

// DocumentType labels what kind of document a PDF is.
type DocumentType string

const (
	Textbook          DocumentType = "textbook"
	ResearchPaper     DocumentType = "research_paper"
	StandaloneChapter DocumentType = "standalone_chapter"
)

// Valid reports whether t is one of the known labels.
func (t DocumentType) Valid() bool {
	switch t {
	case Textbook, ResearchPaper, StandaloneChapter:
		return true
	}
	return false
}

// Source is the document view the classifier reads. It is a subset of
// *pdfdoc.Document so tests can fake it cheaply.
type Source interface {
	PageCount() int
	OutlineEntryCount() int
	SampleText(maxPages int) string
}

// samplePages is how many leading pages feed the text heuristics.
const samplePages = 10

var (
	abstractRe = regexp.MustCompile(`(?im)^\s*abstract\b|\bthis paper\b|\bwe propose\b|\bwe present\b`)
	chapterRe  = regexp.MustCompile(`(?im)^\s*(chapter|ch\.?)\s+\d+\b|^\s*chapter\s+[ivxlcdm]+\b`)
)

// Classify labels the document. Evaluated in order, first match wins;
// any internal failure degrades to StandaloneChapter rather than
// propagating.
func Classify(src Source, logger *slog.Logger) (label DocumentType) {
	if logger == nil {
		logger = slog.Default()
	}

	label = StandaloneChapter
	defer func() {
		if r := recover(); r != nil {
			label = StandaloneChapter
			logger.Warn("classify: recovered, defaulting to standalone_chapter", "panic", r)
		}
	}()

	pages := src.PageCount()
	outline := src.OutlineEntryCount()
	sample := strings.ToLower(src.SampleText(samplePages))

	switch {
	case pages > 500 && outline >= 10:
		label = Textbook
	case pages < 50 && abstractRe.MatchString(sample):
		label = ResearchPaper
	case pages >= 20 && pages <= 100 && (chapterRe.MatchString(sample) || outline > 0):
		label = StandaloneChapter
	case outline >= 5:
		label = Textbook
	case pages > 200:
		label = Textbook
	case pages < 50:
		label = ResearchPaper
	default:
		label = StandaloneChapter
	}

	logger.Debug("classify: labeled document",
		"type", string(label), "pages", pages, "outline_entries", outline)
	return label
}
