// Package detect finds chapter boundaries inside a PDF. Four tiers run in
// order: document outline, heading-pattern scan, font-size heuristic, and a
// whole-document fallback. Each tier is attempted only when the previous
// one produced nothing, so detection always yields at least one chapter.
package detect

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/folioworks/folio/pdfdoc"
)

// Method names the tier that produced a result.
type Method string

const (
	MethodOutline  Method = "toc"
	MethodPattern  Method = "pattern"
	MethodHeading  Method = "heading"
	MethodFallback Method = "fallback"
)

// Confidences are the per-tier confidence values recorded on detected
// chapters. Fixed per method, not per document.
type Confidences struct {
	Outline  float64
	Pattern  float64
	Heading  float64
	Fallback float64
}

func (c *Confidences) defaults() {
	if c.Outline <= 0 {
		c.Outline = 0.90
	}
	if c.Pattern <= 0 {
		c.Pattern = 0.80
	}
	if c.Heading <= 0 {
		c.Heading = 0.60
	}
	if c.Fallback <= 0 {
		c.Fallback = 0.50
	}
}

// Config configures a Detector.
type Config struct {
	Confidence Confidences
	Logger     *slog.Logger
}

// Chapter is one detected chapter candidate.
type Chapter struct {
	Number    *int // parsed from the title, nil when absent
	Title     string
	StartPage int
	EndPage   int
}

// Result is the outcome of a detection run.
type Result struct {
	Method     Method
	Confidence float64
	Chapters   []Chapter
}

// Source is the document view detection reads from. *pdfdoc.Document
// implements it.
type Source interface {
	PageCount() int
	Outline() []pdfdoc.OutlineEntry
	FirstLines(pageNr, n int) []string
	FontSizes(pageNr int) []float64
	TitleGuess() string
}

// Detector runs the cascade.
type Detector struct {
	conf   Confidences
	logger *slog.Logger
}

// New creates a Detector.
func New(cfg Config) *Detector {
	cfg.Confidence.defaults()
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Detector{conf: cfg.Confidence, logger: cfg.Logger}
}

// Detect runs the tiers in order and returns the first non-empty result.
// The fallback tier cannot be empty, so Chapters always has at least one
// entry covering the full document.
func (d *Detector) Detect(src Source) Result {
	pageCount := src.PageCount()

	if chs := d.fromOutline(src, pageCount); len(chs) > 0 {
		d.logger.Debug("detect: outline tier matched", "chapters", len(chs))
		return Result{Method: MethodOutline, Confidence: d.conf.Outline, Chapters: chs}
	}
	if chs := d.fromPatterns(src, pageCount); len(chs) > 0 {
		d.logger.Debug("detect: pattern tier matched", "chapters", len(chs))
		return Result{Method: MethodPattern, Confidence: d.conf.Pattern, Chapters: chs}
	}
	if chs := d.fromHeadings(src, pageCount); len(chs) > 0 {
		d.logger.Debug("detect: heading tier matched", "chapters", len(chs))
		return Result{Method: MethodHeading, Confidence: d.conf.Heading, Chapters: chs}
	}

	d.logger.Debug("detect: falling back to whole document", "pages", pageCount)
	title := src.TitleGuess()
	if title == "" {
		title = "Document"
	}
	end := pageCount
	if end < 1 {
		end = 1
	}
	return Result{
		Method:     MethodFallback,
		Confidence: d.conf.Fallback,
		Chapters:   []Chapter{{Title: title, StartPage: 1, EndPage: end}},
	}
}

// candidate is an intermediate boundary marker before end pages are known.
type candidate struct {
	number *int
	title  string
	page   int
}

// buildChapters turns sorted boundary candidates into chapters: each ends
// one page before the next begins, the last one runs to the end of the
// document, and the first one is pulled back to page 1 so front matter is
// never dropped.
func buildChapters(cands []candidate, pageCount int) []Chapter {
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].page < cands[j].page })

	chapters := make([]Chapter, 0, len(cands))
	for i, c := range cands {
		start := c.page
		if i == 0 {
			start = 1
		}
		end := pageCount
		if i+1 < len(cands) {
			end = cands[i+1].page - 1
		}
		if end < start {
			continue // two headings on one page, keep the later one
		}
		chapters = append(chapters, Chapter{
			Number:    c.number,
			Title:     c.title,
			StartPage: start,
			EndPage:   end,
		})
	}
	return chapters
}

// fromOutline uses bookmarks. Top-level entries are preferred; when a PDF
// nests everything under a single root, second-level entries are used
// instead.
func (d *Detector) fromOutline(src Source, pageCount int) []Chapter {
	entries := src.Outline()
	if len(entries) == 0 {
		return nil
	}

	level := pickOutlineLevel(entries)
	var cands []candidate
	for _, e := range entries {
		if e.Level != level || e.PageFrom < 1 || e.PageFrom > pageCount {
			continue
		}
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		cands = append(cands, candidate{
			number: parseChapterNumber(title),
			title:  title,
			page:   e.PageFrom,
		})
	}
	if len(cands) < 2 {
		// A single usable bookmark carries no boundary information.
		return nil
	}
	return buildChapters(cands, pageCount)
}

// pickOutlineLevel returns 1, or 2 when only one top-level entry exists.
func pickOutlineLevel(entries []pdfdoc.OutlineEntry) int {
	top := 0
	for _, e := range entries {
		if e.Level == 1 {
			top++
		}
	}
	if top <= 1 {
		return 2
	}
	return 1
}

// fromPatterns scans the leading lines of every page for chapter headings.
func (d *Detector) fromPatterns(src Source, pageCount int) []Chapter {
	var cands []candidate
	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		for _, line := range src.FirstLines(pageNr, headScanLines) {
			m := matchHeading(line)
			if m == nil {
				continue
			}
			cands = append(cands, candidate{number: m.number, title: m.title, page: pageNr})
			break // one heading per page
		}
	}
	if len(cands) == 0 {
		return nil
	}
	return buildChapters(cands, pageCount)
}

// headScanLines is how many leading lines of a page the pattern tier reads.
const headScanLines = 5

// fromHeadings looks for outlier font sizes. Pages whose leading text is
// set markedly larger than the document's body size are treated as chapter
// starts. Requires at least two such pages to carry boundary information.
func (d *Detector) fromHeadings(src Source, pageCount int) []Chapter {
	body := bodyFontSize(src, pageCount)
	if body <= 0 {
		return nil
	}

	var cands []candidate
	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		sizes := src.FontSizes(pageNr)
		if len(sizes) == 0 {
			continue
		}
		if sizes[0] >= body*headingScale {
			title := firstNonEmpty(src.FirstLines(pageNr, 1))
			if title == "" {
				continue
			}
			cands = append(cands, candidate{
				number: parseChapterNumber(title),
				title:  title,
				page:   pageNr,
			})
		}
	}
	if len(cands) < 2 {
		return nil
	}
	return buildChapters(cands, pageCount)
}

// headingScale is the multiplier over the body size that marks a heading.
const headingScale = 1.5

// bodyFontSize estimates the document's dominant font size as the median
// of every page's most common size.
func bodyFontSize(src Source, pageCount int) float64 {
	var all []float64
	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		all = append(all, src.FontSizes(pageNr)...)
	}
	if len(all) == 0 {
		return 0
	}
	sort.Float64s(all)
	return all[len(all)/2]
}

func firstNonEmpty(lines []string) string {
	for _, l := range lines {
		if s := strings.TrimSpace(l); s != "" {
			return s
		}
	}
	return ""
}
