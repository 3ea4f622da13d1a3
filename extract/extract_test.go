package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/folioworks/folio/pdfdoc"
)

// fakeSource serves canned text per (page, strategy) and records calls.
type fakeSource struct {
	pages  map[int]map[pdfdoc.Strategy]string
	images map[int][]byte
	calls  []pdfdoc.Strategy
}

func (f *fakeSource) PageText(pageNr int, strat pdfdoc.Strategy) string {
	f.calls = append(f.calls, strat)
	return f.pages[pageNr][strat]
}

func (f *fakeSource) PageImageCount(pageNr int) int {
	if f.images[pageNr] != nil {
		return 1
	}
	return 0
}

func (f *fakeSource) LargestPageImage(pageNr int) (*pdfdoc.PageImage, error) {
	data, ok := f.images[pageNr]
	if !ok {
		return nil, errors.New("no image")
	}
	return &pdfdoc.PageImage{Data: data, FileType: "png"}, nil
}

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractPageImage(ctx context.Context, imageData []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

const cleanPage = "The quick brown fox jumps over the lazy dog. It was a bright cold day in April and the clocks were striking thirteen."

// corrupted returns text whose corruption ratio exceeds the default 5%.
func corrupted() string {
	return strings.Repeat("�", 20) + "some words remain here"
}

func TestExtractPageAcceptsLayoutFirst(t *testing.T) {
	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{
		1: {
			pdfdoc.StrategyLayout: cleanPage,
			pdfdoc.StrategyBlocks: cleanPage,
			pdfdoc.StrategyGlyphs: cleanPage,
		},
	}}
	e := New(Config{})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Method != "layout" {
		t.Fatalf("Method = %q, want layout", res.Method)
	}
	if res.Corrupted {
		t.Fatal("clean page flagged corrupted")
	}
	if len(src.calls) != 1 {
		t.Fatalf("PageText called %d times, want 1 (no escalation past an accepted strategy)", len(src.calls))
	}
}

func TestExtractPageEscalatesInOrder(t *testing.T) {
	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{
		1: {
			pdfdoc.StrategyLayout: corrupted(),
			pdfdoc.StrategyBlocks: corrupted(),
			pdfdoc.StrategyGlyphs: cleanPage,
		},
	}}
	e := New(Config{})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Method != "glyphs" {
		t.Fatalf("Method = %q, want glyphs", res.Method)
	}
	want := []pdfdoc.Strategy{pdfdoc.StrategyLayout, pdfdoc.StrategyBlocks, pdfdoc.StrategyGlyphs}
	if len(src.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", src.calls, want)
	}
	for i := range want {
		if src.calls[i] != want[i] {
			t.Fatalf("call %d = %v, want %v", i, src.calls[i], want[i])
		}
	}
}

func TestExtractPageFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: strings.Repeat("recovered scanned text ", 10)}
	src := &fakeSource{
		pages: map[int]map[pdfdoc.Strategy]string{
			1: {
				pdfdoc.StrategyLayout: corrupted(),
				pdfdoc.StrategyBlocks: corrupted(),
				pdfdoc.StrategyGlyphs: corrupted(),
			},
		},
		images: map[int][]byte{1: []byte("fake-png")},
	}
	e := New(Config{OCR: ocr})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Method != "ocr" {
		t.Fatalf("Method = %q, want ocr", res.Method)
	}
	if ocr.calls != 1 {
		t.Fatalf("OCR called %d times, want 1", ocr.calls)
	}
	if res.Corrupted {
		t.Fatal("OCR result flagged corrupted")
	}
}

func TestExtractPageRejectsShortOCR(t *testing.T) {
	ocr := &fakeOCR{text: "too short"}
	src := &fakeSource{
		pages: map[int]map[pdfdoc.Strategy]string{
			1: {
				pdfdoc.StrategyLayout: corrupted(),
				pdfdoc.StrategyBlocks: corrupted() + " extra",
				pdfdoc.StrategyGlyphs: corrupted() + " extra extra",
			},
		},
		images: map[int][]byte{1: []byte("fake-png")},
	}
	e := New(Config{OCR: ocr})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Method == "ocr" {
		t.Fatal("short OCR output should be rejected")
	}
	if !res.Corrupted {
		t.Fatal("residual structural text should stay flagged corrupted")
	}
	if res.Text == "" {
		t.Fatal("best structural attempt should be kept, not dropped")
	}
}

func TestExtractPageOCRFailureKeepsStructural(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("quota exhausted")}
	src := &fakeSource{
		pages: map[int]map[pdfdoc.Strategy]string{
			1: {pdfdoc.StrategyLayout: corrupted()},
		},
		images: map[int][]byte{1: []byte("fake-png")},
	}
	e := New(Config{OCR: ocr})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Text == "" {
		t.Fatal("OCR failure should degrade to structural text, not empty")
	}
	if !res.Corrupted {
		t.Fatal("degraded page should be flagged corrupted")
	}
}

func TestExtractPageKeepsLeastCorrupted(t *testing.T) {
	// Glyphs has the fewest replacement characters; with OCR disabled the
	// cascade must pick it even though none pass the threshold.
	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{
		1: {
			pdfdoc.StrategyLayout: strings.Repeat("�", 30) + " a b",
			pdfdoc.StrategyBlocks: strings.Repeat("�", 20) + " a b",
			pdfdoc.StrategyGlyphs: strings.Repeat("�", 10) + " a b",
		},
	}}
	e := New(Config{})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Method != "glyphs" {
		t.Fatalf("Method = %q, want glyphs (fewest replacement runes)", res.Method)
	}
}

func TestExtractPageEmptyPage(t *testing.T) {
	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{}}
	e := New(Config{})

	res := e.ExtractPage(context.Background(), src, 1)
	if res.Text != "" {
		t.Fatalf("Text = %q, want empty", res.Text)
	}
	if res.Corrupted {
		t.Fatal("empty page must not be flagged corrupted")
	}
}

func TestExtractChapter(t *testing.T) {
	src := &fakeSource{
		pages: map[int]map[pdfdoc.Strategy]string{
			1: {pdfdoc.StrategyLayout: "Chapter One\nIt begins here."},
			2: {pdfdoc.StrategyLayout: "And continues on the next page."},
			3: {pdfdoc.StrategyLayout: "Until the end."},
		},
		images: map[int][]byte{2: []byte("figure")},
	}
	e := New(Config{})

	got, err := e.ExtractChapter(context.Background(), src, ChapterSpan{
		Title: "Chapter One", StartPage: 1, EndPage: 3,
	})
	if err != nil {
		t.Fatalf("ExtractChapter: %v", err)
	}
	if got.PageCount != 3 {
		t.Fatalf("PageCount = %d, want 3", got.PageCount)
	}
	if got.WordCount != 15 {
		t.Fatalf("WordCount = %d, want 15", got.WordCount)
	}
	if got.ImageCount != 1 || !got.HasImages {
		t.Fatalf("ImageCount = %d HasImages = %v, want 1 true", got.ImageCount, got.HasImages)
	}
	if got.ContentHash == "" {
		t.Fatal("ContentHash empty")
	}
	if got.QualityScore <= 0 || got.QualityScore > 1 {
		t.Fatalf("QualityScore = %v, want in (0,1]", got.QualityScore)
	}
	if !strings.Contains(got.Text, "continues on the next page") {
		t.Fatalf("Text missing page 2 content: %q", got.Text)
	}
}

func TestExtractChapterNoText(t *testing.T) {
	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{}}
	e := New(Config{})

	_, err := e.ExtractChapter(context.Background(), src, ChapterSpan{
		Title: "Empty", StartPage: 1, EndPage: 2,
	})
	if err == nil {
		t.Fatal("want error for chapter with no extractable text")
	}
}

func TestExtractChapterInvalidRange(t *testing.T) {
	e := New(Config{})
	_, err := e.ExtractChapter(context.Background(), &fakeSource{}, ChapterSpan{StartPage: 5, EndPage: 2})
	if err == nil {
		t.Fatal("want error for inverted page range")
	}
}

func TestExtractChapterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{pages: map[int]map[pdfdoc.Strategy]string{
		1: {pdfdoc.StrategyLayout: cleanPage},
	}}
	e := New(Config{})

	_, err := e.ExtractChapter(ctx, src, ChapterSpan{Title: "X", StartPage: 1, EndPage: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCorruptionRatio(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"clean", "abcd", 0},
		{"half", "ab��", 0.5},
		{"all", "��", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorruptionRatio(tt.text); got != tt.want {
				t.Fatalf("CorruptionRatio(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestQualityScoreBounds(t *testing.T) {
	if s := QualityScore(cleanPage, 0); s <= 0.5 || s > 1 {
		t.Fatalf("clean text score = %v, want in (0.5, 1]", s)
	}
	if s := QualityScore(cleanPage, 1); s >= QualityScore(cleanPage, 0) {
		t.Fatalf("fully corrupted fraction must lower the score, got %v", s)
	}
	if s := QualityScore("", 0); s != 0 {
		t.Fatalf("empty text score = %v, want 0", s)
	}
}

func TestPostProcess(t *testing.T) {
	in := "smart “quotes” and nbsp  — dash\n\n\nspaced   words\n"
	got := PostProcess(in)
	if strings.Contains(got, "“") || strings.Contains(got, " ") {
		t.Fatalf("typographic characters survived: %q", got)
	}
	if strings.Contains(got, "  ") {
		t.Fatalf("runs of spaces survived: %q", got)
	}
	if strings.Contains(got, "\n\n") {
		t.Fatalf("empty lines survived: %q", got)
	}
}

func TestContentHashStability(t *testing.T) {
	a := ContentHash("The  Same TEXT, really.", "A", 1, 10)
	b := ContentHash("the same text really", "B", 5, 20)
	if a != b {
		t.Fatal("normalization should make hashes equal across formatting and metadata")
	}

	short := ContentHash("ab", "Title One", 1, 2)
	shortOther := ContentHash("ab", "Title Two", 1, 2)
	if short == shortOther {
		t.Fatal("degenerate text must be salted with metadata")
	}
}
