package store

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/folioworks/folio/dbopen"
	"github.com/folioworks/folio/dedup"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func TestSchemaCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"books", "chapters", "chunks"} {
		var name string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
	var name string
	err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE name='chapters_fts'`).Scan(&name)
	if err != nil {
		t.Errorf("chapters_fts not found: %v", err)
	}
}

func TestBookLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b := &Book{ID: "bk_1", Title: "Algorithms", SourcePath: "/tmp/a.pdf", OriginalFilename: "a.pdf"}
	if err := s.InsertBook(ctx, b); err != nil {
		t.Fatalf("InsertBook: %v", err)
	}

	got, err := s.GetBook(ctx, "bk_1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.ProcessingStatus != StatusPending {
		t.Fatalf("status = %q, want pending", got.ProcessingStatus)
	}

	if err := s.MarkProcessing(ctx, "bk_1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := s.MarkCompleted(ctx, "bk_1", 320, `{"type":"textbook"}`); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	got, _ = s.GetBook(ctx, "bk_1")
	if got.ProcessingStatus != StatusCompleted || got.PageCount != 320 {
		t.Fatalf("after completion: status=%q pages=%d", got.ProcessingStatus, got.PageCount)
	}
}

func TestBookTransitionGuards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.InsertBook(ctx, &Book{ID: "bk_1", SourcePath: "x"})

	// Completing a pending book skips processing and must fail.
	if err := s.MarkCompleted(ctx, "bk_1", 1, ""); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("MarkCompleted from pending: %v, want ErrBadTransition", err)
	}

	if err := s.MarkProcessing(ctx, "bk_1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	// Double-claim loses.
	if err := s.MarkProcessing(ctx, "bk_1"); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("second MarkProcessing: %v, want ErrBadTransition", err)
	}

	if err := s.MarkFailed(ctx, "bk_1", "source unreadable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	b, _ := s.GetBook(ctx, "bk_1")
	if b.ProcessingStatus != StatusFailed || b.ErrorMessage != "source unreadable" {
		t.Fatalf("after failure: %+v", b)
	}

	// Terminal states stay terminal.
	if err := s.MarkProcessing(ctx, "bk_1"); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("MarkProcessing from failed: %v, want ErrBadTransition", err)
	}
}

func TestGetBookNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetBook(context.Background(), "bk_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func insertChapter(t *testing.T, s *Store, id, hash, srcType, text string) {
	t.Helper()
	err := s.InsertChapter(context.Background(), &Chapter{
		ID:                  id,
		SourceType:          srcType,
		ChapterTitle:        "Chapter " + id,
		StartPage:           1,
		EndPage:             10,
		ExtractedText:       text,
		WordCount:           len(text) / 5,
		ContentHash:         hash,
		DetectionMethod:     "toc",
		DetectionConfidence: 0.9,
	})
	if err != nil {
		t.Fatalf("InsertChapter %s: %v", id, err)
	}
}

func TestChapterRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := 3
	bookID := "bk_1"
	s.InsertBook(ctx, &Book{ID: bookID, SourcePath: "x"})
	err := s.InsertChapter(ctx, &Chapter{
		ID:                  "ch_1",
		BookID:              &bookID,
		SourceType:          "textbook_chapter",
		ChapterNumber:       &n,
		ChapterTitle:        "Graphs",
		StartPage:           41,
		EndPage:             60,
		ExtractedText:       "adjacency lists and matrices",
		WordCount:           4,
		HasImages:           true,
		ImageCount:          7,
		ContentHash:         "abc123",
		DetectionMethod:     "toc",
		DetectionConfidence: 0.9,
		QualityScore:        0.85,
	})
	if err != nil {
		t.Fatalf("InsertChapter: %v", err)
	}

	got, err := s.GetChapter(ctx, "ch_1")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if got.BookID == nil || *got.BookID != bookID {
		t.Fatalf("BookID = %v", got.BookID)
	}
	if got.ChapterNumber == nil || *got.ChapterNumber != 3 {
		t.Fatalf("ChapterNumber = %v", got.ChapterNumber)
	}
	if got.PageCount != 20 {
		t.Fatalf("PageCount = %d, want 20 (derived from range)", got.PageCount)
	}
	if !got.HasImages || got.ImageCount != 7 {
		t.Fatalf("images: %v %d", got.HasImages, got.ImageCount)
	}

	chs, err := s.ListChaptersByBook(ctx, bookID)
	if err != nil || len(chs) != 1 {
		t.Fatalf("ListChaptersByBook: %v, %d rows", err, len(chs))
	}
}

func TestSearchExcludesDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertChapter(t, s, "ch_keep", "h1", "standalone_chapter", "dynamic programming on trees")
	insertChapter(t, s, "ch_dup", "h1", "textbook_chapter", "dynamic programming on trees")

	cands, err := s.DedupCandidates(ctx)
	if err != nil {
		t.Fatalf("DedupCandidates: %v", err)
	}
	assignments := dedup.New(dedup.Config{}).Run(cands)
	if err := s.ApplyDedup(ctx, assignments); err != nil {
		t.Fatalf("ApplyDedup: %v", err)
	}

	hits, err := s.Search(ctx, "dynamic programming", 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ChapterID != "ch_keep" {
		t.Fatalf("hits = %+v, want only ch_keep", hits)
	}

	all, err := s.Search(ctx, "dynamic programming", 10, true)
	if err != nil {
		t.Fatalf("Search all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d hits with duplicates included, want 2", len(all))
	}

	// The duplicate row stays queryable by ID.
	dup, err := s.GetChapter(ctx, "ch_dup")
	if err != nil {
		t.Fatalf("GetChapter duplicate: %v", err)
	}
	if !dup.IsDuplicate || dup.DuplicateOfID == nil || *dup.DuplicateOfID != "ch_keep" {
		t.Fatalf("duplicate row = %+v", dup)
	}
}

func TestSearchQuoting(t *testing.T) {
	s := openTestStore(t)
	insertChapter(t, s, "ch_1", "h1", "research_paper", "results with caveats")

	// Raw FTS operators in user input must not error.
	if _, err := s.Search(context.Background(), `caveats AND "unbalanced`, 10, false); err != nil {
		t.Fatalf("Search with hostile input: %v", err)
	}
}

func TestDedupIdempotentInStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertChapter(t, s, "ch_a", "h", "standalone_chapter", "same text")
	insertChapter(t, s, "ch_b", "h", "textbook_chapter", "same text")

	d := dedup.New(dedup.Config{})
	for i := 0; i < 2; i++ {
		cands, _ := s.DedupCandidates(ctx)
		if err := s.ApplyDedup(ctx, d.Run(cands)); err != nil {
			t.Fatalf("ApplyDedup round %d: %v", i, err)
		}
	}

	var dupCount int
	s.DB.QueryRow(`SELECT COUNT(*) FROM chapters WHERE is_duplicate = 1`).Scan(&dupCount)
	if dupCount != 1 {
		t.Fatalf("duplicate rows = %d, want exactly 1 after repeated runs", dupCount)
	}
	var groups int
	s.DB.QueryRow(`SELECT COUNT(DISTINCT duplicate_group_id) FROM chapters WHERE duplicate_group_id != ''`).Scan(&groups)
	if groups != 1 {
		t.Fatalf("groups = %d, want 1", groups)
	}
}

func TestChunksRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertChapter(t, s, "ch_1", "h1", "textbook_chapter", "long chapter text")
	err := s.InsertChunks(ctx, []*Chunk{
		{ID: "cnk_0", ChapterID: "ch_1", ChunkIndex: 0, ChunkText: "first", StartOffset: 0, EndOffset: 5, WordCount: 1},
		{ID: "cnk_1", ChapterID: "ch_1", ChunkIndex: 1, ChunkText: "second", StartOffset: 6, EndOffset: 12, Heading: "Part II", WordCount: 1},
	})
	if err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}

	chunks, err := s.ListChunks(ctx, "ch_1")
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[1].Heading != "Part II" {
		t.Fatalf("heading = %q", chunks[1].Heading)
	}
}

func TestPendingEmbeddings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertChapter(t, s, "ch_1", "h1", "research_paper", "alpha")
	insertChapter(t, s, "ch_2", "h2", "research_paper", "beta")

	pending, err := s.PendingEmbeddings(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("PendingEmbeddings: %v, %d rows", err, len(pending))
	}

	if err := s.SetEmbedding(ctx, "ch_1", []byte{1, 2, 3}); err != nil {
		t.Fatalf("SetEmbedding: %v", err)
	}
	pending, _ = s.PendingEmbeddings(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "ch_2" {
		t.Fatalf("after embedding: %d rows", len(pending))
	}
}
