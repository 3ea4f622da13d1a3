package store

import (
	"context"
	"strings"
)

// Search runs an FTS5 query over chapter titles and text. Duplicates are
// excluded from the default view; pass includeDuplicates to see the whole
// corpus.
func (s *Store) Search(ctx context.Context, query string, limit int, includeDuplicates bool) ([]*SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT c.id, c.chapter_title, c.source_type, c.book_id,
		snippet(chapters_fts, 1, '<b>', '</b>', '…', 20),
		bm25(chapters_fts)
		FROM chapters_fts
		JOIN chapters c ON c.rowid = chapters_fts.rowid
		WHERE chapters_fts MATCH ?`
	if !includeDuplicates {
		q += ` AND c.is_duplicate = 0`
	}
	q += ` ORDER BY bm25(chapters_fts) LIMIT ?`

	rows, err := s.DB.QueryContext(ctx, q, ftsQuote(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []*SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ChapterID, &h.ChapterTitle, &h.SourceType,
			&h.BookID, &h.Snippet, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}
	return hits, rows.Err()
}

// ftsQuote turns free text into an FTS5 query: each term quoted so user
// punctuation cannot break the MATCH syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
