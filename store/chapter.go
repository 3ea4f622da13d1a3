package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const chapterColumns = `id, book_id, source_type, chapter_number, chapter_title,
	start_page, end_page, page_count, extracted_text, word_count, has_images,
	image_count, content_hash, detection_method, detection_confidence,
	is_duplicate, duplicate_of_id, duplicate_group_id, preference_score,
	quality_score, created_at`

// InsertChapter persists one chapter row. Immediately visible to search
// via the FTS triggers.
func (s *Store) InsertChapter(ctx context.Context, c *Chapter) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	if c.PageCount == 0 {
		c.PageCount = c.EndPage - c.StartPage + 1
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chapters (`+chapterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BookID, c.SourceType, c.ChapterNumber, c.ChapterTitle,
		c.StartPage, c.EndPage, c.PageCount, c.ExtractedText, c.WordCount,
		c.HasImages, c.ImageCount, c.ContentHash, c.DetectionMethod,
		c.DetectionConfidence, c.IsDuplicate, c.DuplicateOfID,
		c.DuplicateGroupID, c.PreferenceScore, c.QualityScore, c.CreatedAt,
	)
	return err
}

// GetChapter retrieves a chapter by ID, including its text.
func (s *Store) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id)
	c, err := scanChapter(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListChaptersByBook returns a book's chapters in page order.
func (s *Store) ListChaptersByBook(ctx context.Context, bookID string) ([]*Chapter, error) {
	return s.listChapters(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE book_id = ? ORDER BY start_page`, bookID)
}

// ListChapters returns all chapters, oldest first. includeDuplicates
// false applies the default view: duplicates stay queryable by ID but are
// hidden from listings.
func (s *Store) ListChapters(ctx context.Context, includeDuplicates bool) ([]*Chapter, error) {
	q := `SELECT ` + chapterColumns + ` FROM chapters`
	if !includeDuplicates {
		q += ` WHERE is_duplicate = 0`
	}
	q += ` ORDER BY created_at`
	return s.listChapters(ctx, q)
}

// PendingEmbeddings returns non-duplicate chapters whose embedding has not
// been filled in, for the downstream embedding collaborator to poll.
func (s *Store) PendingEmbeddings(ctx context.Context, limit int) ([]*Chapter, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listChapters(ctx,
		`SELECT `+chapterColumns+` FROM chapters
		WHERE embedding IS NULL AND is_duplicate = 0
		ORDER BY created_at LIMIT ?`, limit)
}

// SetEmbedding stores a chapter's embedding vector.
func (s *Store) SetEmbedding(ctx context.Context, chapterID string, embedding []byte) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chapters SET embedding=? WHERE id=?`, embedding, chapterID)
	return err
}

func (s *Store) listChapters(ctx context.Context, q string, args ...any) ([]*Chapter, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		c, err := scanChapter(rows.Scan)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func scanChapter(scan func(...any) error) (*Chapter, error) {
	var c Chapter
	var hasImages, isDup int
	err := scan(
		&c.ID, &c.BookID, &c.SourceType, &c.ChapterNumber, &c.ChapterTitle,
		&c.StartPage, &c.EndPage, &c.PageCount, &c.ExtractedText, &c.WordCount,
		&hasImages, &c.ImageCount, &c.ContentHash, &c.DetectionMethod,
		&c.DetectionConfidence, &isDup, &c.DuplicateOfID, &c.DuplicateGroupID,
		&c.PreferenceScore, &c.QualityScore, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.HasImages = hasImages != 0
	c.IsDuplicate = isDup != 0
	return &c, nil
}
