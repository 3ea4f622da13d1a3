package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/folioworks/folio/dbopen"
)

// InsertChunks persists a chapter's chunks in one transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, c := range chunks {
			if c.CreatedAt == 0 {
				c.CreatedAt = now
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO chunks (id, chapter_id, chunk_index, chunk_text,
				start_offset, end_offset, heading, word_count, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.ChapterID, c.ChunkIndex, c.ChunkText,
				c.StartOffset, c.EndOffset, c.Heading, c.WordCount, c.CreatedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ListChunks returns a chapter's chunks in index order.
func (s *Store) ListChunks(ctx context.Context, chapterID string) ([]*Chunk, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, chapter_id, chunk_index, chunk_text, start_offset,
		end_offset, heading, word_count, created_at
		FROM chunks WHERE chapter_id = ? ORDER BY chunk_index`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.ChunkIndex, &c.ChunkText,
			&c.StartOffset, &c.EndOffset, &c.Heading, &c.WordCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}
