package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups for missing rows.
var ErrNotFound = errors.New("store: not found")

// ErrBadTransition is returned when a state change's guard does not match
// the row's current status.
var ErrBadTransition = errors.New("store: invalid status transition")

// InsertBook creates a book row in the pending state.
func (s *Store) InsertBook(ctx context.Context, b *Book) error {
	now := time.Now().UnixMilli()
	if b.CreatedAt == 0 {
		b.CreatedAt = now
	}
	if b.UpdatedAt == 0 {
		b.UpdatedAt = now
	}
	if b.ProcessingStatus == "" {
		b.ProcessingStatus = StatusPending
	}
	if b.MetadataJSON == "" {
		b.MetadataJSON = "{}"
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO books (id, title, authors, edition, page_count, source_path,
		original_filename, processing_status, error_message, metadata_json,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Authors, b.Edition, b.PageCount, b.SourcePath,
		b.OriginalFilename, b.ProcessingStatus, b.ErrorMessage, b.MetadataJSON,
		b.CreatedAt, b.UpdatedAt,
	)
	return err
}

const bookColumns = `id, title, authors, edition, page_count, source_path,
	original_filename, processing_status, error_message, metadata_json,
	created_at, updated_at`

// GetBook retrieves a book by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	return b, err
}

// ListBooks returns books newest first, optionally filtered by status.
func (s *Store) ListBooks(ctx context.Context, status string, limit int) ([]*Book, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + bookColumns + ` FROM books`
	args := []any{}
	if status != "" {
		q += ` WHERE processing_status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows.Scan)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// MarkProcessing transitions pending → processing. The guard on the
// current status makes concurrent workers safe: exactly one claim wins.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id,
		`UPDATE books SET processing_status=?, updated_at=? WHERE id=? AND processing_status=?`,
		StatusProcessing, time.Now().UnixMilli(), id, StatusPending)
}

// MarkCompleted transitions processing → completed and records final
// document metadata.
func (s *Store) MarkCompleted(ctx context.Context, id string, pageCount int, metadataJSON string) error {
	if metadataJSON == "" {
		metadataJSON = "{}"
	}
	return s.transition(ctx, id,
		`UPDATE books SET processing_status=?, page_count=?, metadata_json=?, error_message='', updated_at=?
		WHERE id=? AND processing_status=?`,
		StatusCompleted, pageCount, metadataJSON, time.Now().UnixMilli(), id, StatusProcessing)
}

// MarkFailed transitions processing → failed with a reason. Also accepts
// pending rows so claim-time failures (vanished file) land in a terminal
// state.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id,
		`UPDATE books SET processing_status=?, error_message=?, updated_at=?
		WHERE id=? AND processing_status IN (?, ?)`,
		StatusFailed, reason, time.Now().UnixMilli(), id, StatusPending, StatusProcessing)
}

// SetBookTitle updates the title after classification has a better guess
// than the filename.
func (s *Store) SetBookTitle(ctx context.Context, id, title string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE books SET title=?, updated_at=? WHERE id=?`,
		title, time.Now().UnixMilli(), id)
	return err
}

func (s *Store) transition(ctx context.Context, id, q string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		b, gerr := s.GetBook(ctx, id)
		if gerr != nil {
			return gerr
		}
		return fmt.Errorf("book %s in state %s: %w", id, b.ProcessingStatus, ErrBadTransition)
	}
	return nil
}

func scanBook(scan func(...any) error) (*Book, error) {
	var b Book
	err := scan(
		&b.ID, &b.Title, &b.Authors, &b.Edition, &b.PageCount, &b.SourcePath,
		&b.OriginalFilename, &b.ProcessingStatus, &b.ErrorMessage, &b.MetadataJSON,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
