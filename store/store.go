// Package store is the SQLite persistence layer: books, chapters, chunks,
// and the FTS5 search index over chapter text. One database per deployment;
// every write path goes through here so the pipeline stages stay free of
// SQL.
package store

import (
	"database/sql"
	"fmt"

	"github.com/folioworks/folio/dbopen"
)

// Store wraps the folio database.
type Store struct {
	DB *sql.DB
}

// New wraps an already-opened database. Callers own the connection
// lifecycle.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open opens (creating if needed) the database at path with the standard
// pragmas and applies the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{DB: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
