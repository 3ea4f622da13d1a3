package store

import (
	"context"
	"database/sql"

	"github.com/folioworks/folio/dbopen"
	"github.com/folioworks/folio/dedup"
)

// DedupCandidates returns every chapter's deduplication view: id, content
// hash, source type, and age. The deduplicator needs cross-document
// visibility, so this reads the whole chapters table.
func (s *Store) DedupCandidates(ctx context.Context) ([]dedup.Candidate, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, content_hash, source_type, created_at FROM chapters`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []dedup.Candidate
	for rows.Next() {
		var c dedup.Candidate
		if err := rows.Scan(&c.ID, &c.ContentHash, &c.SourceType, &c.CreatedAt); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// ApplyDedup writes a batch of deduplication assignments in one
// transaction. Rows are marked, never deleted; assignments are
// deterministic, so re-applying the same batch is a no-op in effect.
func (s *Store) ApplyDedup(ctx context.Context, assignments []dedup.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, a := range assignments {
			var dupOf any
			if a.DuplicateOfID != "" {
				dupOf = a.DuplicateOfID
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE chapters SET is_duplicate=?, duplicate_of_id=?,
				duplicate_group_id=?, preference_score=?
				WHERE id=?`,
				a.IsDuplicate, dupOf, a.DuplicateGroup, a.PreferenceScore, a.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
