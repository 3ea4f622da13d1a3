// Package queue is the SQLite-backed ingestion job queue. A claimed job is
// invisible to other workers for a visibility window; a worker that crashes
// or stalls past the window loses the claim and the job reappears. Long
// ingestions heartbeat with Extend to keep their claim.
//
// Pure SQLite, no broker: the queue lives in the same database as the
// books it describes, so publishing a job and creating its book row share
// one transaction boundary and one backup story.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Job is one pending or in-flight ingestion.
type Job struct {
	ID        string
	BookID    string
	VisibleAt time.Time
	CreatedAt time.Time
	Attempts  int
}

// Options configures queue behaviour.
type Options struct {
	// Visibility is how long a claimed job stays invisible. Should exceed
	// a typical ingestion, with Extend covering the rest. Default: 5m.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts in the Run loop.
	// Default: 1s.
	PollInterval time.Duration
	// MaxAttempts limits redeliveries before a job is dropped. 0 means
	// unlimited. Default: 3.
	MaxAttempts int
	Logger      *slog.Logger
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Queue is the handle.
type Queue struct {
	db   *sql.DB
	opts Options
}

// New creates a queue handle. Call EnsureTable once at startup.
func New(db *sql.DB, opts Options) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts}
}

// EnsureTable creates the ingest_jobs table if needed.
func (q *Queue) EnsureTable(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ingest_jobs (
			id          TEXT PRIMARY KEY,
			payload     BLOB,
			visible_at  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_jobs_visible ON ingest_jobs (visible_at);
	`)
	return err
}

type payload struct {
	BookID string `json:"book_id"`
}

// Publish enqueues an ingestion for a book, immediately visible.
func (q *Queue) Publish(ctx context.Context, jobID, bookID string) error {
	body, err := json.Marshal(payload{BookID: bookID})
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO ingest_jobs (id, payload, visible_at, created_at) VALUES (?,?,?,?)`,
		jobID, body, now, now,
	)
	return err
}

// Claim atomically picks the oldest visible job and hides it for the
// visibility window. Returns nil, nil when nothing is available.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE ingest_jobs
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM ingest_jobs
			WHERE visible_at <= ?
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING id, payload, visible_at, created_at, attempts`,
		hideUntil, now.UnixMilli(),
	)

	var j Job
	var body []byte
	var visAt, creAt int64
	err := row.Scan(&j.ID, &body, &visAt, &creAt, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("queue: job %s payload: %w", j.ID, err)
	}
	j.BookID = p.BookID
	j.VisibleAt = time.UnixMilli(visAt)
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}

// Ack deletes a finished job, whatever its outcome — terminal book states
// are recorded on the books table, not here.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM ingest_jobs WHERE id = ?`, id)
	return err
}

// Nack makes a job immediately visible again.
func (q *Queue) Nack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE ingest_jobs SET visible_at = 0 WHERE id = ?`, id)
	return err
}

// Extend pushes the visibility window forward, the heartbeat for
// ingestions outrunning the initial window.
func (q *Queue) Extend(ctx context.Context, id string, extra time.Duration) error {
	hideUntil := time.Now().Add(extra).UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`UPDATE ingest_jobs SET visible_at = ? WHERE id = ?`, hideUntil, id)
	return err
}

// Len returns the number of jobs, visible and claimed.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_jobs`).Scan(&n)
	return n, err
}

// Handler processes a claimed job. Return nil to ack, non-nil to nack.
// A job past MaxAttempts is dropped without being handled; DropHandler, if
// set, observes the drop (the orchestrator fails the book there).
type Handler func(ctx context.Context, job *Job) error

// Run polls for visible jobs and dispatches them to handler, one at a
// time — ingestion parallelism lives inside the pipeline, not across jobs.
// Blocks until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handler Handler, dropHandler Handler) {
	log := q.opts.Logger
	log.Info("queue: worker started",
		"visibility", q.opts.Visibility, "poll", q.opts.PollInterval)

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("queue: worker stopped")
			return
		case <-ticker.C:
			q.poll(ctx, handler, dropHandler, log)
		}
	}
}

func (q *Queue) poll(ctx context.Context, handler, dropHandler Handler, log *slog.Logger) {
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("queue: claim failed", "error", err)
			}
			return
		}
		if job == nil {
			return
		}

		if q.opts.MaxAttempts > 0 && job.Attempts > q.opts.MaxAttempts {
			log.Warn("queue: job exceeded max attempts, dropping",
				"id", job.ID, "book_id", job.BookID, "attempts", job.Attempts)
			if dropHandler != nil {
				_ = dropHandler(ctx, job)
			}
			_ = q.Ack(ctx, job.ID)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Warn("queue: ingestion failed, requeueing",
				"id", job.ID, "book_id", job.BookID, "error", err)
			_ = q.Nack(ctx, job.ID)
		} else {
			_ = q.Ack(ctx, job.ID)
		}
	}
}
