package ingest

import "errors"

var (
	// ErrSourceUnreadable marks a document-level failure: the PDF could
	// not be opened or parsed at all. The book goes to failed; no partial
	// chapters are kept.
	ErrSourceUnreadable = errors.New("ingest: source file unreadable")

	// ErrAlreadyProcessing means another worker holds the book. The job
	// should not be retried against it.
	ErrAlreadyProcessing = errors.New("ingest: book already claimed")

	// ErrNoChapters means every detected chapter failed extraction. The
	// document completes with zero chapters only when detection itself
	// produced none, which the fallback tier prevents; all-failed
	// extraction is a document failure.
	ErrNoChapters = errors.New("ingest: no chapter could be extracted")
)
