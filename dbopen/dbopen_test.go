package dbopen_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/folioworks/folio/dbopen"
)

func TestOpen_Pragmas(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	// :memory: may report "memory" instead of "wal" for journal_mode,
	// but the PRAGMA was still executed successfully.
	if journalMode != "wal" && journalMode != "memory" {
		t.Fatalf("journal_mode = %q, want wal or memory", journalMode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatal(err)
	}
	if busyTimeout != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busyTimeout)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(
		`CREATE TABLE things (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
	))

	if _, err := db.Exec(`INSERT INTO things (id, name) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("insert into schema table: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked (5)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table: x"), false},
	}
	for _, tt := range tests {
		if got := dbopen.IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTx_Commits(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(
		`CREATE TABLE counters (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`,
	))

	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO counters (id, n) VALUES ('c', 1)`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT n FROM counters WHERE id = 'c'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
}

func TestRunTx_RollsBackOnError(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(
		`CREATE TABLE counters (id TEXT PRIMARY KEY, n INTEGER NOT NULL)`,
	))

	boom := errors.New("boom")
	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO counters (id, n) VALUES ('c', 1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunTx: got %v, want boom", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM counters`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 after rollback", count)
	}
}
