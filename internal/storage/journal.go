package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	pragmaJournalModeWAL = `PRAGMA journal_mode=WAL`
	pragmaBusyTimeout    = `PRAGMA busy_timeout=5000`
)

// Journal is the SQLite database that holds the audit trail of record
// mutations. The record collection itself lives in the JSON file.
type Journal struct {
	db   *sql.DB
	path string

	Audit AuditRepository
}

func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("open journal: empty path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open journal: create parent dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(4)

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(db, DefaultMigrations()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureDBPermissions(path); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Journal{
		db:    db,
		path:  path,
		Audit: &auditRepository{db: db},
	}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) DB() *sql.DB {
	if j == nil {
		return nil
	}
	return j.db
}

func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

func configureSQLite(db *sql.DB) error {
	for _, stmt := range []string{pragmaJournalModeWAL, pragmaBusyTimeout} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("configure sqlite %q: %w", stmt, err)
		}
	}
	return nil
}

func ensureDBPermissions(path string) error {
	for _, p := range []string{path, path + "-wal"} {
		if err := os.Chmod(p, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("set journal file permissions: %w", err)
		}
	}
	return nil
}
