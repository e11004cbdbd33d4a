package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

const (
	metaSchemaVersion = "schema_version"
	metaChainTip      = "audit_chain_tip"
)

// Migration is one schema step. Its statements run in a single transaction
// together with the version bump.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var journalMigrations = []Migration{
	{
		Version:     1,
		Description: "audit events",
		Statements: []string{
			`CREATE TABLE audit_events (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				action TEXT NOT NULL,
				subject_type TEXT NOT NULL DEFAULT '',
				subject_id TEXT NOT NULL DEFAULT '',
				result TEXT NOT NULL DEFAULT '',
				details_json TEXT NOT NULL DEFAULT '{}',
				prev_hash TEXT NOT NULL DEFAULT '',
				event_hash TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`INSERT OR IGNORE INTO journal_meta(key, value) VALUES ('` + metaChainTip + `', '')`,
		},
	},
	{
		Version:     2,
		Description: "audit lookup indexes",
		Statements: []string{
			`CREATE INDEX idx_audit_action ON audit_events(action, created_at)`,
			`CREATE INDEX idx_audit_subject ON audit_events(subject_type, subject_id)`,
		},
	},
}

func DefaultMigrations() []Migration {
	return slices.Clone(journalMigrations)
}

func CurrentSchemaVersion() int {
	return latestVersion(journalMigrations)
}

// RunMigrations brings db up to the newest version in migrations. A database
// written by a newer build is refused with ErrSchemaTooNew.
func RunMigrations(db *sql.DB, migrations []Migration) error {
	if db == nil {
		return errors.New("run migrations: db is nil")
	}
	ctx := context.Background()

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS journal_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, description TEXT NOT NULL, applied_at TEXT NOT NULL)`,
		`INSERT OR IGNORE INTO journal_meta(key, value) VALUES ('` + metaSchemaVersion + `', '0')`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare journal schema: %w", err)
		}
	}

	raw, err := getMeta(ctx, db, metaSchemaVersion)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	current, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse schema version %q: %w", raw, err)
	}

	ordered := slices.Clone(migrations)
	slices.SortFunc(ordered, func(a, b Migration) int { return a.Version - b.Version })
	if latest := latestVersion(ordered); current > latest {
		return fmt.Errorf("%w: journal=%d supported=%d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range ordered {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations(version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, formatJournalTime(time.Now()),
	); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaSchemaVersion, strconv.Itoa(m.Version)); err != nil {
		return err
	}
	return tx.Commit()
}

func latestVersion(migrations []Migration) int {
	latest := 0
	for _, m := range migrations {
		latest = max(latest, m.Version)
	}
	return latest
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO journal_meta(key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func getMeta(ctx context.Context, db queryer, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM journal_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
