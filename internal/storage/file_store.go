package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/amanthanvi/tripbook/internal/record"
)

const backupSuffix = ".bak"

type FileStoreOptions struct {
	// KeepBackup copies the previous file to <path>.bak before each save.
	KeepBackup bool
	Logger     *slog.Logger
}

// FileStore persists the record collection as a single JSON array.
type FileStore struct {
	path       string
	keepBackup bool
	logger     *slog.Logger
}

func NewFileStore(path string, opts FileStoreOptions) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("new file store: empty path")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{
		path:       path,
		keepBackup: opts.KeepBackup,
		logger:     logger,
	}, nil
}

func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *FileStore) BackupPath() string {
	return s.path + backupSuffix
}

// Load reads the backing file. A missing, empty or unparseable file yields an
// empty collection. Entries that are not objects or lack a valid ID are
// skipped and listed in the report.
func (s *FileStore) Load(ctx context.Context) ([]*record.Record, LoadReport, error) {
	report := LoadReport{Path: s.path}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			report.Missing = true
			return []*record.Record{}, report, nil
		}
		return nil, report, fmt.Errorf("load records: read %s: %w", s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []*record.Record{}, report, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		report.Unparseable = true
		s.logger.Warn("record file is not a JSON array, starting empty", "path", s.path, "error", err)
		return []*record.Record{}, report, nil
	}

	records := make([]*record.Record, 0, len(entries))
	seen := make(map[int64]struct{}, len(entries))
	for i, raw := range entries {
		rec, reason := decodeEntry(raw)
		if rec != nil {
			id, _ := rec.ID()
			if _, dup := seen[id]; dup {
				rec, reason = nil, fmt.Sprintf("duplicate ID %d", id)
			} else {
				seen[id] = struct{}{}
			}
		}
		if rec == nil {
			report.Skipped = append(report.Skipped, SkippedEntry{Index: i, Reason: reason})
			s.logger.Warn("skipping malformed record", "path", s.path, "index", i, "reason", reason)
			continue
		}
		records = append(records, rec)
	}
	report.Loaded = len(records)
	return records, report, nil
}

func decodeEntry(raw json.RawMessage) (*record.Record, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, "not an object"
	}
	rec := &record.Record{}
	if err := json.Unmarshal(trimmed, rec); err != nil {
		return nil, err.Error()
	}
	if _, ok := rec.ID(); !ok {
		return nil, "missing or invalid ID"
	}
	return rec, ""
}

// Save overwrites the backing file with the given collection.
func (s *FileStore) Save(ctx context.Context, records []*record.Record) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	if records == nil {
		records = []*record.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("save records: encode: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("save records: create parent dir: %w", err)
	}
	if s.keepBackup {
		if err := copyFile(s.path, s.BackupPath()); err != nil {
			return fmt.Errorf("save records: backup: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save records: open %s: %w", s.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("save records: close: %w", closeErr))
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("save records: write %s: %w", s.path, err)
	}
	return nil
}

// RestoreBackup replaces the data file with the last backup copy.
func (s *FileStore) RestoreBackup() error {
	if _, err := os.Stat(s.BackupPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("restore backup: %w", ErrNotFound)
		}
		return fmt.Errorf("restore backup: %w", err)
	}
	if err := copyFile(s.BackupPath(), s.path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
