package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amanthanvi/tripbook/internal/audit"
	"github.com/amanthanvi/tripbook/internal/config"
	debugpkg "github.com/amanthanvi/tripbook/internal/debug"
	applog "github.com/amanthanvi/tripbook/internal/log"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

// collectDiagnostics inspects the configured installation without
// modifying it. The record file and journal are only read.
func collectDiagnostics(ctx context.Context, deps commandDeps) debugpkg.Bundle {
	bundle := debugpkg.NewBundle()
	bundle.Version = map[string]any{
		"version":    deps.build.Version,
		"commit":     deps.build.Commit,
		"build_time": deps.build.BuildTime,
	}

	cfg, report, err := loadConfig(deps)
	if err != nil {
		bundle.AddCheck("config", err, "")
		return bundle
	}
	bundle.AddCheck("config", nil, configMessage(report))

	home, _ := os.UserHomeDir()
	bundle.Paths = map[string]string{
		"config":    debugpkg.SanitizePath(report.ConfigPath, home),
		"data_file": debugpkg.SanitizePath(cfg.Storage.DataFile, home),
	}
	if cfg.Audit.Enabled {
		bundle.Paths["journal"] = debugpkg.SanitizePath(cfg.Audit.JournalFile, home)
	}
	if cfg.Logging.File != "" {
		bundle.Paths["log_file"] = debugpkg.SanitizePath(cfg.Logging.File, home)
	}

	summary, err := summarizeStore(ctx, cfg)
	if summary != nil {
		summary.DataFile = bundle.Paths["data_file"]
		bundle.Store = summary
	}
	if err != nil {
		bundle.AddCheck("records", err, "")
	} else {
		bundle.AddCheck("records", nil, fmt.Sprintf("%d records, %d skipped", summary.Records, summary.Skipped))
		if summary.Skipped > 0 {
			bundle.Notes = append(bundle.Notes, "malformed entries are dropped from the record file on the next save")
		}
		if !summary.Exists {
			bundle.Notes = append(bundle.Notes, "record file does not exist yet; it is created on the first save")
		}
	}
	bundle.AddCheck("data_dir", checkDataDir(cfg.Storage.DataFile), "usable")

	if !cfg.Audit.Enabled {
		bundle.Audit = map[string]any{"enabled": false}
		bundle.AddCheck("audit", nil, "disabled")
		return bundle
	}
	verify, err := verifyJournal(ctx, cfg.Audit.JournalFile)
	switch {
	case err != nil:
		bundle.AddCheck("audit", err, "")
	case !verify.Valid:
		bundle.AddCheck("audit", errors.New(verify.Error), "")
	default:
		bundle.AddCheck("audit", nil, fmt.Sprintf("chain valid, %d events", verify.EventCount))
	}
	if verify != nil {
		bundle.Audit = map[string]any{
			"enabled":     true,
			"valid":       verify.Valid,
			"event_count": verify.EventCount,
		}
	}
	return bundle
}

func configMessage(report config.LoadReport) string {
	if report.ConfigFound {
		return "loaded " + report.ConfigPath
	}
	return "defaults (no config file)"
}

func summarizeStore(ctx context.Context, cfg config.Config) (*debugpkg.StoreSummary, error) {
	summary := &debugpkg.StoreSummary{ByType: map[string]int{}}
	info, err := os.Stat(cfg.Storage.DataFile)
	switch {
	case err == nil:
		summary.Exists = true
		summary.SizeBytes = info.Size()
	case !errors.Is(err, os.ErrNotExist):
		return summary, fmt.Errorf("stat record file: %w", err)
	}

	store, err := storage.NewFileStore(cfg.Storage.DataFile, storage.FileStoreOptions{Logger: applog.Discard()})
	if err != nil {
		return summary, err
	}
	repo := storage.NewRepository(store, applog.Discard())
	loaded, err := repo.Load(ctx)
	if err != nil {
		return summary, err
	}

	summary.Records = loaded.Loaded
	summary.Skipped = len(loaded.Skipped)
	if next, err := repo.NextID(); err == nil {
		summary.NextID = next
	}
	for _, rec := range repo.List() {
		recordType := rec.Type()
		if !record.IsKnownType(recordType) {
			recordType = "untyped"
		}
		summary.ByType[recordType]++
	}
	return summary, nil
}

func checkDataDir(dataFile string) error {
	dir := filepath.Dir(dataFile)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", dir)
	}
	return nil
}

func verifyJournal(ctx context.Context, path string) (*audit.VerifyResult, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &audit.VerifyResult{Valid: true}, nil
	}
	journal, err := storage.OpenJournal(path)
	if err != nil {
		return nil, err
	}
	defer journal.Close()

	svc, err := audit.NewService(ctx, journal.Audit)
	if err != nil {
		return nil, err
	}
	return svc.Verify(ctx)
}
