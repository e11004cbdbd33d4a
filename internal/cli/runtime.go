package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/audit"
	"github.com/amanthanvi/tripbook/internal/config"
	applog "github.com/amanthanvi/tripbook/internal/log"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

var (
	loadConfigFn           = config.Load
	logOutput    io.Writer = os.Stderr
)

// runtime is everything one command invocation needs: the resolved config,
// the loaded repository and the services built on top of it.
type runtime struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.FileStore
	repo      *storage.Repository
	journal   *storage.Journal
	audit     *audit.Service
	recorder  audit.Recorder
	records   map[string]*app.RecordService
	search    *app.SearchService
	stats     *app.StatsService
	transfer  *app.TransferService
	logCloser io.Closer
}

func loadOptions(globals *GlobalOptions) config.LoadOptions {
	opts := config.LoadOptions{}
	if globals == nil {
		return opts
	}
	opts.ConfigPath = strings.TrimSpace(globals.ConfigPath)
	if home := strings.TrimSpace(globals.HomePath); home != "" {
		opts.Env = map[string]string{"TRIPBOOK_HOME": home}
	}
	if dataPath := strings.TrimSpace(globals.DataPath); dataPath != "" {
		opts.Flags.DataFile = &dataPath
	}
	if level := strings.TrimSpace(globals.LogLevel); level != "" {
		opts.Flags.LogLevel = &level
	}
	return opts
}

func loadConfig(deps commandDeps, overrides ...func(*config.LoadOptions)) (config.Config, config.LoadReport, error) {
	opts := loadOptions(deps.globals)
	for _, override := range overrides {
		override(&opts)
	}
	cfg, report, err := loadConfigFn(opts)
	if err != nil {
		return config.Config{}, report, mapCommandError(fmt.Errorf("load config: %w", err))
	}
	if deps.globals != nil && deps.globals.NoAudit {
		cfg.Audit.Enabled = false
	}
	return cfg, report, nil
}

func openRuntime(ctx context.Context, deps commandDeps, overrides ...func(*config.LoadOptions)) (*runtime, error) {
	cfg, _, err := loadConfig(deps, overrides...)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := applog.New(applog.Options{
		Level:  cfg.Logging.Level,
		Output: logOutput,
		RotationConfig: applog.RotationConfig{
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxFiles:   cfg.Logging.MaxFiles,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return nil, mapCommandError(fmt.Errorf("init logger: %w", err))
	}

	rt := &runtime{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		recorder:  audit.Nop{},
	}

	rt.store, err = storage.NewFileStore(cfg.Storage.DataFile, storage.FileStoreOptions{
		KeepBackup: cfg.Storage.KeepBackup,
		Logger:     logger,
	})
	if err != nil {
		rt.Close()
		return nil, mapCommandError(fmt.Errorf("open record file: %w", err))
	}
	rt.repo = storage.NewRepository(rt.store, logger)
	if _, err := rt.repo.Load(ctx); err != nil {
		rt.Close()
		return nil, mapCommandError(fmt.Errorf("load records: %w", err))
	}

	if cfg.Audit.Enabled {
		rt.journal, err = storage.OpenJournal(cfg.Audit.JournalFile)
		if err != nil {
			rt.Close()
			return nil, mapCommandError(fmt.Errorf("open audit journal: %w", err))
		}
		rt.audit, err = audit.NewService(ctx, rt.journal.Audit)
		if err != nil {
			rt.Close()
			return nil, mapCommandError(fmt.Errorf("init audit: %w", err))
		}
		rt.recorder = rt.audit
	}

	rt.records = make(map[string]*app.RecordService, len(record.Types))
	for _, recordType := range record.Types {
		rt.records[recordType] = app.NewRecordService(recordType, rt.repo, rt.recorder, logger)
	}
	rt.search = app.NewSearchService(rt.repo)
	rt.stats = app.NewStatsService(rt.repo, cfg.Storage.DataFile, cfg.Audit.Enabled)
	rt.transfer = app.NewTransferService(rt.repo, rt.recorder, logger)
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.journal != nil {
		_ = rt.journal.Close()
	}
	if rt.logCloser != nil {
		_ = rt.logCloser.Close()
	}
}

func withRuntime(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *runtime) error, overrides ...func(*config.LoadOptions)) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	rt, err := openRuntime(cmdCtx, deps, overrides...)
	if err != nil {
		return err
	}
	defer rt.Close()
	return mapCommandError(fn(cmdCtx, rt))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func boolToState(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}
