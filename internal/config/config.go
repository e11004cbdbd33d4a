package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultDataFileName    = "records.json"
	defaultJournalFileName = "journal.db"
	defaultListen          = "127.0.0.1:5000"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultRatePerSecond   = 20
	defaultRateBurst       = 40
	defaultLogLevel        = "info"
	defaultLogMaxSizeMB    = 10
	defaultLogMaxFiles     = 5
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Audit   AuditConfig   `toml:"audit"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	DataFile   string `toml:"data_file"`
	KeepBackup bool   `toml:"keep_backup"`
}

type AuditConfig struct {
	Enabled     bool   `toml:"enabled"`
	JournalFile string `toml:"journal_file"`
}

type ServerConfig struct {
	Listen          string        `toml:"listen"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	RatePerSecond   int           `toml:"rate_per_second"`
	RateBurst       int           `toml:"rate_burst"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxFiles   int    `toml:"max_files"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type LoadOptions struct {
	ConfigPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DataFile *string
	Listen   *string
	LogLevel *string
}

type LoadReport struct {
	ConfigPath  string
	ConfigFound bool
	EnvApplied  []string
}

func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DataFile:   "",
			KeepBackup: false,
		},
		Audit: AuditConfig{
			Enabled:     true,
			JournalFile: "",
		},
		Server: ServerConfig{
			Listen:          defaultListen,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			RatePerSecond:   defaultRatePerSecond,
			RateBurst:       defaultRateBurst,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load resolves the effective configuration. Precedence is flag, then
// environment, then file, then built-in defaults.
func Load(opts LoadOptions) (Config, LoadReport, error) {
	cfg := DefaultConfig()
	report := LoadReport{EnvApplied: []string{}}

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, report, fmt.Errorf("resolve config path: %w", err)
	}
	report.ConfigPath = configPath

	found, err := loadAndApplyFile(configPath, &cfg)
	if err != nil {
		return Config{}, report, err
	}
	report.ConfigFound = found

	if err := applyEnvOverrides(&cfg, opts, &report.EnvApplied); err != nil {
		return Config{}, report, err
	}
	applyFlagOverrides(&cfg, opts.Flags)

	if err := resolveDataPaths(&cfg, opts); err != nil {
		return Config{}, report, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, report, err
	}

	return cfg, report, nil
}

type rawConfig struct {
	Storage *rawStorage `toml:"storage"`
	Audit   *rawAudit   `toml:"audit"`
	Server  *rawServer  `toml:"server"`
	Logging *rawLogging `toml:"logging"`
}

type rawStorage struct {
	DataFile   *string `toml:"data_file"`
	KeepBackup *bool   `toml:"keep_backup"`
}

type rawAudit struct {
	Enabled     *bool   `toml:"enabled"`
	JournalFile *string `toml:"journal_file"`
}

type rawServer struct {
	Listen          *string `toml:"listen"`
	ReadTimeout     *string `toml:"read_timeout"`
	WriteTimeout    *string `toml:"write_timeout"`
	ShutdownTimeout *string `toml:"shutdown_timeout"`
	RatePerSecond   *int    `toml:"rate_per_second"`
	RateBurst       *int    `toml:"rate_burst"`
}

type rawLogging struct {
	Level      *string `toml:"level"`
	File       *string `toml:"file"`
	MaxSizeMB  *int    `toml:"max_size_mb"`
	MaxFiles   *int    `toml:"max_files"`
	MaxAgeDays *int    `toml:"max_age_days"`
	Compress   *bool   `toml:"compress"`
}

func loadAndApplyFile(path string, cfg *Config) (bool, error) {
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return true, fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}
	if err := applyRawConfig(cfg, raw); err != nil {
		return true, err
	}
	return true, nil
}

func applyRawConfig(cfg *Config, raw rawConfig) error {
	if raw.Storage != nil {
		setValue(raw.Storage.DataFile, &cfg.Storage.DataFile)
		setValue(raw.Storage.KeepBackup, &cfg.Storage.KeepBackup)
	}

	if raw.Audit != nil {
		setValue(raw.Audit.Enabled, &cfg.Audit.Enabled)
		setValue(raw.Audit.JournalFile, &cfg.Audit.JournalFile)
	}

	if raw.Server != nil {
		setValue(raw.Server.Listen, &cfg.Server.Listen)
		if err := setDuration("server.read_timeout", raw.Server.ReadTimeout, &cfg.Server.ReadTimeout); err != nil {
			return err
		}
		if err := setDuration("server.write_timeout", raw.Server.WriteTimeout, &cfg.Server.WriteTimeout); err != nil {
			return err
		}
		if err := setDuration("server.shutdown_timeout", raw.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout); err != nil {
			return err
		}
		setValue(raw.Server.RatePerSecond, &cfg.Server.RatePerSecond)
		setValue(raw.Server.RateBurst, &cfg.Server.RateBurst)
	}

	if raw.Logging != nil {
		setValue(raw.Logging.Level, &cfg.Logging.Level)
		setValue(raw.Logging.File, &cfg.Logging.File)
		setValue(raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setValue(raw.Logging.MaxFiles, &cfg.Logging.MaxFiles)
		setValue(raw.Logging.MaxAgeDays, &cfg.Logging.MaxAgeDays)
		setValue(raw.Logging.Compress, &cfg.Logging.Compress)
	}

	return nil
}

type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"TRIPBOOK_DATA_FILE", func(cfg *Config, v string) error { cfg.Storage.DataFile = v; return nil }},
	{"TRIPBOOK_STORAGE_KEEP_BACKUP", boolEnv(func(cfg *Config) *bool { return &cfg.Storage.KeepBackup })},
	{"TRIPBOOK_AUDIT_ENABLED", boolEnv(func(cfg *Config) *bool { return &cfg.Audit.Enabled })},
	{"TRIPBOOK_AUDIT_JOURNAL_FILE", func(cfg *Config, v string) error { cfg.Audit.JournalFile = v; return nil }},
	{"TRIPBOOK_SERVER_LISTEN", func(cfg *Config, v string) error { cfg.Server.Listen = v; return nil }},
	{"TRIPBOOK_SERVER_READ_TIMEOUT", durationEnv(func(cfg *Config) *time.Duration { return &cfg.Server.ReadTimeout })},
	{"TRIPBOOK_SERVER_WRITE_TIMEOUT", durationEnv(func(cfg *Config) *time.Duration { return &cfg.Server.WriteTimeout })},
	{"TRIPBOOK_SERVER_SHUTDOWN_TIMEOUT", durationEnv(func(cfg *Config) *time.Duration { return &cfg.Server.ShutdownTimeout })},
	{"TRIPBOOK_SERVER_RATE_PER_SECOND", intEnv(func(cfg *Config) *int { return &cfg.Server.RatePerSecond })},
	{"TRIPBOOK_SERVER_RATE_BURST", intEnv(func(cfg *Config) *int { return &cfg.Server.RateBurst })},
	{"TRIPBOOK_LOG_LEVEL", func(cfg *Config, v string) error { cfg.Logging.Level = v; return nil }},
	{"TRIPBOOK_LOG_FILE", func(cfg *Config, v string) error { cfg.Logging.File = v; return nil }},
	{"TRIPBOOK_LOG_MAX_SIZE_MB", intEnv(func(cfg *Config) *int { return &cfg.Logging.MaxSizeMB })},
	{"TRIPBOOK_LOG_MAX_FILES", intEnv(func(cfg *Config) *int { return &cfg.Logging.MaxFiles })},
	{"TRIPBOOK_LOG_MAX_AGE_DAYS", intEnv(func(cfg *Config) *int { return &cfg.Logging.MaxAgeDays })},
	{"TRIPBOOK_LOG_COMPRESS", boolEnv(func(cfg *Config) *bool { return &cfg.Logging.Compress })},
}

func applyEnvOverrides(cfg *Config, opts LoadOptions, applied *[]string) error {
	for _, binding := range envBindings {
		value, ok := lookupEnv(opts, binding.key)
		if !ok {
			continue
		}
		if err := binding.apply(cfg, value); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, binding.key, err)
		}
		*applied = append(*applied, binding.key)
	}
	return nil
}

func boolEnv(target func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*target(cfg) = parsed
		return nil
	}
}

func intEnv(target func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*target(cfg) = parsed
		return nil
	}
}

func durationEnv(target func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*target(cfg) = parsed
		return nil
	}
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides) {
	setValue(flags.DataFile, &cfg.Storage.DataFile)
	setValue(flags.Listen, &cfg.Server.Listen)
	setValue(flags.LogLevel, &cfg.Logging.Level)
}

func resolveDataPaths(cfg *Config, opts LoadOptions) error {
	if cfg.Storage.DataFile != "" && cfg.Audit.JournalFile != "" {
		return nil
	}
	home, err := Home(opts.Env)
	if err != nil {
		return err
	}
	if cfg.Storage.DataFile == "" {
		cfg.Storage.DataFile = filepath.Join(home, defaultDataFileName)
	}
	if cfg.Audit.JournalFile == "" {
		cfg.Audit.JournalFile = filepath.Join(home, defaultJournalFileName)
	}
	return nil
}

func validate(cfg Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of debug, info, warn, error", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return fmt.Errorf("%w: server.listen is required", ErrInvalidConfig)
	}
	if cfg.Server.ReadTimeout <= 0 || cfg.Server.WriteTimeout <= 0 || cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server timeouts must be > 0", ErrInvalidConfig)
	}
	if cfg.Server.RatePerSecond < 0 || cfg.Server.RateBurst < 0 {
		return fmt.Errorf("%w: server rate limits must be >= 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxSizeMB <= 0 || cfg.Logging.MaxFiles <= 0 {
		return fmt.Errorf("%w: logging.max_size_mb and logging.max_files must be > 0", ErrInvalidConfig)
	}
	if cfg.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("%w: logging.max_age_days must be >= 0", ErrInvalidConfig)
	}
	return nil
}

func setDuration(field string, raw *string, target *time.Duration) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	return nil
}

func setValue[T any](raw *T, target *T) {
	if raw == nil {
		return
	}
	*target = *raw
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "TRIPBOOK_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath(opts)
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	return lookupEnvMap(opts.Env, key)
}

func lookupEnvMap(env map[string]string, key string) (string, bool) {
	if env != nil {
		if value, ok := env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}

// Home is the directory holding the record file and the audit journal.
func Home(env map[string]string) (string, error) {
	if value, ok := lookupEnvMap(env, "TRIPBOOK_HOME"); ok && value != "" {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Tripbook"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnvMap(env, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "tripbook"), nil
}

func defaultConfigPath(opts LoadOptions) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Tripbook", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := lookupEnv(opts, "XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "tripbook", "config.toml"), nil
}
