package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// StoreSummary describes the record file without including any record
// contents.
type StoreSummary struct {
	DataFile  string         `json:"data_file"`
	Exists    bool           `json:"exists"`
	SizeBytes int64          `json:"size_bytes"`
	Records   int            `json:"records"`
	Skipped   int            `json:"skipped"`
	ByType    map[string]int `json:"by_type,omitempty"`
	NextID    int64          `json:"next_id"`
}

type Bundle struct {
	GeneratedAt string            `json:"generated_at"`
	GOOS        string            `json:"goos"`
	GOARCH      string            `json:"goarch"`
	GoVersion   string            `json:"go_version"`
	Version     map[string]any    `json:"version,omitempty"`
	Paths       map[string]string `json:"paths,omitempty"`
	Store       *StoreSummary     `json:"store,omitempty"`
	Audit       map[string]any    `json:"audit,omitempty"`
	Checks      []Check           `json:"checks,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
}

func NewBundle() Bundle {
	return Bundle{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		GoVersion:   runtime.Version(),
	}
}

// AddCheck appends a passing check when err is nil and a failing one
// carrying err's message otherwise.
func (b *Bundle) AddCheck(name string, err error, okMessage string) {
	if err != nil {
		b.Checks = append(b.Checks, Check{Name: name, OK: false, Message: err.Error()})
		return
	}
	b.Checks = append(b.Checks, Check{Name: name, OK: true, Message: okMessage})
}

func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// SanitizePath replaces the user's home directory prefix with "~" so bundles
// can be shared without leaking account names.
func SanitizePath(path, home string) string {
	if path == "" || home == "" {
		return path
	}
	home = filepath.Clean(home)
	cleaned := filepath.Clean(path)
	if cleaned == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(cleaned, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rest)
	}
	return path
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
