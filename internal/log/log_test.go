package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactionPhoneNumberField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "Phone Number", "555-0100")
	require.Equal(t, "[REDACTED]", out["Phone Number"])
}

func TestRedactionAddressLines(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "Address Line 2", "Flat 4")
	require.Equal(t, "[REDACTED]", out["Address Line 2"])
}

func TestRedactionZipCodeField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "zip-code", "02139")
	require.Equal(t, "[REDACTED]", out["zip-code"])
}

func TestRedactionPasswordField(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "password", "not-safe")
	require.Equal(t, "[REDACTED]", out["password"])
}

func TestRedactionInsideGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("test", slog.Group("client", slog.String("phone", "555"), slog.String("City", "Oslo")))

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	group := out["client"].(map[string]any)
	require.Equal(t, "[REDACTED]", group["phone"])
	require.Equal(t, "Oslo", group["City"])
}

func TestRedactionWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewJSONHandler(&buf, nil))).With("email", "a@b.c")
	logger.Info("test")

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	require.Equal(t, "[REDACTED]", out["email"])
}

func TestNonSensitiveFieldsPassThrough(t *testing.T) {
	t.Parallel()
	out := logSingleField(t, "City", "Reykjavik")
	require.Equal(t, "Reykjavik", out["City"])
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer func() { require.NoError(t, closer.Close()) }()

	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.Contains(t, buf.String(), `"msg":"kept"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, _, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestNewLoggerWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "tripbook.log")
	logger, closer, err := New(Options{Level: "info", RotationConfig: RotationConfig{File: path}})
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closer.Close())

	files, err := filepath.Glob(filepath.Join(filepath.Dir(path), "tripbook*"))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestLogRotationCreatesNewFileAfterTenMiB(t *testing.T) {
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "tripbook.log")

	writer, err := NewRotatingWriter(RotationConfig{
		File:      logPath,
		MaxSizeMB: 10,
		MaxFiles:  5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	chunk := bytes.Repeat([]byte("a"), 1024*1024)
	for i := 0; i < 11; i++ {
		_, err = writer.Write(chunk)
		require.NoError(t, err)
	}

	files, err := filepath.Glob(filepath.Join(logDir, "tripbook*"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 2)
}

func logSingleField(t *testing.T, key, value string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewRedactingHandler(base))
	logger.Info("test", key, value)

	line := bytes.TrimSpace(buf.Bytes())
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(line, &out))
	return out
}

func TestRotatingWriterCarriesRetentionSettings(t *testing.T) {
	t.Parallel()

	writer, err := NewRotatingWriter(RotationConfig{
		File:       filepath.Join(t.TempDir(), "logs", "tripbook.log"),
		MaxAgeDays: 14,
		Compress:   true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	require.Equal(t, defaultMaxSizeMB, writer.MaxSize)
	require.Equal(t, defaultMaxFiles, writer.MaxBackups)
	require.Equal(t, 14, writer.MaxAge)
	require.True(t, writer.Compress)
}
