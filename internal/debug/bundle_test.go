package debug

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteBundleWritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bundle.json")
	bundle := NewBundle()
	bundle.Version = map[string]any{"version": "1.2.3"}
	bundle.Store = &StoreSummary{
		DataFile: "~/records.json",
		Exists:   true,
		Records:  4,
		ByType:   map[string]int{"client": 1, "airline": 1, "flight": 2},
		NextID:   5,
	}

	require.NoError(t, WriteBundle(path, bundle))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Bundle
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, bundle.GOOS, decoded.GOOS)
	require.Equal(t, "1.2.3", decoded.Version["version"])
	require.NotNil(t, decoded.Store)
	require.Equal(t, 2, decoded.Store.ByType["flight"])
	require.Equal(t, int64(5), decoded.Store.NextID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteBundleRequiresOutputPath(t *testing.T) {
	t.Parallel()

	err := WriteBundle("", NewBundle())
	require.Error(t, err)
	require.Contains(t, err.Error(), "output path is required")
}

func TestAddCheckAndHealthy(t *testing.T) {
	t.Parallel()

	bundle := NewBundle()
	bundle.AddCheck("config", nil, "loaded")
	require.True(t, bundle.Healthy())

	bundle.AddCheck("records", errors.New("permission denied"), "unused")
	require.False(t, bundle.Healthy())
	require.Equal(t, Check{Name: "records", OK: false, Message: "permission denied"}, bundle.Checks[1])
	require.Equal(t, "loaded", bundle.Checks[0].Message)
}

func TestSanitizePathHidesHomeDirectory(t *testing.T) {
	t.Parallel()

	home := filepath.Join(string(filepath.Separator), "home", "agent")
	require.Equal(t, filepath.Join("~", "data", "records.json"), SanitizePath(filepath.Join(home, "data", "records.json"), home))
	require.Equal(t, "~", SanitizePath(home, home))
	require.Equal(t, "/srv/records.json", SanitizePath("/srv/records.json", home))
	require.Equal(t, filepath.Join(home+"x", "f"), SanitizePath(filepath.Join(home+"x", "f"), home))
	require.Equal(t, "", SanitizePath("", home))
}
