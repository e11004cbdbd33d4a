package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommandOutputsBuildInfo(t *testing.T) {

	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	require.Contains(t, out, "version=1.2.3")
	require.Contains(t, out, "commit=abc123")
	require.Contains(t, out, "build_time=2026-02-19T00:00:00Z")
}

func TestVersionCommandOutputsJSON(t *testing.T) {

	out, err := runCLI(t, "", "--json", "version")
	require.NoError(t, err)

	var payload BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Equal(t, "1.2.3", payload.Version)
	require.Equal(t, "abc123", payload.Commit)
}

func TestVersionRejectsPositionalArguments(t *testing.T) {

	_, err := runCLI(t, "", "version", "extra")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestRootHasRequiredGlobalFlags(t *testing.T) {

	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	required := []string{"json", "quiet", "data", "config", "home", "log-level", "no-audit"}
	for _, name := range required {
		require.NotNilf(t, cmd.PersistentFlags().Lookup(name), "missing flag %q", name)
	}
}

func TestRootHasTopLevelCommands(t *testing.T) {

	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())

	for _, name := range []string{
		"client", "airline", "flight", "search", "stats", "next-id", "serve",
		"export", "import", "restore", "audit", "browse", "status", "doctor", "debug", "version",
	} {
		found, _, err := cmd.Find([]string{name})
		require.NoErrorf(t, err, "expected command %q", name)
		require.Equalf(t, name, found.Name(), "expected command %q", name)
	}

	found, _, err := cmd.Find([]string{"clients", "ls"})
	require.NoError(t, err)
	require.Equal(t, "ls", found.Name())
}

func TestUnknownFlagReturnsUsageError(t *testing.T) {

	_, err := runCLI(t, "", "--no-such-flag")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
}

func TestInvalidConfigReturnsUsageError(t *testing.T) {

	home := t.TempDir()
	configPath := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o600))

	_, err := runCLI(t, "", "--home", home, "--config", configPath, "client", "ls")
	require.Error(t, err)
	require.Equal(t, ExitCodeUsage, exitCode(err))
	require.Contains(t, err.Error(), "load config")
}

func TestMapCommandErrorCodes(t *testing.T) {

	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing"))
	require.Equal(t, ExitCodeIO, exitCode(mapCommandError(statErr)))
	require.Equal(t, ExitCodeGeneric, exitCode(mapCommandError(errors.New("boom"))))
	require.Equal(t, ExitCodeUsage, exitCode(mapCommandError(usageErrorf("bad"))))
	require.NoError(t, mapCommandError(nil))
}

func TestCompletionScripts(t *testing.T) {

	out, err := runCLI(t, "", "completion", "bash")
	require.NoError(t, err)
	require.Contains(t, out, "__start_tripbook")

	out, err = runCLI(t, "", "completion", "zsh")
	require.NoError(t, err)
	require.Contains(t, out, "#compdef tripbook")

	out, err = runCLI(t, "", "completion", "fish")
	require.NoError(t, err)
	require.Contains(t, out, "complete -c tripbook")
}

func TestGenerateManPagesCreatesFiles(t *testing.T) {

	dir := t.TempDir()
	require.NoError(t, GenerateManPages(dir, testBuildInfo()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	_, err = os.Stat(filepath.Join(dir, "tripbook.1"))
	require.NoError(t, err)
}

func TestGenerateDocsMarkdownAndUnknownFormat(t *testing.T) {

	dir := t.TempDir()
	require.NoError(t, GenerateDocs(dir, DocFormatMarkdown, testBuildInfo()))

	_, err := os.Stat(filepath.Join(dir, "tripbook.md"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "tripbook_client_add.md"))
	require.NoError(t, err)

	require.Error(t, GenerateDocs(t.TempDir(), "html", testBuildInfo()))
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out, testBuildInfo())
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildTime: "2026-02-19T00:00:00Z",
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return withExit.ExitCode()
	}
	return -1
}
