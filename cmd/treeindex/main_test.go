package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))
	return root
}

func writeCLIConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`
[scheduler]
timezone = "UTC"

[state]
db_path = ":memory:"

[log]
level = "error"

[[projects]]
id = "docs"
root = %q
schedule = "0 3 * * *"
`, root)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MEILISEARCH_URL", "")
	t.Setenv("MEILISEARCH_API_KEY", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath, logLevel = "", ""
		runDryRun, checkPing = false, false
		checkFires = 3
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Build Mode:")
}

func TestCheckCommand(t *testing.T) {
	cfgPath := writeCLIConfig(t, writeTree(t))

	out, err := execute(t, "check", "--config", cfgPath, "--next", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "guard project")
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "0 3 * * *")
	assert.Contains(t, out, "T03:00:00Z")
}

func TestCheckCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[projects]]
id = "docs"
root = "/srv/docs"
schedule = "whenever"
`), 0o644))

	_, err := execute(t, "check", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `project "docs"`)
}

func TestRunCommand_DryRun(t *testing.T) {
	cfgPath := writeCLIConfig(t, writeTree(t))

	out, err := execute(t, "run", "docs", "--dry-run", "--config", cfgPath)
	require.NoError(t, err)
	// root, a.txt, empty
	assert.Contains(t, out, "dry run: 3 documents")
	assert.Contains(t, out, "deletion pass")
}

func TestRunCommand_UnknownProject(t *testing.T) {
	cfgPath := writeCLIConfig(t, writeTree(t))

	_, err := execute(t, "run", "nope", "--dry-run", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configured: docs")
}

func TestRunCommand_RequiresProject(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)
}
