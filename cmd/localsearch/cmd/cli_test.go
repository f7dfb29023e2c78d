package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns its combined
// output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"init", "index", "search", "watch", "status", "check", "reset", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestVersionCmd_ShortOutput(t *testing.T) {
	out, err := runCLI(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestInitCmd_WritesConfigOnce(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	out, err := runCLI(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, ".localsearch.yaml")
	assert.FileExists(t, filepath.Join(tmpDir, ".localsearch.yaml"))

	_, err = runCLI(t, "init")
	require.Error(t, err, "a second init must not overwrite the config")
}

func TestSearchCmd_WithoutIndexFails(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	_, err := runCLI(t, "init")
	require.NoError(t, err)

	_, err = runCLI(t, "search", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestCLI_IndexSearchStatusCheckReset(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	_, err := runCLI(t, "init")
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(tmpDir, "notes", "recipe.md"),
		[]byte("Grilled peach salad with burrata. Halve the peaches, grill cut side down, and finish with basil and olive oil."),
		0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(tmpDir, "notes", "budget.md"),
		[]byte("Quarterly budget review. Travel spend is over plan; subscriptions need an audit next month."),
		0o644))

	// Index with static embeddings so no external service is needed.
	out, err := runCLI(t, "index", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 documents")

	dataDir := filepath.Join(tmpDir, ".localsearch")
	assert.FileExists(t, filepath.Join(dataDir, "metadata.db"))
	assert.FileExists(t, filepath.Join(dataDir, "bm25.json"))
	assert.FileExists(t, filepath.Join(dataDir, "vectors.hnsw"))

	// A second run is a no-op but still succeeds.
	out, err = runCLI(t, "index", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 2 documents")

	out, err = runCLI(t, "search", "--offline", "--min-score", "0", "grilled peach salad")
	require.NoError(t, err)
	assert.Contains(t, out, "notes/recipe.md")

	out, err = runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:       2")
	assert.Contains(t, out, "consistent")

	out, err = runCLI(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexes are consistent")

	out, err = runCLI(t, "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")
	assert.NoDirExists(t, dataDir)
}

func TestResetCmd_AbortsWithoutConfirmation(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	_, err := runCLI(t, "init")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".localsearch"), 0o755))

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(bytes.NewBufferString("n\n"))
	cmd.SetArgs([]string{"reset"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Aborted")
	assert.DirExists(t, filepath.Join(tmpDir, ".localsearch"))
}
