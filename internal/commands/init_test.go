package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/rules"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "stmtimport-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "stmtimport")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/stmtimport")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runStmtimport(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runStmtimport(t, "init", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized stmtimport project")

	expectedDirs := []string{
		"rules",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}

	_, err = os.Stat(filepath.Join(dir, "ledger.db"))
	assert.NoError(t, err, "database should be created")
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runStmtimport(t, "init", dir, "--account", "chk-1234", "--account", "sav-9")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.KnowsAccount("chk-1234"))
	assert.True(t, cfg.KnowsAccount("sav-9"))
	assert.False(t, cfg.KnowsAccount("other"))
}

func TestInit_EmptyRules(t *testing.T) {
	dir := t.TempDir()
	_, err := runStmtimport(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, rules.DefaultPath))
	require.NoError(t, err)
	parsed, err := rules.Parse(data)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runStmtimport(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	contents := string(data)

	for _, pattern := range []string{"ledger.db", ".env", "import/processed/"} {
		assert.Contains(t, contents, pattern, ".gitignore should contain %s", pattern)
	}
}

func TestInit_GitignoreFollowsDatabase(t *testing.T) {
	dir := t.TempDir()
	out, err := runStmtimport(t, "init", dir, "--db", "data/books.db")
	require.NoError(t, err, out)

	_, err = os.Stat(filepath.Join(dir, "data", "books.db"))
	require.NoError(t, err, "database should be created at the configured path")

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "data/books.db\n")
	assert.Contains(t, contents, "data/books.db-*\n")
	assert.NotContains(t, contents, "ledger.db")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "data/books.db", cfg.Database.DSN)
}

func TestInit_AlreadyInitialized(t *testing.T) {
	dir := t.TempDir()
	_, err := runStmtimport(t, "init", dir)
	require.NoError(t, err)

	out, err := runStmtimport(t, "init", dir)
	require.Error(t, err, "second init should fail")
	assert.Contains(t, out, "already exists")
}
