package commands_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/importlog"
	"github.com/cleared-dev/stmtimport/internal/rules"
)

const account = "chk-1234"

type project struct {
	dir       string
	cfg       string
	statement string
}

func newProject(t *testing.T) project {
	t.Helper()
	dir := t.TempDir()
	out, err := runStmtimport(t, "init", dir, "--account", account)
	require.NoError(t, err, out)

	statement, err := filepath.Abs("../../testdata/checking.ofx")
	require.NoError(t, err)
	return project{dir: dir, cfg: filepath.Join(dir, config.FileName), statement: statement}
}

func (p project) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runStmtimport(t, append(args, "--config", p.cfg)...)
}

// firstBatchID returns the id column of the first row of `batch list`.
func (p project) firstBatchID(t *testing.T) string {
	t.Helper()
	out, err := p.run(t, "batch", "list", "--account", account)
	require.NoError(t, err, out)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] != "ID" && strings.Count(fields[0], "-") == 4 {
			return fields[0]
		}
	}
	t.Fatalf("no batch in output:\n%s", out)
	return ""
}

func TestPreview(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "preview", p.statement, "--account", account)
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 new, 0 conflicts, 0 outside window, 0 unreadable")
	assert.Contains(t, out, "CITY POWER & LIGHT AUTOPAY")

	ledger, err := p.run(t, "ledger", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, ledger, "No ledger entries.")
}

func TestPreview_Window(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "preview", p.statement, "--account", account, "--from", "2024-01-06")
	require.NoError(t, err, out)
	assert.Contains(t, out, "2 new, 0 conflicts, 1 outside window")
}

func TestPreview_UnknownAccount(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "preview", p.statement, "--account", "nope")
	require.Error(t, err)
	assert.Contains(t, out, `unknown account "nope"`)
}

func TestImport_CommitAndRetry(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 inserted, 0 replaced, 0 kept")

	ledger, err := p.run(t, "ledger", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, ledger, "ACME PAYROLL")
	assert.Contains(t, ledger, "120.00")

	// Re-importing the same statement only produces conflicts kept as is.
	out, err = p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 new, 3 conflicts")
	assert.Contains(t, out, "nothing to import, ledger unchanged")

	entries, err := importlog.Read(filepath.Join(p.dir, "logs"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, importlog.ActionCommit, entries[0].Action)
	assert.Equal(t, 3, entries[0].Inserted)
}

func TestImport_Replace(t *testing.T) {
	p := newProject(t)

	_, err := p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err)

	out, err := p.run(t, "import", p.statement, "--account", account, "--replace", "0")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 inserted, 1 replaced, 2 kept")

	out, err = p.run(t, "import", p.statement, "--account", account, "--replace", "9")
	require.Error(t, err)
	assert.Contains(t, out, "failed to import")
}

func TestImport_ReplaceNeedsSingleFile(t *testing.T) {
	p := newProject(t)

	out, err := p.run(t, "import", p.statement, p.statement, "--account", account, "--replace", "0")
	require.Error(t, err)
	assert.Contains(t, out, "single statement")
}

func TestImport_UnsupportedFile(t *testing.T) {
	p := newProject(t)
	path := filepath.Join(p.dir, "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	out, err := p.run(t, "import", path, "--account", account)
	require.Error(t, err)
	assert.Contains(t, out, "unsupported statement format")
}

func TestImport_AppliesRules(t *testing.T) {
	p := newProject(t)
	rulesYAML := "rules:\n" +
		"  - keyword: payroll\n" +
		"    direction: inflow\n" +
		"    bank_scope: global\n" +
		"    category: income\n"
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, rules.DefaultPath), []byte(rulesYAML), 0o644))

	_, err := p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err)

	ledger, err := p.run(t, "ledger", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, ledger, "income")
	assert.Contains(t, ledger, "uncategorized")
}

func TestImport_Inbox(t *testing.T) {
	p := newProject(t)
	data, err := os.ReadFile(p.statement)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "import", "jan.ofx"), data, 0o644))

	out, err := p.run(t, "import", "--inbox", "--account", account)
	require.NoError(t, err, out)
	assert.Contains(t, out, "jan.ofx: committed batch")

	_, err = os.Stat(filepath.Join(p.dir, "import", "processed", "jan.ofx"))
	assert.NoError(t, err, "statement should be moved to processed")

	out, err = p.run(t, "import", "--inbox", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, out, "No statements to import.")
}

func TestBatch_ShowAndDelete(t *testing.T) {
	p := newProject(t)

	_, err := p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err)
	id := p.firstBatchID(t)

	out, err := p.run(t, "batch", "show", id, "--source")
	require.NoError(t, err, out)
	assert.Contains(t, out, "checking.ofx")
	assert.Contains(t, out, "Records:  3")
	assert.Contains(t, out, "<STMTTRN>")

	out, err = p.run(t, "batch", "delete", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 ledger entries removed")

	ledger, err := p.run(t, "ledger", "--account", account)
	require.NoError(t, err)
	assert.Contains(t, ledger, "No ledger entries.")

	out, err = p.run(t, "batch", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "not found, nothing deleted")

	entries, err := importlog.Read(filepath.Join(p.dir, "logs"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, importlog.ActionDelete, entries[1].Action)
	assert.Equal(t, account, entries[1].AccountID)
	assert.Equal(t, 3, entries[1].Removed)

	// The statement imports cleanly again once its batch is gone.
	out, err = p.run(t, "import", p.statement, "--account", account)
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 inserted")
}

func TestBatch_ShowUnknown(t *testing.T) {
	p := newProject(t)

	_, err := p.run(t, "batch", "show", "nope")
	require.Error(t, err)
}
