package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankfeed-dev/bankfeed/internal/categories"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "bankfeed-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "bankfeed")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/bankfeed")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runBankfeed(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func initWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := runBankfeed(t, "init", dir, "--workspace", "personal")
	require.NoError(t, err, out)
	return dir
}

func writeExport(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestInit_CreatesFiles(t *testing.T) {
	dir := initWorkspace(t)

	data, err := os.ReadFile(filepath.Join(dir, "bankfeed.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: personal")
	assert.Contains(t, string(data), "chase-checking")

	f, err := os.Open(filepath.Join(dir, "categories.csv"))
	require.NoError(t, err)
	defer f.Close()

	cats, err := categories.ReadCategories(f)
	require.NoError(t, err)
	assert.Len(t, cats, 11)
}

func TestInit_RequiresWorkspace(t *testing.T) {
	_, err := runBankfeed(t, "init", t.TempDir())
	require.Error(t, err, "init without --workspace should fail")
}

func TestImport_DryRun(t *testing.T) {
	dir := initWorkspace(t)
	csvPath := writeExport(t, dir, "export.csv",
		"Posting Date,Description,Amount\n"+
			"03/05/2025,STARBUCKS,-4.50\n")

	out, err := runBankfeed(t, "import", csvPath, "--dir", dir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "needs-more-data (1)")
	assert.Contains(t, out, "Dry run")

	// Nothing was written to the ledger.
	_, statErr := os.Stat(filepath.Join(dir, "ledger.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestImport_CommitWithLearnedRule(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runBankfeed(t, "rules", "add", "STARBUCKS",
		"--dir", dir, "--category", "2", "--name", "Starbucks")
	require.NoError(t, err, out)

	csvPath := writeExport(t, dir, "export.csv",
		"Posting Date,Description,Amount\n"+
			"03/05/2025,STARBUCKS,-4.50\n"+
			"03/06/2025,UNKNOWN SHOP,-10.00\n")

	out, err = runBankfeed(t, "import", csvPath, "--dir", dir, "--commit")
	require.NoError(t, err, out)

	assert.Contains(t, out, "ready (1)")
	assert.Contains(t, out, "Starbucks")
	assert.Contains(t, out, "Committed 1 entries")

	ledgerData, err := os.ReadFile(filepath.Join(dir, "ledger.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(ledgerData), "Starbucks")
	assert.NotContains(t, string(ledgerData), "UNKNOWN SHOP")

	logData, err := os.ReadFile(filepath.Join(dir, "import-log.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "import")
	assert.Contains(t, string(logData), "commit")
}

func TestImport_SecondRunFlagsDuplicates(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runBankfeed(t, "rules", "add", "STARBUCKS",
		"--dir", dir, "--category", "2")
	require.NoError(t, err, out)

	csvPath := writeExport(t, dir, "export.csv",
		"Posting Date,Description,Amount\n"+
			"03/05/2025,STARBUCKS,-4.50\n")

	out, err = runBankfeed(t, "import", csvPath, "--dir", dir, "--commit")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Committed 1 entries")

	out, err = runBankfeed(t, "import", csvPath, "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "possible-duplicate (1)")
}

func TestImport_LearnWritesRules(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runBankfeed(t, "rules", "add", "WALMART",
		"--dir", dir, "--category", "1", "--name", "Walmart")
	require.NoError(t, err, out)

	csvPath := writeExport(t, dir, "export.csv",
		"Posting Date,Description,Amount\n"+
			"03/05/2025,PURCHASE VISA WALMART #4821,-52.10\n")

	out, err = runBankfeed(t, "import", csvPath, "--dir", dir, "--commit", "--learn")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Learned 1 merchant rules")

	out, err = runBankfeed(t, "rules", "list", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "WALMART")
	assert.Contains(t, out, "Walmart")
}

func TestImport_UnknownProfile(t *testing.T) {
	dir := initWorkspace(t)
	csvPath := writeExport(t, dir, "export.csv", "Posting Date,Description,Amount\n")

	out, err := runBankfeed(t, "import", csvPath, "--dir", dir, "--profile", "missing")
	require.Error(t, err)
	assert.Contains(t, out, `profile "missing" not found`)
}

func TestRulesList_Empty(t *testing.T) {
	dir := initWorkspace(t)

	out, err := runBankfeed(t, "rules", "list", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No learned rules yet")
}
