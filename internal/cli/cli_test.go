package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
)

const peopleCSV = "id,name\n1,Alice\n2,Bob\n"

// setupEnv points the configuration at a sqlite database in a temp dir and
// isolates HOME so no real config file is read.
func setupEnv(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "cli")
	t.Setenv("DB_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DB_IDENTITY_COLUMN", "row_id")
	t.Setenv("DB_PASSWORD", "unused")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "prechart2db version")
}

func TestLoadPrintsSummary(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "people.csv", peopleCSV)

	out, err := run(t, "", "load", path, "--table", "staff")
	require.NoError(t, err)
	assert.Contains(t, out, "people.csv → staff")
	assert.Contains(t, out, "2 rows, 2 columns, 0 missing values")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "int")
}

func TestLoadMissingFile(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "", "load", filepath.Join(dir, "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, errorText(err), "FILE004")
}

func TestOverwriteThenAppend(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "people.csv", peopleCSV)

	out, err := run(t, "n\n", "overwrite", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Overwrite cancelled.")

	// Append before the database file exists.
	_, err = run(t, "", "append", path)
	assert.ErrorIs(t, err, dbsync.ErrConnection)

	out, err = run(t, "yes\n", "overwrite", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Table 'people' overwritten successfully.")

	out, err = run(t, "", "append", path)
	require.NoError(t, err)
	assert.Contains(t, out, "All 2 rows of the file already exist in the database. 0 rows inserted, 2 skipped")

	more := writeFile(t, dir, "people.csv", peopleCSV+"3,Carol\n")
	out, err = run(t, "", "append", more)
	require.NoError(t, err)
	assert.Contains(t, out, "Of 3 rows in the file, 1 rows inserted, 2 skipped")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "people.csv", peopleCSV)
	other := filepath.Join(dir, "other")

	_, err := run(t, "", "overwrite", path, "--yes", "--data-dir", other, "--database", "alt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(other, "alt.db"))
}

func TestInvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_DRIVER", "oracle")
	_, err := run(t, "", "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestLoginStoresPassword(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_USER", "loader")

	out, err := run(t, "s3cret\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Password for loader stored.")

	pw, err := keyring.Get(config.KeyringService, "loader")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	_, err = run(t, "", "logout")
	require.NoError(t, err)
	_, err = keyring.Get(config.KeyringService, "loader")
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	_, err = run(t, "\n", "login")
	assert.Error(t, err)
}

func TestLoadFlagsOptions(t *testing.T) {
	f := loadFlags{delimiter: "tab", encoding: "cp949", sheet: "Q1"}
	opts := f.options()
	assert.Equal(t, "\t", opts.Delimiter)
	assert.Equal(t, "cp949", opts.Encoding)
	assert.Equal(t, "Q1", opts.Sheet)
}
