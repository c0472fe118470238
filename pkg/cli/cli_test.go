package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
)

// writeConfig creates a data directory and a config file pointing at it.
func writeConfig(t *testing.T, driver string) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "pagedb.yaml")

	yaml := fmt.Sprintf("data_dir: %s\nstore:\n  driver: %s\n", dataDir, driver)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))
	t.Cleanup(func() { _ = logging.Close() })
	return cfgPath, dataDir
}

func execute(cfgPath string, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "pagedb", cmd.Use)

	for _, name := range []string{"seed", "tables", "rows", "page", "log", "inspect"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	user := cmd.PersistentFlags().Lookup("user")
	require.NotNil(t, user)
	assert.Equal(t, "pagedb", user.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")

	_, err := execute(cfgPath, "--format", "xml", "tables")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(filepath.Join(t.TempDir(), "missing.yaml"), "tables")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, dberr.Is(err, dberr.CodeIOFailure))
}

func TestTables_Empty(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")

	out, err := execute(cfgPath, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "No tables found.")
}

func TestSeedAndRead(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfgPath, _ := writeConfig(t, driver)

			out, err := execute(cfgPath, "--format", "json", "seed", "--rows", "10")
			require.NoError(t, err)
			var seeded SeedResult
			require.NoError(t, json.Unmarshal([]byte(out), &seeded))
			assert.Equal(t, "demo", seeded.Database)
			assert.Equal(t, "accounts", seeded.Table)
			assert.Equal(t, 10, seeded.Rows)
			assert.Equal(t, uint32(1), seeded.Pages)

			out, err = execute(cfgPath, "--format", "json", "tables")
			require.NoError(t, err)
			var tables []TableResult
			require.NoError(t, json.Unmarshal([]byte(out), &tables))
			require.Len(t, tables, 1)
			assert.Equal(t, []string{"id", "owner", "balance", "opened", "active", "note"}, tables[0].Columns)
			assert.Equal(t, uint32(1), tables[0].Pages)

			out, err = execute(cfgPath, "--format", "json", "rows", "-t", "accounts", "--limit", "2")
			require.NoError(t, err)
			var rows []map[string]*string
			require.NoError(t, json.Unmarshal([]byte(out), &rows))
			require.Len(t, rows, 2)
			require.NotNil(t, rows[0]["id"])
			assert.Equal(t, "1", *rows[0]["id"])
			assert.Equal(t, "grace", *rows[0]["owner"])
			assert.Nil(t, rows[0]["note"])
			require.NotNil(t, rows[1]["note"])
			assert.Equal(t, "account 2", *rows[1]["note"])

			out, err = execute(cfgPath, "--format", "json", "page", "count", "-t", "demo.accounts",
				"--column", "owner", "--value", "grace", "--addresses")
			require.NoError(t, err)
			var count CountResult
			require.NoError(t, json.Unmarshal([]byte(out), &count))
			assert.Equal(t, 2, count.Count)
			require.Len(t, count.Addresses, 2)
			assert.ElementsMatch(t, []primitives.RowID{1, 8},
				[]primitives.RowID{count.Addresses[0].RowID, count.Addresses[1].RowID})
		})
	}
}

func TestPageCommands_Text(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "seed", "--rows", "10")
	require.NoError(t, err)

	out, err := execute(cfgPath, "rows", "-t", "accounts", "--columns", "id,owner", "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "owner")
	assert.Contains(t, out, "barbara")
	assert.NotContains(t, out, "ken")

	out, err = execute(cfgPath, "page", "get", "-t", "accounts", "--row", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "ken")
	assert.Contains(t, out, "account 4")

	out, err = execute(cfgPath, "page", "count", "-t", "accounts", "--column", "active", "--value", "false")
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows with active = false")

	out, err = execute(cfgPath, "page", "dump", "-t", "accounts")
	require.NoError(t, err)
	assert.Contains(t, out, "Row copies")
	assert.Contains(t, out, "Live rows")
	assert.Contains(t, out, "margaret")
}

func TestPageDump_JSON(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "seed", "--rows", "5")
	require.NoError(t, err)

	out, err := execute(cfgPath, "--format", "json", "page", "dump", "-t", "accounts", "-p", "0")
	require.NoError(t, err)

	var dump PageDump
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	assert.Equal(t, "5", dump.Header["rows"])
	require.Len(t, dump.Slots, 5)
	for i, s := range dump.Slots {
		assert.Equal(t, uint32(i+1), s.RowID) // #nosec G115
		assert.Equal(t, "local", s.Type)
		assert.Equal(t, "live", s.Status)
	}
	assert.Equal(t, uint32(41), dump.Slots[0].Offset)
	require.Len(t, dump.Rows, 5)
}

func TestPageGet_UnknownRow(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "seed", "--rows", "3")
	require.NoError(t, err)

	_, err = execute(cfgPath, "page", "get", "-t", "accounts", "--row", "99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, dberr.Is(err, dberr.CodeRowNotFound))
}

func TestPageCount_InvalidValue(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "seed", "--rows", "3")
	require.NoError(t, err)

	_, err = execute(cfgPath, "page", "count", "-t", "accounts", "--column", "id", "--value", "abc")
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.CodeInvalidLiteral))
}

func TestUnknownTable(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")

	_, err := execute(cfgPath, "rows", "-t", "demo.missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, dberr.Is(err, dberr.CodeTableNotFound))
}

func TestSeed_ExistingTable(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "seed", "--rows", "1")
	require.NoError(t, err)

	_, err = execute(cfgPath, "seed", "--rows", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(cfgPath, "seed", "--table", "ledger", "--rows", "1")
	require.NoError(t, err)

	out, err := execute(cfgPath, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "demo.accounts")
	assert.Contains(t, out, "demo.ledger")
}

func TestLogDump(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")
	_, err := execute(cfgPath, "--user", "alice", "seed", "--rows", "3")
	require.NoError(t, err)

	out, err := execute(cfgPath, "--format", "json", "log", "dump", "--locks")
	require.NoError(t, err)

	var dump LogDump
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	assert.Equal(t, 5, dump.Entries)
	assert.False(t, dump.TornTail)
	require.Len(t, dump.Batches, 1)

	b := dump.Batches[0]
	assert.True(t, b.Complete)
	require.Len(t, b.Entries, 5)
	ops := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		ops[i] = e.Op
		assert.Equal(t, uint32(i+1), e.Sequence) // #nosec G115
		assert.Equal(t, "alice", e.User)
		assert.NotEmpty(t, e.Completed)
	}
	assert.Equal(t, []string{"create_database", "create_table", "insert", "insert", "insert"}, ops)

	// database lock first, then the table, then the three rows
	require.Len(t, b.Locks, 5)
	assert.Contains(t, b.Locks[0].Lock, "exclusive lock on database")
	assert.Contains(t, b.Locks[1].Lock, "table")
	assert.Contains(t, b.Locks[4].Lock, "row=3")
	for _, l := range b.Locks {
		assert.Equal(t, "10s", l.Timeout, l.Lock)
	}
}

func TestLogDump_LockTimeoutsFromConfig(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "file")
	yaml := fmt.Sprintf("data_dir: %s\nlocks:\n  read_timeout: 2s\n  write_timeout: 750ms\n", dataDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	_, err := execute(cfgPath, "seed", "--rows", "1")
	require.NoError(t, err)

	out, err := execute(cfgPath, "log", "dump", "--locks")
	require.NoError(t, err)
	assert.Contains(t, out, "wait<=750ms")
	assert.NotContains(t, out, "wait<=10s")

	out, err = execute(cfgPath, "log", "dump")
	require.NoError(t, err)
	assert.NotContains(t, out, "wait<=")
}

func TestLogDump_IncompleteBatch(t *testing.T) {
	cfgPath, dataDir := writeConfig(t, "file")

	log, err := wal.Open(primitives.Filepath(filepath.Join(dataDir, "transactions.log")), 0)
	require.NoError(t, err)
	db := uuid.New()
	done := log.BeginBatch()
	_, err = log.Append(done, db, entry.NewCreateDatabase(db, "done"), "ops")
	require.NoError(t, err)
	require.NoError(t, log.CompleteBatch(done, time.Now()))
	open := log.BeginBatch()
	_, err = log.Append(open, db, entry.NewDropDatabase(db, "done"), "ops")
	require.NoError(t, err)
	require.NoError(t, log.Close())

	out, err := execute(cfgPath, "log", "dump")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "2 entries in 2 batches")
	assert.Contains(t, out, "INCOMPLETE")
	assert.Contains(t, out, "drop_database")

	out, err = execute(cfgPath, "log", "dump", "--incomplete")
	require.Error(t, err)
	assert.Contains(t, out, "2 entries in 1 batches")
	assert.NotContains(t, out, "create_database")
}

func TestLogDump_MissingLog(t *testing.T) {
	cfgPath, _ := writeConfig(t, "file")

	_, err := execute(cfgPath, "log", "dump")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
