package logreader

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
	"pagedb/pkg/primitives"
)

// writeLog writes one completed batch of two entries and one open batch.
func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.log")
	log, err := wal.Open(primitives.Filepath(path), 0)
	require.NoError(t, err)

	db := uuid.New()
	done := log.BeginBatch()
	_, err = log.Append(done, db, entry.NewCreateDatabase(db, "ledger"), "ops")
	require.NoError(t, err)
	_, err = log.Append(done, db, entry.NewDropDatabase(db, "ledger"), "ops")
	require.NoError(t, err)
	require.NoError(t, log.CompleteBatch(done, time.Now()))

	open := log.BeginBatch()
	_, err = log.Append(open, db, entry.NewCreateDatabase(db, "archive"), "alice")
	require.NoError(t, err)
	require.NoError(t, log.Close())
	return path
}

func start(m Model) Model {
	next, _ := m.Update(m.Init()())
	return next.(Model)
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_ListsEntries(t *testing.T) {
	m := start(New(writeLog(t)))
	require.NoError(t, m.Err())
	require.Len(t, m.items, 3)

	view := m.View()
	assert.Contains(t, view, "create_database")
	assert.Contains(t, view, "drop_database")
	assert.Contains(t, view, "2 batches, 1 incomplete")
}

func TestModel_ShowsDetail(t *testing.T) {
	m := start(New(writeLog(t)))

	m = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.cursor)

	m = update(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.detail)
	view := m.View()
	assert.Contains(t, view, "archive")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "incomplete")

	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.detail)
}

func TestModel_Quit(t *testing.T) {
	m := start(New(writeLog(t)))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_MissingLog(t *testing.T) {
	m := start(New(filepath.Join(t.TempDir(), "missing.log")))
	assert.True(t, dberr.Is(m.Err(), dberr.CodeIOFailure))
	assert.Contains(t, m.View(), "Error")
}
