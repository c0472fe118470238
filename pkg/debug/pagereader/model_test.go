package pagereader

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/storage/pagefile"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

func notesSchema() *schema.TableSchema {
	return schema.NewSchemaBuilder(7, "notes").
		InDatabase(uuid.MustParse("7a7a7a7a-0000-4000-8000-000000000007"), "journal").
		AddColumn("id", types.IntType, 0).
		AddColumn("body", types.VarcharType, 100).
		MustBuild()
}

// openStore writes two pages of notes: rows 1-2 on page 0, row 3 on page 1.
func openStore(t *testing.T, ts *schema.TableSchema) storage.PageStore {
	t.Helper()
	ctx := context.Background()
	store, err := pagefile.Open(primitives.Filepath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	for pageNo, ids := range [][]primitives.RowID{{1, 2}, {3}} {
		id, err := store.AllocatePage(ctx, ts.DatabaseID, ts.TableID)
		require.NoError(t, err)
		require.Equal(t, primitives.PageID(pageNo), id) // #nosec G115

		p := page.NewPage(id, ts, page.UserDataPage)
		for _, rowID := range ids {
			row, err := tuple.NewBuilder(ts).Set("id", int(rowID)).Set("body", "note").Local(rowID)
			require.NoError(t, err)
			_, err = p.AddRow(row)
			require.NoError(t, err)
		}
		require.NoError(t, storage.SavePage(ctx, store, p))
	}
	return store
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send feeds msg to m and runs any command it returns until the model
// settles.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if _, quit := out.(tea.QuitMsg); quit {
			return m
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func start(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(m.Init()())
	return next.(Model)
}

func TestModel_NavigatesPages(t *testing.T) {
	ts := notesSchema()
	m := start(t, New(context.Background(), openStore(t, ts), ts))

	require.NoError(t, m.Err())
	assert.Equal(t, primitives.PageID(0), m.PageID())
	assert.Len(t, m.slots, 2)
	assert.Contains(t, m.View(), "Page 1/2")

	m = send(t, m, runes("n"))
	assert.Equal(t, primitives.PageID(1), m.PageID())
	assert.Len(t, m.slots, 1)

	// already on the last page
	m = send(t, m, runes("n"))
	assert.Equal(t, primitives.PageID(1), m.PageID())

	m = send(t, m, runes("g"))
	assert.Equal(t, primitives.PageID(0), m.PageID())
	m = send(t, m, runes("G"))
	assert.Equal(t, primitives.PageID(1), m.PageID())
	m = send(t, m, runes("p"))
	assert.Equal(t, primitives.PageID(0), m.PageID())
}

func TestModel_ShowsRowBytes(t *testing.T) {
	ts := notesSchema()
	m := start(t, New(context.Background(), openStore(t, ts), ts))

	m = send(t, m, runes("j"))
	assert.Equal(t, 1, m.cursor)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, bytesView, m.view)
	// row 2 starts right after row 1: 41 + (30+4+4+4)
	assert.Contains(t, m.View(), "Row 2 at offset 83")
	assert.Contains(t, m.View(), "note|")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, slotsView, m.view)
}

func TestModel_Quit(t *testing.T) {
	ts := notesSchema()
	m := start(t, New(context.Background(), openStore(t, ts), ts))

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_EmptyTable(t *testing.T) {
	ts := notesSchema()
	store, err := pagefile.Open(primitives.Filepath(t.TempDir()))
	require.NoError(t, err)
	defer store.Close()

	m := start(t, New(context.Background(), store, ts))
	require.NoError(t, m.Err())
	assert.Contains(t, m.View(), "no pages")
}

func TestModel_LoadError(t *testing.T) {
	ts := notesSchema()
	m := New(context.Background(), openStore(t, ts), ts)

	next, _ := m.Update(m.loadPage(9)())
	m = next.(Model)
	assert.True(t, dberr.Is(m.Err(), dberr.CodePageNotFound))
	assert.Contains(t, m.View(), "Error")
}
