package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/storage/sqlitestore"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

func accountsSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	return schema.NewSchemaBuilder(12, "accounts").
		InDatabase(uuid.MustParse("0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"), "ledger").
		AddColumn("id", types.IntType, 0).
		AddColumn("owner", types.VarcharType, 64).
		MustBuild()
}

func account(t *testing.T, ts *schema.TableSchema, id primitives.RowID, owner string) *tuple.Row {
	t.Helper()
	row, err := tuple.NewBuilder(ts).Set("id", int(id)).Set("owner", owner).Local(id)
	require.NoError(t, err)
	return row
}

func openStore(t *testing.T) storage.PageStore {
	t.Helper()
	s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newPages allocates n empty pages of ts.
func newPages(t *testing.T, store storage.PageStore, ts *schema.TableSchema, n int) []*page.Page {
	t.Helper()
	ctx := context.Background()
	pages := make([]*page.Page, n)
	for i := range pages {
		id, err := store.AllocatePage(ctx, ts.DatabaseID, ts.TableID)
		require.NoError(t, err)
		pages[i] = page.NewPage(id, ts, page.UserDataPage)
	}
	return pages
}

func save(t *testing.T, store storage.PageStore, pages ...*page.Page) {
	t.Helper()
	for _, p := range pages {
		require.NoError(t, storage.SavePage(context.Background(), store, p))
		assert.False(t, p.IsDirty())
	}
}

func TestFetchRow_FollowsOtherPage(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	ts := accountsSchema(t)
	pages := newPages(t, store, ts, 2)

	oldOff, err := pages[0].AddRow(account(t, ts, 7, "ada"))
	require.NoError(t, err)
	newOff, err := pages[1].AddRow(account(t, ts, 7, "ada lovelace"))
	require.NoError(t, err)
	require.NoError(t, pages[0].ForwardRow(7, newOff, pages[1].ID()))
	save(t, store, pages...)

	addr := primitives.RowAddress{DatabaseID: ts.DatabaseID, TableID: ts.TableID, PageID: 0, RowID: 7, RowOffset: oldOff}
	row, err := storage.FetchRow(ctx, store, ts, addr)
	require.NoError(t, err)
	assert.False(t, row.IsForwarded())

	owner, ok := row.Value("owner")
	require.True(t, ok)
	assert.Equal(t, "ada lovelace", string(owner.Payload()))
}

func TestFetchRow_ForwardLoop(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	ts := accountsSchema(t)
	pages := newPages(t, store, ts, 2)

	off0, err := pages[0].AddRow(account(t, ts, 3, "grace"))
	require.NoError(t, err)
	off1, err := pages[1].AddRow(account(t, ts, 3, "grace"))
	require.NoError(t, err)
	require.NoError(t, pages[0].ForwardRow(3, off1, pages[1].ID()))
	require.NoError(t, pages[1].ForwardRow(3, off0, pages[0].ID()))
	save(t, store, pages...)

	addr := primitives.RowAddress{DatabaseID: ts.DatabaseID, TableID: ts.TableID, PageID: 0, RowID: 3, RowOffset: off0}
	_, err = storage.FetchRow(ctx, store, ts, addr)
	assert.True(t, dberr.Is(err, dberr.CodeForwardLoop))
}

func TestLoadPage_Missing(t *testing.T) {
	store := openStore(t)
	_, err := storage.LoadPage(context.Background(), store, accountsSchema(t), 5)
	assert.True(t, dberr.Is(err, dberr.CodePageNotFound))
}

func TestCountRowsWithValue_MatchesPageSum(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	ts := accountsSchema(t)
	pages := newPages(t, store, ts, 6)

	owners := []string{"ada", "grace", "ada", "edsger", "ada"}
	id := primitives.RowID(1)
	for i, p := range pages {
		for j := 0; j <= i; j++ {
			_, err := p.AddRow(account(t, ts, id, owners[int(id)%len(owners)]))
			require.NoError(t, err)
			id++
		}
	}
	require.NoError(t, pages[2].DeleteRow(primitives.RowID(5)))
	save(t, store, pages...)

	ada, err := page.ValueFor(ts, "owner", "ada")
	require.NoError(t, err)

	want := 0
	for _, p := range pages {
		n, err := p.GetCountOfRowsWithValue(ada)
		require.NoError(t, err)
		want += n
	}
	require.Positive(t, want)

	for _, workers := range []int{0, 1, 3, 16} {
		got, err := storage.CountRowsWithValue(ctx, store, ts, ada, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}

	addrs, err := storage.FindRowAddresses(ctx, store, ts, []tuple.RowValue{ada}, 2)
	require.NoError(t, err)
	assert.Len(t, addrs, want)
	for i := 1; i < len(addrs); i++ {
		prev, cur := addrs[i-1], addrs[i]
		assert.True(t, prev.PageID < cur.PageID ||
			(prev.PageID == cur.PageID && prev.RowOffset < cur.RowOffset))
	}

	_, err = storage.FindRowAddresses(ctx, store, ts, nil, 2)
	assert.True(t, dberr.Is(err, dberr.CodeInvalidArgument))
}

func TestCountRowsWithValue_Canceled(t *testing.T) {
	store := openStore(t)
	ts := accountsSchema(t)
	newPages(t, store, ts, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ada, err := page.ValueFor(ts, "owner", "ada")
	require.NoError(t, err)
	_, err = storage.CountRowsWithValue(ctx, store, ts, ada, 1)
	assert.Error(t, err)
}
