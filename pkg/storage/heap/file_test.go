package heap

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/storage/pagefile"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

func docsSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	ts, err := schema.NewSchemaBuilder(30, "docs").
		InDatabase(uuid.MustParse("c3d4e5f6-a7b8-4c9d-8e0f-112233445566"), "archive").
		AddColumn("id", types.IntType, 0).
		AddColumn("kind", types.VarcharType, 10).
		AddColumn("body", types.VarcharType, 4000).
		Build()
	require.NoError(t, err)
	return ts
}

func docRow(t *testing.T, ts *schema.TableSchema, id primitives.RowID, bodyLen int) *tuple.Row {
	t.Helper()
	kind := "b"
	if id%2 == 1 {
		kind = "a"
	}
	row, err := tuple.NewBuilder(ts).
		Set("id", int(id)).
		Set("kind", kind).
		Set("body", strings.Repeat("x", bodyLen)).
		Local(id)
	require.NoError(t, err)
	return row
}

func newHeap(t *testing.T) (*HeapFile, storage.PageStore) {
	t.Helper()
	store, err := pagefile.Open(primitives.Filepath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewHeapFile(store, docsSchema(t), page.UserDataPage), store
}

func TestHeapFile_InsertAllocatesPages(t *testing.T) {
	ctx := context.Background()
	hf, _ := newHeap(t)

	var addrs []primitives.RowAddress
	for id := primitives.RowID(1); id <= 6; id++ {
		addr, err := hf.InsertRow(ctx, docRow(t, hf.Schema(), id, 1500))
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, primitives.PageID(0), addrs[i].PageID)
	}
	assert.Equal(t, primitives.PageID(1), addrs[5].PageID)
	assert.Equal(t, primitives.Offset(page.RowDataStartOffset), addrs[0].RowOffset)

	n, err := hf.NumPages(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
}

func TestHeapFile_UpdateRelocates(t *testing.T) {
	ctx := context.Background()
	hf, store := newHeap(t)

	var first primitives.RowAddress
	for id := primitives.RowID(1); id <= 6; id++ {
		addr, err := hf.InsertRow(ctx, docRow(t, hf.Schema(), id, 1500))
		require.NoError(t, err)
		if id == 1 {
			first = addr
		}
	}

	moved, err := hf.UpdateRow(ctx, first, docRow(t, hf.Schema(), 1, 3000))
	require.NoError(t, err)
	assert.Equal(t, primitives.PageID(1), moved.PageID)

	// the old page forwards to the new one
	old, err := storage.LoadPage(ctx, store, hf.Schema(), 0)
	require.NoError(t, err)
	stale, err := old.GetRow(1)
	require.NoError(t, err)
	assert.True(t, stale.IsForwarded())
	assert.Equal(t, moved.PageID, stale.Preamble.ForwardedPageID)
	assert.Equal(t, moved.RowOffset, stale.Preamble.ForwardOffset)
	assert.Equal(t, uint32(4), old.TotalRows())

	row, err := hf.GetRow(ctx, first)
	require.NoError(t, err)
	body, _ := row.Value("body")
	assert.Len(t, body.Payload(), 3000)

	// updating through the stale address lands on the moved copy
	again, err := hf.UpdateRow(ctx, first, docRow(t, hf.Schema(), 1, 3000))
	require.NoError(t, err)
	assert.Equal(t, moved, again)

	var ids []primitives.RowID
	it := hf.Iterator(ctx)
	require.NoError(t, it.Open())
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		r, err := it.Next()
		require.NoError(t, err)
		ids = append(ids, r.ID())
	}
	require.NoError(t, it.Close())
	assert.ElementsMatch(t, []primitives.RowID{1, 2, 3, 4, 5, 6}, ids)
}

func TestHeapFile_RepeatedRelocationsKeepFirstAddress(t *testing.T) {
	ctx := context.Background()
	hf, store := newHeap(t)
	ts := hf.Schema()

	first, err := hf.InsertRow(ctx, docRow(t, ts, 1, 2500))
	require.NoError(t, err)
	_, err = hf.InsertRow(ctx, docRow(t, ts, 2, 4000))
	require.NoError(t, err)

	// grow row 1 until it has moved across well over MaxForwardHops pages
	cur, moves := first, 0
	for body := 2600; body <= 3900; body += 100 {
		next, err := hf.UpdateRow(ctx, first, docRow(t, ts, 1, body))
		require.NoError(t, err, "body %d", body)
		if next.PageID != cur.PageID {
			moves++
		}
		cur = next
	}
	require.Greater(t, moves, page.MaxForwardHops)

	row, err := hf.GetRow(ctx, first)
	require.NoError(t, err)
	body, _ := row.Value("body")
	assert.Len(t, body.Payload(), 3900)

	// every page the row left points straight at the current copy
	for id := primitives.PageID(0); id < cur.PageID; id++ {
		p, err := storage.LoadPage(ctx, store, ts, id)
		require.NoError(t, err)
		stale, err := p.GetRow(1)
		require.NoError(t, err)
		assert.True(t, stale.IsForwarded(), "page %d", id)
		assert.Equal(t, cur.PageID, stale.Preamble.ForwardedPageID, "page %d", id)
	}

	filler, err := hf.GetRow(ctx, hf.address(0, 2, primitives.InvalidOffset))
	require.NoError(t, err)
	assert.False(t, filler.IsForwarded())

	require.NoError(t, hf.DeleteRow(ctx, first))
	row, err = hf.GetRow(ctx, first)
	require.NoError(t, err)
	assert.True(t, row.IsDeleted())
}

func TestHeapFile_DeleteAndCount(t *testing.T) {
	ctx := context.Background()
	hf, store := newHeap(t)
	ts := hf.Schema()

	var first primitives.RowAddress
	for id := primitives.RowID(1); id <= 6; id++ {
		addr, err := hf.InsertRow(ctx, docRow(t, ts, id, 1500))
		require.NoError(t, err)
		if id == 1 {
			first = addr
		}
	}
	_, err := hf.UpdateRow(ctx, first, docRow(t, ts, 1, 3000))
	require.NoError(t, err)

	kindA, err := page.ValueFor(ts, "kind", "a")
	require.NoError(t, err)

	count, err := storage.CountRowsWithValue(ctx, store, ts, kindA, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	perPage := 0
	ids, err := storage.PageIDs(ctx, store, ts)
	require.NoError(t, err)
	for _, id := range ids {
		p, err := storage.LoadPage(ctx, store, ts, id)
		require.NoError(t, err)
		n, err := p.GetCountOfRowsWithValue(kindA)
		require.NoError(t, err)
		perPage += n
	}
	assert.Equal(t, perPage, count)

	require.NoError(t, hf.DeleteRow(ctx, first))
	count, err = storage.CountRowsWithValue(ctx, store, ts, kindA, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	addrs, err := storage.FindRowAddresses(ctx, store, ts, []tuple.RowValue{kindA}, 4)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, primitives.RowID(3), addrs[0].RowID)
	assert.Equal(t, primitives.RowID(5), addrs[1].RowID)
}

func TestHeapFile_RowTooLarge(t *testing.T) {
	ctx := context.Background()
	hf, _ := newHeap(t)

	ts, err := schema.NewSchemaBuilder(30, "docs").
		InDatabase(hf.Schema().DatabaseID, "archive").
		AddColumn("id", types.IntType, 0).
		AddColumn("body", types.VarbinaryType, 9000).
		Build()
	require.NoError(t, err)
	row, err := tuple.NewBuilder(ts).Set("id", 1).Set("body", make([]byte, 8500)).Local(1)
	require.NoError(t, err)

	_, err = hf.InsertRow(ctx, row)
	assert.Error(t, err)
}
