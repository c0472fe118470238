package entry

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

var (
	testDB    = uuid.MustParse("a1b2c3d4-e5f6-4788-99aa-bbccddeeff00")
	testBatch = uuid.MustParse("11111111-2222-4333-8444-555555555555")
)

func ordersSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	ts, err := schema.NewSchemaBuilder(4, "orders").
		InDatabase(testDB, "ledger").
		InNamespace(schema.Namespace{Name: "dbo", ID: uuid.MustParse("5e5e5e5e-0000-4000-8000-000000000001")}).
		WithPolicy(schema.StoragePartial).
		AddColumn("id", types.IntType, 0).
		AddNullable("note", types.VarcharType, 40).
		Build()
	require.NoError(t, err)
	return ts
}

func order(t *testing.T, ts *schema.TableSchema, id primitives.RowID, note string) *tuple.Row {
	t.Helper()
	row, err := tuple.NewBuilder(ts).Set("id", int(id)).Set("note", note).Local(id)
	require.NoError(t, err)
	return row
}

func fixedTime() time.Time {
	return time.Unix(0, 1700000000123456789).UTC()
}

func TestEntry_CreateDatabaseGolden(t *testing.T) {
	e := New(testBatch, 1, testDB, NewCreateDatabase(testDB, "ledger"), "ops")
	e.EntryTime = fixedTime()

	data, err := e.Encode()
	require.NoError(t, err)
	require.Len(t, data, PreambleSize+62+3)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "create_database", []byte(fmt.Sprintf("% x\n", data)))
}

func TestEntry_RoundTripEveryAction(t *testing.T) {
	ts := ordersSchema(t)
	addr := primitives.RowAddress{DatabaseID: ts.DatabaseID, TableID: ts.TableID, PageID: 2, RowID: 9, RowOffset: 141}

	insert, err := NewInsert(ts, addr, order(t, ts, 9, "new"))
	require.NoError(t, err)
	update, err := NewUpdate(ts, addr, order(t, ts, 9, "new"), order(t, ts, 9, "shipped"))
	require.NoError(t, err)
	del, err := NewDelete(ts, addr, order(t, ts, 9, "shipped"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		action Action
		family ActionType
	}{
		{"insert", insert, DataAction},
		{"update", update, DataAction},
		{"delete", del, DataAction},
		{"select table", NewSelectTable(ts), DataAction},
		{"select", NewSelect(ts, addr), DataAction},
		{"create table", NewCreateTable(ts), SchemaAction},
		{"create database", NewCreateDatabase(testDB, "ledger"), SchemaAction},
		{"drop database", NewDropDatabase(testDB, "ledger"), SchemaAction},
		{"drop table", NewDropTable(ts), SchemaAction},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(testBatch, uint32(i+1), testDB, tt.action, "alice") // #nosec G115
			e.EntryTime = fixedTime()
			require.NoError(t, e.MarkComplete(fixedTime().Add(time.Second)))

			data, err := e.Encode()
			require.NoError(t, err)

			got, n, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, tt.family, got.ActionType())
			assert.True(t, got.IsCompleted)
			assert.True(t, got.CompletedTime.Equal(e.CompletedTime))
			assert.True(t, got.EntryTime.Equal(e.EntryTime))
			assert.Equal(t, e.Sequence, got.Sequence)
			assert.Equal(t, e.BatchID, got.BatchID)
			assert.Equal(t, e.AffectedObjectID, got.AffectedObjectID)
			assert.Equal(t, "alice", got.UserName)

			want, gotAction := e.Action, got.Action
			assert.Equal(t, want.Op, gotAction.Op)
			assert.Equal(t, want.Address, gotAction.Address)
			assert.Equal(t, want.Row, gotAction.Row)
			assert.Equal(t, want.Before, gotAction.Before)
			assert.Equal(t, want.After, gotAction.After)
			assert.Equal(t, want.WholeTable, gotAction.WholeTable)
			assert.Equal(t, want.Name, gotAction.Name)
			if want.Table != nil {
				require.NotNil(t, gotAction.Table)
				assert.Equal(t, want.Table.Serialize(), gotAction.Table.Serialize())
				assert.Equal(t, want.Table.ObjectID, gotAction.Table.ObjectID)
				assert.Equal(t, want.Table.StoragePolicy, gotAction.Table.StoragePolicy)
			}
		})
	}
}

func TestAction_RowImages(t *testing.T) {
	ts := ordersSchema(t)
	addr := primitives.RowAddress{PageID: 0, RowID: 3, RowOffset: 41}

	update, err := NewUpdate(ts, addr, order(t, ts, 3, "packed"), order(t, ts, 3, "shipped"))
	require.NoError(t, err)

	before, err := update.BeforeImage(ts)
	require.NoError(t, err)
	after, err := update.AfterImage(ts)
	require.NoError(t, err)

	note, ok := before.Value("note")
	require.True(t, ok)
	assert.Equal(t, "packed", string(note.Payload()))
	note, ok = after.Value("note")
	require.True(t, ok)
	assert.Equal(t, "shipped", string(note.Payload()))

	none, err := NewSelectTable(ts).AfterImage(ts)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAction_TransactionFormatClearsForwarding(t *testing.T) {
	ts := ordersSchema(t)
	row := order(t, ts, 5, "moved")
	row.ForwardRow(300, 2)

	insert, err := NewInsert(ts, primitives.RowAddress{RowID: 5}, row)
	require.NoError(t, err)

	img, err := insert.AfterImage(ts)
	require.NoError(t, err)
	assert.False(t, img.IsForwarded())
	assert.Zero(t, img.Preamble.ForwardOffset)
}

func TestEntry_Lifecycle(t *testing.T) {
	e := New(testBatch, 1, testDB, NewCreateDatabase(testDB, "ledger"), "ops")
	assert.False(t, e.IsCompleted)
	assert.True(t, e.CompletedTime.IsZero())

	require.NoError(t, e.MarkComplete(fixedTime()))
	assert.True(t, e.IsCompleted)
	assert.True(t, e.CompletedTime.Equal(fixedTime()))

	err := e.MarkComplete(fixedTime())
	assert.True(t, dberr.Is(err, dberr.CodeInvalidState))

	e.MarkIncomplete()
	assert.False(t, e.IsCompleted)
	assert.True(t, e.CompletedTime.IsZero())

	e.MarkDeleted()
	e.MarkDeleted()
	assert.True(t, e.IsDeleted)
}

func TestEntry_TimesOutOfRange(t *testing.T) {
	e := New(testBatch, 1, testDB, NewCreateDatabase(testDB, "ledger"), "ops")
	e.EntryTime = time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := e.Encode()
	assert.True(t, dberr.Is(err, dberr.CodeInvalidArgument), "got %v", err)

	e = New(testBatch, 1, testDB, NewCreateDatabase(testDB, "ledger"), "ops")
	err = e.MarkComplete(time.Date(1500, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, dberr.Is(err, dberr.CodeInvalidArgument), "got %v", err)
	assert.False(t, e.IsCompleted)
}

func TestStamps_PatchEncodedPreamble(t *testing.T) {
	e := New(testBatch, 4, testDB, NewDropDatabase(testDB, "ledger"), "ops")
	data, err := e.Encode()
	require.NoError(t, err)

	StampComplete(data, fixedTime())
	StampDeleted(data)
	got, _, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.True(t, got.IsDeleted)
	assert.True(t, got.CompletedTime.Equal(fixedTime()))

	StampIncomplete(data)
	pre, err := ParsePreamble(data)
	require.NoError(t, err)
	assert.False(t, pre.IsCompleted)
	assert.True(t, pre.CompletedTime.IsZero())
	assert.True(t, pre.IsDeleted)
	assert.Equal(t, len(data), pre.Size())
}

func TestDecode_Errors(t *testing.T) {
	e := New(testBatch, 1, testDB, NewCreateDatabase(testDB, "ledger"), "ops")
	valid, err := e.Encode()
	require.NoError(t, err)

	patch := func(off int, v byte) []byte {
		b := append([]byte(nil), valid...)
		b[off] = v
		return b
	}

	tests := []struct {
		name string
		data []byte
		code string
	}{
		{"short preamble", valid[:PreambleSize-1], dberr.CodeCorruptData},
		{"truncated body", valid[:len(valid)-1], dberr.CodeCorruptData},
		{"permission action", patch(OffsetActionType, byte(PermissionAction)), dberr.CodeNotImplemented},
		{"unknown action type", patch(OffsetActionType, 9), dberr.CodeUnknownType},
		{"future version", patch(OffsetActionVersion, 2), dberr.CodeNotImplemented},
		{"family mismatch", patch(OffsetActionType, byte(DataAction)), dberr.CodeCorruptData},
		{"unknown op", patch(PreambleSize, 42), dberr.CodeUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, dberr.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestDecodeAction_TrailingBytes(t *testing.T) {
	payload, err := NewSelectTable(ordersSchema(t)).Encode()
	require.NoError(t, err)

	_, err = DecodeAction(append(payload, 0))
	assert.True(t, dberr.Is(err, dberr.CodeCorruptData))
}

func TestDecodeAction_UnknownStoragePolicy(t *testing.T) {
	payload, err := NewCreateTable(ordersSchema(t)).Encode()
	require.NoError(t, err)

	// the policy is the last field of a create table payload
	payload[len(payload)-4] = 9
	_, err = DecodeAction(payload)
	assert.True(t, dberr.Is(err, dberr.CodeUnknownType), "got %v", err)
}

func TestEncode_CreateTableWithoutSchema(t *testing.T) {
	_, err := Action{Op: CreateTableOp}.Encode()
	assert.True(t, dberr.Is(err, dberr.CodeInvalidArgument))
}
