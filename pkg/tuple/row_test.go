package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/types"
)

var testRemoteID = uuid.MustParse("0f0e0d0c-0b0a-0908-0706-050403020100")

func peopleSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	ts, err := schema.NewSchemaBuilder(3, "people").
		AddColumn("id", types.IntType, 0).
		AddColumn("name", types.VarcharType, 10).
		Build()
	require.NoError(t, err)
	return ts
}

func wideSchema(t *testing.T) *schema.TableSchema {
	t.Helper()
	ts, err := schema.NewSchemaBuilder(4, "wide").
		AddNullable("note", types.VarcharType, 32).
		AddColumn("id", types.IntType, 0).
		AddNullable("code", types.CharType, 2).
		AddNullable("amount", types.DecimalType, 0).
		AddColumn("active", types.BitType, 0).
		AddNullable("blob", types.VarbinaryType, 4).
		Build()
	require.NoError(t, err)
	return ts
}

func buildWide(t *testing.T, ts *schema.TableSchema) *Builder {
	t.Helper()
	return NewBuilder(ts).
		Set("id", 42).
		Set("note", "hello").
		Set("code", "NZ").
		SetNull("amount").
		Set("active", true).
		Set("blob", []byte{9, 8})
}

func TestLocalRow_PageFormat(t *testing.T) {
	ts := peopleSchema(t)

	row, err := NewBuilder(ts).Set("name", "hi").Set("id", 7).Local(1)
	require.NoError(t, err)

	data, err := row.GetRowInPageBinaryFormat()
	require.NoError(t, err)
	require.Len(t, data, 40)
	assert.Equal(t, uint32(40), row.Preamble.TotalSize)
	assert.Equal(t, uint32(0), row.Preamble.RemotableSize)
	assert.Equal(t, uint32(10), row.Preamble.ValueSize)

	newGolden(t).Assert(t, "local_row", []byte(fmt.Sprintf("% x\n", data)))
}

func TestParseRow_RoundTrip(t *testing.T) {
	ts := wideSchema(t)
	hash := bytes.Repeat([]byte{0xAB}, HashSize)

	tests := []struct {
		name  string
		build func() (*Row, error)
	}{
		{"local", func() (*Row, error) { return buildWide(t, ts).Local(10) }},
		{"value group", func() (*Row, error) { return buildWide(t, ts).ValueGroup(11) }},
		{"partial", func() (*Row, error) { return buildWide(t, ts).Partial(12, testRemoteID) }},
		{"host remote", func() (*Row, error) { return NewHostRemoteRow(13, testRemoteID, hash), nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := tt.build()
			require.NoError(t, err)

			data, err := row.GetRowInPageBinaryFormat()
			require.NoError(t, err)
			assert.Len(t, data, int(row.Preamble.TotalSize))

			got, err := ParseRow(ts, data)
			require.NoError(t, err)
			assert.Equal(t, row.Preamble, got.Preamble)
			require.Len(t, got.Values, len(row.Values))
			for i := range row.Values {
				assert.True(t, row.Values[i].Equal(got.Values[i]), "column %s", row.Values[i].Column.Name)
			}

			if row.Remote == nil {
				assert.Nil(t, got.Remote)
				return
			}
			require.NotNil(t, got.Remote)
			assert.Equal(t, row.Remote.RemoteID, got.Remote.RemoteID)
			assert.Equal(t, row.Remote.Type, got.Remote.Type)
			assert.Equal(t, row.Remote.DataHash, got.Remote.DataHash)
		})
	}
}

func TestParseRow_ShuffledSchema(t *testing.T) {
	ts := wideSchema(t)
	row, err := buildWide(t, ts).Local(1)
	require.NoError(t, err)
	data, err := row.GetRowInPageBinaryFormat()
	require.NoError(t, err)

	ts.SortDeclarationOrder()
	require.False(t, ts.IsBinaryOrdered())

	got, err := ParseRow(ts, data)
	require.NoError(t, err)
	note, ok := got.Value("note")
	require.True(t, ok)
	assert.Equal(t, "hello", note.String())
	amount, ok := got.Value("amount")
	require.True(t, ok)
	assert.True(t, amount.IsNull())
}

func TestPartialRow_DataHash(t *testing.T) {
	ts := wideSchema(t)

	a, err := buildWide(t, ts).Partial(1, testRemoteID)
	require.NoError(t, err)
	b, err := buildWide(t, ts).Partial(2, uuid.New())
	require.NoError(t, err)
	b.ForwardRow(500, 9)

	assert.Len(t, a.DataHash(), HashSize)
	assert.Equal(t, a.DataHash(), b.DataHash(), "hash depends only on values")

	before := a.DataHash()
	require.NoError(t, a.SetValue("note", "changed"))
	assert.NotEqual(t, before, a.DataHash())

	// the serialized block carries the hash of the current values
	data, err := a.GetRowInPageBinaryFormat()
	require.NoError(t, err)
	got, err := ParseRow(ts, data)
	require.NoError(t, err)
	assert.Equal(t, a.DataHash(), got.Remote.DataHash)
	assert.Equal(t, got.DataHash(), got.Remote.DataHash)
}

func TestValueGroupRow_SetSizes(t *testing.T) {
	ts := wideSchema(t)
	row, err := buildWide(t, ts).ValueGroup(5)
	require.NoError(t, err)
	initial := row.Preamble.ValueSize

	require.NoError(t, row.SetValue("note", "a much longer note"))
	assert.Equal(t, initial+uint32(len("a much longer note")-len("hello")), row.Preamble.ValueSize)
	assert.Equal(t, PreambleSize+row.Preamble.ValueSize, row.Preamble.TotalSize)

	require.NoError(t, row.SetValueAsNullForColumn("note"))
	assert.Equal(t, initial-uint32(4+len("hello")), row.Preamble.ValueSize)
	assert.NoError(t, row.Preamble.Validate())

	err = row.SetValueAsNullForColumn("id")
	assert.True(t, dberr.Is(err, dberr.CodeNullNotAllowed))

	err = row.SetValue("missing", 1)
	assert.True(t, dberr.Is(err, dberr.CodeColumnNotFound))
}

func TestRow_DeleteAt(t *testing.T) {
	ts := wideSchema(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	local, err := buildWide(t, ts).Local(1)
	require.NoError(t, err)
	local.DeleteAt(now)
	assert.True(t, local.IsDeleted())
	assert.Nil(t, local.Remote)

	partial, err := buildWide(t, ts).Partial(2, testRemoteID)
	require.NoError(t, err)
	partial.DeleteAt(now)
	assert.True(t, partial.IsDeleted())
	assert.True(t, partial.Remote.IsRemoteDeleted)
	assert.True(t, partial.Remote.RemoteDeletionUTC.Equal(now))

	data, err := partial.GetRowInPageBinaryFormat()
	require.NoError(t, err)
	got, err := ParseRow(ts, data)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	assert.True(t, got.Remote.IsRemoteDeleted)
	assert.True(t, got.Remote.RemoteDeletionUTC.Equal(now))
}

func TestRow_TransactionFormatClearsForwarding(t *testing.T) {
	row, err := NewBuilder(peopleSchema(t)).Set("id", 1).Set("name", "x").Local(1)
	require.NoError(t, err)
	row.ForwardRow(200, 3)

	page, err := row.GetRowInPageBinaryFormat()
	require.NoError(t, err)
	txn, err := row.GetRowInTransactionBinaryFormat()
	require.NoError(t, err)

	require.Equal(t, len(page), len(txn))
	assert.Equal(t, byte(1), page[OffsetIsForwarded])
	assert.Equal(t, uint32(200), binary.LittleEndian.Uint32(page[OffsetForwardOffset:]))
	assert.Equal(t, byte(0), txn[OffsetIsForwarded])
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(txn[OffsetForwardOffset:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(txn[OffsetForwardedPageID:]))
	assert.Equal(t, page[PreambleSize:], txn[PreambleSize:])

	assert.True(t, row.IsForwarded(), "the row itself is not modified")
}

func TestParseRow_Errors(t *testing.T) {
	ts := wideSchema(t)
	partial, err := buildWide(t, ts).Partial(1, testRemoteID)
	require.NoError(t, err)
	valid, err := partial.GetRowInPageBinaryFormat()
	require.NoError(t, err)

	tests := []struct {
		name     string
		mutate   func([]byte) []byte
		wantCode string
	}{
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }, dberr.CodeCorruptData},
		{"short preamble", func(b []byte) []byte { return b[:10] }, dberr.CodeCorruptData},
		{"unknown row type", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[OffsetRowType:], 9)
			return b
		}, dberr.CodeUnknownType},
		{"inconsistent sizes", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[OffsetTotalSize:], 31)
			return b
		}, dberr.CodeCorruptData},
		{"contract remote", func(b []byte) []byte {
			b[PreambleSize+OffsetRemoteType] = byte(RemoteContract)
			return b
		}, dberr.CodeNotImplemented},
		{"participant block on partial row", func(b []byte) []byte {
			b[PreambleSize+OffsetRemoteType] = byte(RemoteParticipant)
			return b
		}, dberr.CodeCorruptData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(valid))
			_, err := ParseRow(ts, data)
			require.Error(t, err)
			assert.True(t, dberr.Is(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestBuilder_Errors(t *testing.T) {
	ts := wideSchema(t)

	_, err := NewBuilder(ts).Set("nope", 1).Local(1)
	assert.True(t, dberr.Is(err, dberr.CodeColumnNotFound))

	// id and active are NOT NULL and never set
	_, err = NewBuilder(ts).Set("note", "x").Local(1)
	assert.True(t, dberr.Is(err, dberr.CodeNullNotAllowed))

	// the first error sticks
	b := NewBuilder(ts).Set("id", "abc").Set("nope", 1)
	assert.True(t, dberr.Is(b.Err(), dberr.CodeInvalidLiteral))

	ts.StoragePolicy = schema.StorageHostRemote
	_, err = buildWide(t, ts).ForPolicy(1, testRemoteID)
	assert.True(t, dberr.Is(err, dberr.CodeInvalidArgument))

	ts.StoragePolicy = schema.StoragePartial
	row, err := buildWide(t, ts).ForPolicy(1, testRemoteID)
	require.NoError(t, err)
	assert.Equal(t, PartialRow, row.Type())
}
