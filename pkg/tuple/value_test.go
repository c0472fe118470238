package tuple

import (
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/types"
)

func mustColumn(t *testing.T, name string, typ types.SQLType, length uint32, nullable bool) schema.ColumnSchema {
	t.Helper()
	col, err := schema.NewColumn(name, typ, 0, length, nullable)
	require.NoError(t, err)
	return col
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEncodeValue_VarcharScenario(t *testing.T) {
	col := mustColumn(t, "v", types.VarcharType, 10, false)

	v, err := EncodeValue(col, "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 'h', 'i'}, v.Encoded)

	decoded, err := DecodeValue(col, v.Encoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), decoded.ParseValueLength)
	assert.Equal(t, "hi", decoded.String())

	newGolden(t).Assert(t, "varchar_hi", []byte(fmt.Sprintf("% x\n", v.Encoded)))
}

func TestEncodeValue_RoundTrip(t *testing.T) {
	when := time.Date(2024, 3, 9, 14, 30, 15, 123456789, time.UTC)

	tests := []struct {
		name     string
		typ      types.SQLType
		length   uint32
		src      any
		wantText string
		wantSize map[bool]uint32 // keyed by nullable
	}{
		{"int", types.IntType, 0, "-42", "-42", map[bool]uint32{false: 4, true: 5}},
		{"int native", types.IntType, 0, int32(7), "7", map[bool]uint32{false: 4, true: 5}},
		{"bit", types.BitType, 0, "true", "true", map[bool]uint32{false: 1, true: 2}},
		{"bit native", types.BitType, 0, false, "false", map[bool]uint32{false: 1, true: 2}},
		{"decimal", types.DecimalType, 0, "12.5", "12.5", map[bool]uint32{false: 8, true: 9}},
		{"datetime", types.DateTimeType, 0, when, "2024-03-09T14:30:15.123456789Z", map[bool]uint32{false: 8, true: 9}},
		{"char", types.CharType, 3, "abc", "abc", map[bool]uint32{false: 7, true: 8}},
		{"varchar", types.VarcharType, 10, "hello", "hello", map[bool]uint32{false: 9, true: 10}},
		{"varchar empty", types.VarcharType, 10, "", "", map[bool]uint32{false: 4, true: 5}},
		{"binary", types.BinaryType, 2, []byte{0xCA, 0xFE}, "0xCAFE", map[bool]uint32{false: 6, true: 7}},
		{"varbinary", types.VarbinaryType, 8, []byte{0x01}, "0x01", map[bool]uint32{false: 5, true: 6}},
	}

	for _, tt := range tests {
		for _, nullable := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/nullable=%v", tt.name, nullable), func(t *testing.T) {
				col := mustColumn(t, "c", tt.typ, tt.length, nullable)

				v, err := EncodeValue(col, tt.src)
				require.NoError(t, err)
				assert.Equal(t, tt.wantSize[nullable], v.ParseValueLength)
				assert.Len(t, v.Encoded, int(v.ParseValueLength))

				// trailing bytes belong to the next value
				data := append(append([]byte{}, v.Encoded...), 0xEE, 0xEE)
				got, err := DecodeValue(col, data)
				require.NoError(t, err)
				assert.Equal(t, v.ParseValueLength, got.ParseValueLength)
				assert.True(t, v.Equal(got))
				assert.False(t, got.IsNull())
				assert.Equal(t, tt.wantText, got.String())
			})
		}
	}
}

func TestEncodeValue_Null(t *testing.T) {
	tests := []struct {
		name     string
		typ      types.SQLType
		length   uint32
		wantSize uint32
	}{
		{"int", types.IntType, 0, 5},
		{"bit", types.BitType, 0, 2},
		{"decimal", types.DecimalType, 0, 9},
		{"datetime", types.DateTimeType, 0, 9},
		{"char", types.CharType, 3, 1},
		{"varchar", types.VarcharType, 10, 1},
		{"binary", types.BinaryType, 4, 1},
		{"varbinary", types.VarbinaryType, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := mustColumn(t, "c", tt.typ, tt.length, true)

			v, err := EncodeValue(col, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, v.ParseValueLength)
			assert.Equal(t, byte(1), v.Encoded[0])

			// only the flag (plus the fixed slot) is read
			got, err := DecodeValue(col, v.Encoded)
			require.NoError(t, err)
			assert.True(t, got.IsNull())
			assert.Nil(t, got.Payload())
			assert.Equal(t, "NULL", got.String())
			assert.Equal(t, tt.wantSize, got.ParseValueLength)
		})
	}
}

func TestEncodeValue_Errors(t *testing.T) {
	tests := []struct {
		name     string
		typ      types.SQLType
		length   uint32
		nullable bool
		src      any
		wantCode string
	}{
		{"char too short", types.CharType, 3, false, "ab", dberr.CodeWrongLength},
		{"char too long", types.CharType, 3, false, "abcd", dberr.CodeWrongLength},
		{"varchar too long", types.VarcharType, 2, false, "abc", dberr.CodeValueTooLong},
		{"binary wrong length", types.BinaryType, 2, false, []byte{1}, dberr.CodeWrongLength},
		{"varbinary too long", types.VarbinaryType, 1, false, []byte{1, 2}, dberr.CodeValueTooLong},
		{"bad int", types.IntType, 0, false, "12x", dberr.CodeInvalidLiteral},
		{"int overflow", types.IntType, 0, false, int64(1) << 40, dberr.CodeInvalidLiteral},
		{"bad decimal", types.DecimalType, 0, false, "1.2.3", dberr.CodeInvalidLiteral},
		{"bad datetime", types.DateTimeType, 0, false, "yesterday", dberr.CodeInvalidLiteral},
		{"bad bit", types.BitType, 0, false, "maybe", dberr.CodeInvalidLiteral},
		{"null on not null", types.IntType, 0, false, nil, dberr.CodeNullNotAllowed},
		{"fixed raw wrong width", types.IntType, 0, false, []byte{1, 2}, dberr.CodeWrongLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := mustColumn(t, "amount", tt.typ, tt.length, tt.nullable)

			_, err := EncodeValue(col, tt.src)
			require.Error(t, err)
			assert.True(t, dberr.Is(err, tt.wantCode), "got %v", err)
			assert.Contains(t, err.Error(), "amount")
		})
	}
}

func TestEncodeValue_DateTimeRange(t *testing.T) {
	col := mustColumn(t, "opened", types.DateTimeType, 0, false)

	t.Run("boundaries round trip", func(t *testing.T) {
		for _, want := range []time.Time{types.MinDateTime, types.MaxDateTime, time.Unix(0, 0).UTC()} {
			v, err := EncodeValue(col, want)
			require.NoError(t, err, want)

			got, err := DecodeValue(col, v.Encoded)
			require.NoError(t, err)
			when, err := got.DateTime()
			require.NoError(t, err)
			assert.True(t, want.Equal(when), "want %s, got %s", want, when)
		}
	})

	tests := []struct {
		name string
		src  any
	}{
		{"literal before range", "1500-06-01"},
		{"literal just before range", "1677-09-21"},
		{"literal after range", "2300-01-01"},
		{"literal just after range", "2262-04-12"},
		{"zero time", time.Time{}},
		{"one nanosecond past max", types.MaxDateTime.Add(time.Nanosecond)},
		{"one nanosecond before min", types.MinDateTime.Add(-time.Nanosecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeValue(col, tt.src)
			require.Error(t, err)
			assert.True(t, dberr.Is(err, dberr.CodeInvalidLiteral), "got %v", err)
		})
	}
}

func TestDecodeValue_Errors(t *testing.T) {
	t.Run("truncated fixed", func(t *testing.T) {
		col := mustColumn(t, "c", types.IntType, 0, false)
		_, err := DecodeValue(col, []byte{1, 2})
		assert.True(t, dberr.Is(err, dberr.CodeCorruptData))
	})

	t.Run("truncated length prefix", func(t *testing.T) {
		col := mustColumn(t, "c", types.VarcharType, 10, true)
		_, err := DecodeValue(col, []byte{0, 2, 0})
		assert.True(t, dberr.Is(err, dberr.CodeCorruptData))
	})

	t.Run("length over column", func(t *testing.T) {
		col := mustColumn(t, "c", types.VarcharType, 2, false)
		_, err := DecodeValue(col, []byte{3, 0, 0, 0, 'a', 'b', 'c'})
		assert.True(t, dberr.Is(err, dberr.CodeCorruptData))
	})

	t.Run("unknown type", func(t *testing.T) {
		col := schema.ColumnSchema{Name: "c", Type: types.SQLType(99)}
		_, err := DecodeValue(col, []byte{0})
		assert.True(t, dberr.Is(err, dberr.CodeUnknownType))
	})
}

func TestRowValue_TypedAccessors(t *testing.T) {
	intCol := mustColumn(t, "n", types.IntType, 0, true)
	v := MustEncodeValue(intCol, "123")
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(123), n)

	_, err = v.Bit()
	assert.Error(t, err)

	null := MustEncodeValue(intCol, nil)
	_, err = null.Int()
	assert.Error(t, err)

	dec := MustEncodeValue(mustColumn(t, "d", types.DecimalType, 0, false), 2.25)
	f, err := dec.Decimal()
	require.NoError(t, err)
	assert.Equal(t, 2.25, f)
}
