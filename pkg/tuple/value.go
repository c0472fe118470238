package tuple

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/types"
)

const (
	// NullPrefixSize is the size of the is-null flag of nullable columns.
	NullPrefixSize = 1

	codecComponent = "RowCodec"
)

// RowValue is one encoded column value. Encoded holds the exact on-disk
// bytes, including the null flag and length prefix where the column has
// them. ParseValueLength is the number of bytes the value occupies, so a
// decoder can advance its cursor without re-deriving offsets.
type RowValue struct {
	Column           schema.ColumnSchema
	Encoded          []byte
	ParseValueLength uint32
}

// EncodeValue encodes src for col according to the column's type and
// nullability:
//
//	NOT NULL, fixed:     [value:width]
//	NOT NULL, variable:  [len:4][bytes]
//	NULL-able, fixed:    [isNull:1][value:width]        (value zeroed when null)
//	NULL-able, variable: [isNull:1] or [isNull:1][len:4][bytes]
//
// src may be nil (NULL), a string literal, a []byte, or a Go value of the
// column's natural type (int32/int/int64, bool, float64, time.Time).
// Values are validated, never truncated.
func EncodeValue(col schema.ColumnSchema, src any) (RowValue, error) {
	if src == nil {
		return NullValue(col)
	}

	var payload []byte
	var err error
	if col.IsFixedLength() {
		payload, err = encodeFixed(col, src)
	} else {
		payload, err = encodeVariable(col, src)
	}
	if err != nil {
		return RowValue{}, err
	}

	size := len(payload)
	if col.IsNullable {
		size += NullPrefixSize
	}
	if !col.IsFixedLength() {
		size += types.LengthPrefixSize
	}

	out := make([]byte, 0, size)
	if col.IsNullable {
		out = append(out, 0)
	}
	if !col.IsFixedLength() {
		var prefix [types.LengthPrefixSize]byte
		types.PutLength(prefix[:], uint32(len(payload))) // #nosec G115
		out = append(out, prefix[:]...)
	}
	out = append(out, payload...)

	return RowValue{Column: col, Encoded: out, ParseValueLength: uint32(len(out))}, nil // #nosec G115
}

// NullValue returns the encoding of NULL for col. Non-nullable columns
// reject it.
func NullValue(col schema.ColumnSchema) (RowValue, error) {
	if !col.IsNullable {
		return RowValue{}, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeNullNotAllowed,
			"column '%s' does not accept NULL", col.Name).In("EncodeValue", codecComponent)
	}

	out := make([]byte, NullPrefixSize+int(col.FixedLength()))
	out[0] = 1
	return RowValue{Column: col, Encoded: out, ParseValueLength: uint32(len(out))}, nil // #nosec G115
}

// MustEncodeValue is EncodeValue for values known to be valid; it panics on error.
func MustEncodeValue(col schema.ColumnSchema, src any) RowValue {
	v, err := EncodeValue(col, src)
	if err != nil {
		panic(err)
	}
	return v
}

// DecodeValue parses the value of col at the start of data. Bytes after the
// value are ignored; ParseValueLength reports how many were consumed.
func DecodeValue(col schema.ColumnSchema, data []byte) (RowValue, error) {
	if !col.Type.IsValid() {
		return RowValue{}, unknownColumnType(col, "DecodeValue")
	}

	need := 0
	isNull := false
	if col.IsNullable {
		if len(data) < NullPrefixSize {
			return RowValue{}, truncated(col, NullPrefixSize, len(data))
		}
		isNull = data[0] != 0
		need = NullPrefixSize
	}

	switch {
	case col.IsFixedLength():
		need += int(col.FixedLength())
	case isNull:
		// variable-length NULL is the flag alone
	default:
		if len(data) < need+types.LengthPrefixSize {
			return RowValue{}, truncated(col, need+types.LengthPrefixSize, len(data))
		}
		n := types.Length(data[need:])
		if n > col.Length {
			return RowValue{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
				"column '%s' declares %d bytes, column allows %d", col.Name, n, col.Length).
				In("DecodeValue", codecComponent)
		}
		need += types.LengthPrefixSize + int(n)
	}

	if len(data) < need {
		return RowValue{}, truncated(col, need, len(data))
	}

	out := make([]byte, need)
	copy(out, data[:need])
	return RowValue{Column: col, Encoded: out, ParseValueLength: uint32(need)}, nil // #nosec G115
}

// IsNull reports whether the value is NULL.
func (v RowValue) IsNull() bool {
	return v.Column.IsNullable && len(v.Encoded) > 0 && v.Encoded[0] != 0
}

// Payload returns the value bytes without null flag and length prefix.
// It is nil for NULL values.
func (v RowValue) Payload() []byte {
	if v.IsNull() {
		return nil
	}
	b := v.Encoded
	if v.Column.IsNullable {
		b = b[NullPrefixSize:]
	}
	if !v.Column.IsFixedLength() {
		b = b[types.LengthPrefixSize:]
	}
	return b
}

// Equal reports whether two values have byte-identical encodings.
func (v RowValue) Equal(other RowValue) bool {
	return bytes.Equal(v.Encoded, other.Encoded)
}

// Int returns the value of an INT column.
func (v RowValue) Int() (int32, error) {
	if err := v.expect(types.IntType); err != nil {
		return 0, err
	}
	return types.Int(v.Payload()), nil
}

// Bit returns the value of a BIT column.
func (v RowValue) Bit() (bool, error) {
	if err := v.expect(types.BitType); err != nil {
		return false, err
	}
	return types.Bit(v.Payload()), nil
}

// Decimal returns the value of a DECIMAL column.
func (v RowValue) Decimal() (float64, error) {
	if err := v.expect(types.DecimalType); err != nil {
		return 0, err
	}
	return types.Decimal(v.Payload()), nil
}

// DateTime returns the value of a DATETIME column.
func (v RowValue) DateTime() (time.Time, error) {
	if err := v.expect(types.DateTimeType); err != nil {
		return time.Time{}, err
	}
	return types.DateTime(v.Payload()), nil
}

func (v RowValue) expect(t types.SQLType) error {
	if v.Column.Type != t {
		return fmt.Errorf("column '%s' is %s, not %s", v.Column.Name, v.Column.Type, t)
	}
	if v.IsNull() {
		return fmt.Errorf("column '%s' is NULL", v.Column.Name)
	}
	return nil
}

// String renders the value as a literal; NULL renders as "NULL" and binary
// values as hex.
func (v RowValue) String() string {
	if v.IsNull() {
		return "NULL"
	}
	p := v.Payload()
	switch v.Column.Type {
	case types.IntType:
		return strconv.FormatInt(int64(types.Int(p)), 10)
	case types.BitType:
		return strconv.FormatBool(types.Bit(p))
	case types.DecimalType:
		return types.FormatDecimal(types.Decimal(p))
	case types.DateTimeType:
		return types.FormatDateTime(types.DateTime(p))
	case types.CharType, types.VarcharType:
		return string(p)
	case types.BinaryType, types.VarbinaryType:
		return fmt.Sprintf("0x%X", p)
	default:
		return "?"
	}
}

func encodeFixed(col schema.ColumnSchema, src any) ([]byte, error) {
	out := make([]byte, col.FixedLength())

	if raw, ok := src.([]byte); ok {
		if len(raw) != len(out) {
			return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeWrongLength,
				"column '%s' expects %d bytes, got %d", col.Name, len(out), len(raw)).
				In("EncodeValue", codecComponent)
		}
		copy(out, raw)
		return out, nil
	}

	switch col.Type {
	case types.IntType:
		v, err := toInt(src)
		if err != nil {
			return nil, invalidLiteral(col, src, err)
		}
		types.PutInt(out, v)
	case types.BitType:
		v, err := toBit(src)
		if err != nil {
			return nil, invalidLiteral(col, src, err)
		}
		types.PutBit(out, v)
	case types.DecimalType:
		v, err := toDecimal(src)
		if err != nil {
			return nil, invalidLiteral(col, src, err)
		}
		types.PutDecimal(out, v)
	case types.DateTimeType:
		v, err := toDateTime(src)
		if err != nil {
			return nil, invalidLiteral(col, src, err)
		}
		types.PutDateTime(out, v)
	default:
		return nil, unknownColumnType(col, "EncodeValue")
	}
	return out, nil
}

func encodeVariable(col schema.ColumnSchema, src any) ([]byte, error) {
	var payload []byte
	switch v := src.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = bytes.Clone(v)
		if payload == nil {
			payload = []byte{}
		}
	default:
		return nil, invalidLiteral(col, src, fmt.Errorf("unsupported source type %T", src))
	}

	n := uint32(len(payload)) // #nosec G115
	switch col.Type {
	case types.CharType, types.BinaryType:
		if n != col.Length {
			return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeWrongLength,
				"column '%s' is %s(%d), value has length %d", col.Name, col.Type, col.Length, n).
				In("EncodeValue", codecComponent)
		}
	case types.VarcharType, types.VarbinaryType:
		if n > col.Length {
			return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeValueTooLong,
				"column '%s' is %s(%d), value has length %d", col.Name, col.Type, col.Length, n).
				In("EncodeValue", codecComponent)
		}
	default:
		return nil, unknownColumnType(col, "EncodeValue")
	}
	return payload, nil
}

func toInt(src any) (int32, error) {
	switch v := src.(type) {
	case string:
		return types.ParseInt(v)
	case int32:
		return v, nil
	case int:
		if int64(v) != int64(int32(v)) { // #nosec G115
			return 0, fmt.Errorf("%d overflows INT", v)
		}
		return int32(v), nil // #nosec G115
	case int64:
		if v != int64(int32(v)) { // #nosec G115
			return 0, fmt.Errorf("%d overflows INT", v)
		}
		return int32(v), nil // #nosec G115
	default:
		return 0, fmt.Errorf("unsupported source type %T", src)
	}
}

func toBit(src any) (bool, error) {
	switch v := src.(type) {
	case string:
		return types.ParseBit(v)
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("unsupported source type %T", src)
	}
}

func toDecimal(src any) (float64, error) {
	switch v := src.(type) {
	case string:
		return types.ParseDecimal(v)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("unsupported source type %T", src)
	}
}

func toDateTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case string:
		return types.ParseDateTime(v)
	case time.Time:
		return v.UTC(), types.CheckDateTime(v)
	default:
		return time.Time{}, fmt.Errorf("unsupported source type %T", src)
	}
}

func invalidLiteral(col schema.ColumnSchema, src any, cause error) error {
	err := dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidLiteral,
		"cannot convert %v to %s for column '%s'", src, col.Type, col.Name).
		In("EncodeValue", codecComponent)
	err.Cause = cause
	return err
}

func unknownColumnType(col schema.ColumnSchema, op string) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
		"column '%s' has unknown type %d", col.Name, int32(col.Type)).In(op, codecComponent)
}

func truncated(col schema.ColumnSchema, need, have int) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
		"value of column '%s' needs %d bytes, %d available", col.Name, need, have).
		In("DecodeValue", codecComponent)
}
