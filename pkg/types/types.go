package types

import (
	"fmt"
	"strings"
)

// SQLType is the logical type of a column. The numeric value is the
// DataTypeCode stored in the table schema binary form.
type SQLType int32

const (
	UnknownType SQLType = iota
	IntType
	BitType
	CharType
	VarcharType
	DateTimeType
	DecimalType
	BinaryType
	VarbinaryType
)

// Fixed widths of the fixed-length types, in bytes.
const (
	IntSize      = 4
	BitSize      = 1
	DateTimeSize = 8
	DecimalSize  = 8
)

// String returns a string representation of the type
func (t SQLType) String() string {
	switch t {
	case IntType:
		return "INT"
	case BitType:
		return "BIT"
	case CharType:
		return "CHAR"
	case VarcharType:
		return "VARCHAR"
	case DateTimeType:
		return "DATETIME"
	case DecimalType:
		return "DECIMAL"
	case BinaryType:
		return "BINARY"
	case VarbinaryType:
		return "VARBINARY"
	default:
		return "UNKNOWN"
	}
}

// IsValid reports whether t is one of the supported logical types.
func (t SQLType) IsValid() bool {
	return t >= IntType && t <= VarbinaryType
}

// IsFixedLength reports whether values of this type always occupy the same
// number of bytes. It depends on the type only, never on a column's length.
func (t SQLType) IsFixedLength() bool {
	switch t {
	case IntType, BitType, DateTimeType, DecimalType:
		return true
	default:
		return false
	}
}

// FixedSize returns the width of a fixed-length type and 0 for
// variable-length or unknown types.
func (t SQLType) FixedSize() uint32 {
	switch t {
	case IntType:
		return IntSize
	case BitType:
		return BitSize
	case DateTimeType:
		return DateTimeSize
	case DecimalType:
		return DecimalSize
	default:
		return 0
	}
}

// IsBinary reports whether values of this type are raw bytes rather than text.
func (t SQLType) IsBinary() bool {
	return t == BinaryType || t == VarbinaryType
}

// ParseSQLType maps a type name (case-insensitive) to its SQLType.
// "BOOL"/"BOOLEAN" map to BitType and "INTEGER" to IntType.
func ParseSQLType(name string) (SQLType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "INT", "INTEGER":
		return IntType, nil
	case "BIT", "BOOL", "BOOLEAN":
		return BitType, nil
	case "CHAR":
		return CharType, nil
	case "VARCHAR":
		return VarcharType, nil
	case "DATETIME":
		return DateTimeType, nil
	case "DECIMAL":
		return DecimalType, nil
	case "BINARY":
		return BinaryType, nil
	case "VARBINARY":
		return VarbinaryType, nil
	default:
		return UnknownType, fmt.Errorf("unknown sql type %q", name)
	}
}
