package schema

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"pagedb/pkg/primitives"
	"pagedb/pkg/types"
)

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name       string                   // Column name (NFC-normalised)
	Type       types.SQLType            // Logical type
	Ordinal    primitives.ColumnOrdinal // Declaration position, unique per table
	Length     uint32                   // Declared length; equals the fixed width for fixed-length types
	IsNullable bool                     // Whether the column accepts NULL
}

// NewColumn creates a validated ColumnSchema. For fixed-length types the
// declared length is ignored and replaced by the type's width; for
// variable-length types it must be positive.
func NewColumn(name string, sqlType types.SQLType, ordinal primitives.ColumnOrdinal, length uint32, nullable bool) (ColumnSchema, error) {
	if name == "" {
		return ColumnSchema{}, fmt.Errorf("column name cannot be empty")
	}

	if !sqlType.IsValid() {
		return ColumnSchema{}, fmt.Errorf("column '%s' has unknown type %d", name, sqlType)
	}

	if sqlType.IsFixedLength() {
		length = sqlType.FixedSize()
	} else if length == 0 {
		return ColumnSchema{}, fmt.Errorf("column '%s' of type %s needs a positive length", name, sqlType)
	}

	return ColumnSchema{
		Name:       norm.NFC.String(name),
		Type:       sqlType,
		Ordinal:    ordinal,
		Length:     length,
		IsNullable: nullable,
	}, nil
}

// IsFixedLength reports whether values of the column have a constant width.
// It is a pure function of the column's type.
func (c ColumnSchema) IsFixedLength() bool {
	return c.Type.IsFixedLength()
}

// FixedLength returns the value width for fixed-length columns and 0 otherwise.
func (c ColumnSchema) FixedLength() uint32 {
	return c.Type.FixedSize()
}

func (c ColumnSchema) String() string {
	null := "NOT NULL"
	if c.IsNullable {
		null = "NULL"
	}
	if c.IsFixedLength() {
		return fmt.Sprintf("%s %s %s", c.Name, c.Type, null)
	}
	return fmt.Sprintf("%s %s(%d) %s", c.Name, c.Type, c.Length, null)
}
