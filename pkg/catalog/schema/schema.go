package schema

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"pagedb/pkg/primitives"
)

// StoragePolicy tags how the rows of a table are replicated.
type StoragePolicy int32

const (
	// StorageLocal keeps every row fully on this host.
	StorageLocal StoragePolicy = iota
	// StorageHostRemote keeps references to rows owned by participants.
	StorageHostRemote
	// StoragePartial keeps rows with values and replication metadata.
	StoragePartial
)

func (p StoragePolicy) String() string {
	switch p {
	case StorageLocal:
		return "local"
	case StorageHostRemote:
		return "host_remote"
	case StoragePartial:
		return "partial"
	default:
		return fmt.Sprintf("StoragePolicy(%d)", int32(p))
	}
}

// IsValid reports whether p is a known policy.
func (p StoragePolicy) IsValid() bool {
	return p >= StorageLocal && p <= StoragePartial
}

// Namespace is the schema a table belongs to.
type Namespace struct {
	Name string
	ID   primitives.SchemaID
}

// TableSchema describes a table: its identity and its columns.
//
// Columns has two meaningful orders. Declaration order is Ordinal-ascending.
// Binary order puts every fixed-length column before every variable-length
// column, each group Ordinal-ascending; it is the order values are
// serialized in. Callers may reorder Columns freely, so encoders call
// SortBinaryOrder before every pass.
type TableSchema struct {
	DatabaseID    primitives.DatabaseID
	DatabaseName  string
	TableID       primitives.TableID
	TableName     string
	Schema        Namespace
	ObjectID      uuid.UUID
	StoragePolicy StoragePolicy
	Columns       []ColumnSchema
}

// NewTableSchema creates a validated table schema. The columns are copied
// and left in binary order.
func NewTableSchema(db primitives.DatabaseID, dbName string, tableID primitives.TableID, tableName string, ns Namespace, columns []ColumnSchema) (*TableSchema, error) {
	ts := &TableSchema{
		DatabaseID:   db,
		DatabaseName: norm.NFC.String(dbName),
		TableID:      tableID,
		TableName:    norm.NFC.String(tableName),
		Schema:       Namespace{Name: norm.NFC.String(ns.Name), ID: ns.ID},
		ObjectID:     uuid.New(),
		Columns:      slices.Clone(columns),
	}

	if err := ts.Validate(); err != nil {
		return nil, err
	}

	ts.SortBinaryOrder()
	return ts, nil
}

// Validate checks that the table has a name, at least one column, and that
// column names and ordinals are unique.
func (ts *TableSchema) Validate() error {
	if ts.TableName == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	if len(ts.Columns) == 0 {
		return fmt.Errorf("table '%s' must have at least one column", ts.TableName)
	}

	names := make(map[string]struct{}, len(ts.Columns))
	ordinals := make(map[primitives.ColumnOrdinal]struct{}, len(ts.Columns))
	for _, col := range ts.Columns {
		if _, dup := names[col.Name]; dup {
			return fmt.Errorf("table '%s' has duplicate column '%s'", ts.TableName, col.Name)
		}
		if _, dup := ordinals[col.Ordinal]; dup {
			return fmt.Errorf("table '%s' has duplicate ordinal %d", ts.TableName, col.Ordinal)
		}
		if !col.Type.IsValid() {
			return fmt.Errorf("table '%s' column '%s' has unknown type %d", ts.TableName, col.Name, col.Type)
		}
		names[col.Name] = struct{}{}
		ordinals[col.Ordinal] = struct{}{}
	}
	return nil
}

// SortBinaryOrder sorts Columns by (!IsFixedLength, Ordinal). It is idempotent.
func (ts *TableSchema) SortBinaryOrder() {
	slices.SortStableFunc(ts.Columns, CompareBinaryOrder)
}

// SortDeclarationOrder sorts Columns by Ordinal.
func (ts *TableSchema) SortDeclarationOrder() {
	slices.SortStableFunc(ts.Columns, func(a, b ColumnSchema) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
}

// IsBinaryOrdered reports whether Columns is currently in binary order.
func (ts *TableSchema) IsBinaryOrdered() bool {
	return slices.IsSortedFunc(ts.Columns, CompareBinaryOrder)
}

// CompareBinaryOrder orders fixed-length columns before variable-length
// ones, each group by Ordinal.
func CompareBinaryOrder(a, b ColumnSchema) int {
	if a.IsFixedLength() != b.IsFixedLength() {
		if a.IsFixedLength() {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Ordinal, b.Ordinal)
}

// BinaryOrder returns a copy of the columns in binary order without
// touching Columns.
func (ts *TableSchema) BinaryOrder() []ColumnSchema {
	cols := slices.Clone(ts.Columns)
	slices.SortStableFunc(cols, CompareBinaryOrder)
	return cols
}

// DeclarationOrder returns a copy of the columns in declaration order.
func (ts *TableSchema) DeclarationOrder() []ColumnSchema {
	cols := slices.Clone(ts.Columns)
	slices.SortStableFunc(cols, func(a, b ColumnSchema) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	return cols
}

// Column returns the column with the given name.
func (ts *TableSchema) Column(name string) (ColumnSchema, bool) {
	name = norm.NFC.String(name)
	for _, col := range ts.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSchema{}, false
}

// NumColumns returns the number of columns.
func (ts *TableSchema) NumColumns() int {
	return len(ts.Columns)
}

// TreeAddress returns the address of this table's tree.
func (ts *TableSchema) TreeAddress() primitives.TreeAddress {
	return primitives.TreeAddress{DatabaseID: ts.DatabaseID, TableID: ts.TableID, SchemaID: ts.Schema.ID}
}
