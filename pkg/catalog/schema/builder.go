package schema

import (
	"fmt"

	"github.com/google/uuid"

	"pagedb/pkg/primitives"
	"pagedb/pkg/types"
)

// ColumnDef defines a column for schema building
type ColumnDef struct {
	Name     string
	Type     types.SQLType
	Length   uint32
	Nullable bool
}

// SchemaBuilder helps construct table schemas with less boilerplate.
// Ordinals follow the order columns are added.
type SchemaBuilder struct {
	databaseID   primitives.DatabaseID
	databaseName string
	tableID      primitives.TableID
	tableName    string
	namespace    Namespace
	policy       StoragePolicy
	columns      []ColumnDef
}

// NewSchemaBuilder creates a new schema builder in the "dbo" namespace.
func NewSchemaBuilder(tableID primitives.TableID, tableName string) *SchemaBuilder {
	return &SchemaBuilder{
		tableID:   tableID,
		tableName: tableName,
		namespace: Namespace{Name: "dbo", ID: uuid.Nil},
		columns:   make([]ColumnDef, 0),
	}
}

// InDatabase sets the owning database.
func (sb *SchemaBuilder) InDatabase(id primitives.DatabaseID, name string) *SchemaBuilder {
	sb.databaseID = id
	sb.databaseName = name
	return sb
}

// InNamespace sets the schema namespace.
func (sb *SchemaBuilder) InNamespace(ns Namespace) *SchemaBuilder {
	sb.namespace = ns
	return sb
}

// WithPolicy sets the storage policy tag.
func (sb *SchemaBuilder) WithPolicy(p StoragePolicy) *SchemaBuilder {
	sb.policy = p
	return sb
}

// AddColumn adds a NOT NULL column
func (sb *SchemaBuilder) AddColumn(name string, sqlType types.SQLType, length uint32) *SchemaBuilder {
	sb.columns = append(sb.columns, ColumnDef{Name: name, Type: sqlType, Length: length})
	return sb
}

// AddNullable adds a nullable column
func (sb *SchemaBuilder) AddNullable(name string, sqlType types.SQLType, length uint32) *SchemaBuilder {
	sb.columns = append(sb.columns, ColumnDef{Name: name, Type: sqlType, Length: length, Nullable: true})
	return sb
}

// Build constructs the schema
func (sb *SchemaBuilder) Build() (*TableSchema, error) {
	columns := make([]ColumnSchema, 0, len(sb.columns))

	for i, def := range sb.columns {
		col, err := NewColumn(def.Name, def.Type, primitives.ColumnOrdinal(i), def.Length, def.Nullable) // #nosec G115
		if err != nil {
			return nil, fmt.Errorf("failed to create column: %w", err)
		}
		columns = append(columns, col)
	}

	ts, err := NewTableSchema(sb.databaseID, sb.databaseName, sb.tableID, sb.tableName, sb.namespace, columns)
	if err != nil {
		return nil, err
	}
	ts.StoragePolicy = sb.policy
	return ts, nil
}

// MustBuild is Build for static schemas; it panics on error.
func (sb *SchemaBuilder) MustBuild() *TableSchema {
	ts, err := sb.Build()
	if err != nil {
		panic(err)
	}
	return ts
}
