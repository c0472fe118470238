package tuple

import (
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
)

// Builder assembles the values of one row from (column, source) pairs
// supplied by the plan layer. Errors are sticky: the first failure is
// kept and returned by the terminal call.
//
//	row, err := tuple.NewBuilder(ts).
//		Set("id", 7).
//		Set("name", "alice").
//		SetNull("email").
//		Local(7)
//
// Columns that are never set are encoded as NULL, which fails for
// NOT NULL columns.
type Builder struct {
	ts     *schema.TableSchema
	values map[string]RowValue
	err    error
}

// NewBuilder creates a builder for rows of ts.
func NewBuilder(ts *schema.TableSchema) *Builder {
	return &Builder{ts: ts, values: make(map[string]RowValue, len(ts.Columns))}
}

// Set encodes src for the named column.
func (b *Builder) Set(column string, src any) *Builder {
	if b.err != nil {
		return b
	}

	col, ok := b.ts.Column(column)
	if !ok {
		b.err = b.missing(column)
		return b
	}

	v, err := EncodeValue(col, src)
	if err != nil {
		b.err = err
		return b
	}
	b.values[col.Name] = v
	return b
}

// SetNull sets the named column to NULL.
func (b *Builder) SetNull(column string) *Builder {
	return b.Set(column, nil)
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

// Values returns the encoded values in binary order.
func (b *Builder) Values() ([]RowValue, error) {
	if b.err != nil {
		return nil, b.err
	}

	b.ts.SortBinaryOrder()
	out := make([]RowValue, 0, len(b.ts.Columns))
	for _, col := range b.ts.Columns {
		v, ok := b.values[col.Name]
		if !ok {
			nv, err := NullValue(col)
			if err != nil {
				return nil, err
			}
			v = nv
		}
		out = append(out, v)
	}
	return out, nil
}

// Local builds a local row.
func (b *Builder) Local(id primitives.RowID) (*Row, error) {
	values, err := b.Values()
	if err != nil {
		return nil, err
	}
	return NewLocalRow(id, values), nil
}

// ValueGroup builds a value-group row.
func (b *Builder) ValueGroup(id primitives.RowID) (*Row, error) {
	values, err := b.Values()
	if err != nil {
		return nil, err
	}
	return NewValueGroupRow(id, values), nil
}

// Partial builds a partial row replicated under remoteID.
func (b *Builder) Partial(id primitives.RowID, remoteID uuid.UUID) (*Row, error) {
	values, err := b.Values()
	if err != nil {
		return nil, err
	}
	return NewPartialRow(id, remoteID, values), nil
}

// ForPolicy builds the row variant that matches the table's storage
// policy. Host-remote tables hold references, not values, so they are
// built with NewHostRemoteRow instead.
func (b *Builder) ForPolicy(id primitives.RowID, remoteID uuid.UUID) (*Row, error) {
	switch b.ts.StoragePolicy {
	case schema.StorageLocal:
		return b.Local(id)
	case schema.StoragePartial:
		return b.Partial(id, remoteID)
	default:
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"table '%s' with %s storage does not store values", b.ts.TableName, b.ts.StoragePolicy).
			In("Build", codecComponent)
	}
}

func (b *Builder) missing(column string) error {
	return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeColumnNotFound,
		"table '%s' has no column '%s'", b.ts.TableName, norm.NFC.String(column)).
		In("Build", codecComponent)
}
