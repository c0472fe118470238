// Package resultset projects decoded rows into the column layout and
// value lists handed to the result formatting layer.
package resultset

import (
	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

const resultsetComponent = "Resultset"

// ResultsetColumn describes one output column.
type ResultsetColumn struct {
	Name       string
	Type       types.SQLType
	Length     uint32
	IsNullable bool
	Ordinal    primitives.ColumnOrdinal
}

// ResultsetLayout is the ordered list of output columns.
type ResultsetLayout struct {
	Columns []ResultsetColumn
}

// Names returns the column names in output order.
func (l ResultsetLayout) Names() []string {
	names := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		names[i] = c.Name
	}
	return names
}

// ResultsetValue is one cell of the output. Value holds the raw payload
// and Text its literal rendering; both are empty for NULL.
type ResultsetValue struct {
	Column string
	IsNull bool
	Value  []byte
	Text   string
}

// NewLayout builds the layout for the named columns of ts, in the order
// given. With no names every column is included in declaration order.
func NewLayout(ts *schema.TableSchema, columns ...string) (ResultsetLayout, error) {
	if len(columns) == 0 {
		for _, col := range ts.DeclarationOrder() {
			columns = append(columns, col.Name)
		}
	}

	layout := ResultsetLayout{Columns: make([]ResultsetColumn, 0, len(columns))}
	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		col, ok := ts.Column(name)
		if !ok {
			return ResultsetLayout{}, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeColumnNotFound,
				"table '%s' has no column '%s'", ts.TableName, name).In("NewLayout", resultsetComponent)
		}
		if seen[col.Name] {
			return ResultsetLayout{}, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
				"column '%s' is projected twice", col.Name).In("NewLayout", resultsetComponent)
		}
		seen[col.Name] = true
		layout.Columns = append(layout.Columns, ResultsetColumn{
			Name:       col.Name,
			Type:       col.Type,
			Length:     col.Length,
			IsNullable: col.IsNullable,
			Ordinal:    col.Ordinal,
		})
	}
	return layout, nil
}

// FromRows projects rows onto the named columns of ts. Logically deleted
// rows are left out. Host-remote rows hold no values and fail with
// NOT_IMPLEMENTED.
func FromRows(ts *schema.TableSchema, rows []*tuple.Row, columns ...string) (ResultsetLayout, [][]ResultsetValue, error) {
	layout, err := NewLayout(ts, columns...)
	if err != nil {
		return ResultsetLayout{}, nil, err
	}

	out := make([][]ResultsetValue, 0, len(rows))
	for _, row := range rows {
		if row.IsDeleted() {
			continue
		}
		if row.Type() == tuple.HostRemoteRow {
			return ResultsetLayout{}, nil, dberr.Newf(dberr.ErrCategoryNotImplemented, dberr.CodeNotImplemented,
				"row %d references values held by a participant", row.ID()).In("FromRows", resultsetComponent)
		}

		values := make([]ResultsetValue, len(layout.Columns))
		for i, col := range layout.Columns {
			v, ok := row.Value(col.Name)
			if !ok {
				return ResultsetLayout{}, nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
					"row %d has no value for column '%s'", row.ID(), col.Name).In("FromRows", resultsetComponent)
			}
			values[i] = project(v)
		}
		out = append(out, values)
	}
	return layout, out, nil
}

func project(v tuple.RowValue) ResultsetValue {
	if v.IsNull() {
		return ResultsetValue{Column: v.Column.Name, IsNull: true}
	}
	return ResultsetValue{
		Column: v.Column.Name,
		Value:  append([]byte(nil), v.Payload()...),
		Text:   v.String(),
	}
}
