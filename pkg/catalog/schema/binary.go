package schema

import (
	"golang.org/x/text/unicode/norm"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/types"
	"pagedb/pkg/utils/bytebuf"
)

// Serialize encodes the table schema in its binary form:
//
//	[DatabaseID:16][DbName:4+n][TableID:4][TableName:4+n][SchemaID:16][SchemaName:4+n]
//	[ColumnCount:4][TotalColumnBytes:4] then per column, in declaration order:
//	[Ordinal:4][Name:4+n][DataTypeCode:4][MaxLength:4][IsNullable:1]
//
// TotalColumnBytes is the size of all column records together.
func (ts *TableSchema) Serialize() []byte {
	cols := ts.DeclarationOrder()

	colBuf := bytebuf.NewWriter(len(cols) * 32)
	for _, col := range cols {
		colBuf.Uint32(uint32(col.Ordinal))
		colBuf.Text(norm.NFC.String(col.Name))
		colBuf.Int32(int32(col.Type))
		colBuf.Uint32(col.Length)
		colBuf.Bool(col.IsNullable)
	}

	w := bytebuf.NewWriter(64 + colBuf.Len())
	w.GUID(ts.DatabaseID)
	w.Text(norm.NFC.String(ts.DatabaseName))
	w.Uint32(uint32(ts.TableID))
	w.Text(norm.NFC.String(ts.TableName))
	w.GUID(ts.Schema.ID)
	w.Text(norm.NFC.String(ts.Schema.Name))
	w.Uint32(uint32(len(cols)))    // #nosec G115
	w.Uint32(uint32(colBuf.Len())) // #nosec G115
	w.Raw(colBuf.Bytes())
	return w.Bytes()
}

// ParseTableSchema decodes a schema produced by Serialize. The returned
// schema's columns are in binary order.
func ParseTableSchema(data []byte) (*TableSchema, error) {
	return ReadTableSchema(bytebuf.NewReader(data))
}

// ReadTableSchema decodes a schema from r, leaving r positioned after it.
func ReadTableSchema(r *bytebuf.Reader) (*TableSchema, error) {
	ts := &TableSchema{}
	ts.DatabaseID = r.GUID()
	ts.DatabaseName = r.Text()
	ts.TableID = primitives.TableID(r.Uint32())
	ts.TableName = r.Text()
	ts.Schema.ID = r.GUID()
	ts.Schema.Name = r.Text()
	count := r.Uint32()
	total := r.Uint32()
	if err := r.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeCorruptData, "ReadTableSchema", "Schema")
	}

	start := r.Offset()
	ts.Columns = make([]ColumnSchema, 0, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		col := ColumnSchema{}
		col.Ordinal = primitives.ColumnOrdinal(r.Uint32())
		col.Name = r.Text()
		col.Type = types.SQLType(r.Int32())
		col.Length = r.Uint32()
		col.IsNullable = r.Bool()
		if err := r.Err(); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeCorruptData, "ReadTableSchema", "Schema")
		}
		if !col.Type.IsValid() {
			return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
				"column '%s' has unknown data type code %d", col.Name, int32(col.Type)).
				In("ReadTableSchema", "Schema")
		}
		ts.Columns = append(ts.Columns, col)
	}

	if consumed := r.Offset() - start; uint32(consumed) != total { // #nosec G115
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"column section is %d bytes, header declares %d", consumed, total).
			In("ReadTableSchema", "Schema")
	}

	ts.SortBinaryOrder()
	return ts, nil
}
