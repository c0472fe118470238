package page

import (
	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
)

// RowVisitor is called by ParsePageData with the offset and preamble of a
// row copy. Returning false stops the pass.
type RowVisitor func(offset primitives.Offset, preamble tuple.Preamble) bool

// ParsePageData makes one forward pass over the row data, reading only
// row preambles. Logically deleted rows are skipped unless includeDeleted
// is set. With stopAtFirstForward the pass ends at the first forwarded
// copy without visiting it. The pass also ends at a zero row id or when the
// next preamble would run past the row data.
func (p *Page) ParsePageData(includeDeleted, stopAtFirstForward bool, visit RowVisitor) error {
	end := p.rowDataEnd()
	cursor := uint32(RowDataStartOffset)

	for cursor+tuple.PreambleSize <= end {
		pre, err := tuple.ParsePreamble(p.data[cursor:end])
		if err != nil {
			return err
		}
		if !pre.ID.IsValid() {
			return nil
		}
		if err := pre.Validate(); err != nil {
			return dberr.Wrap(err, dberr.CodeCorruptData, "ParsePageData", pageComponent).
				WithDetail("page %d offset %d", p.header.PageID, cursor)
		}
		if uint64(cursor)+uint64(pre.TotalSize) > uint64(end) {
			return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
				"row %d at offset %d runs past the row data (%d bytes)", pre.ID, cursor, pre.TotalSize).
				In("ParsePageData", pageComponent)
		}

		if stopAtFirstForward && pre.IsForwarded {
			return nil
		}
		if includeDeleted || !pre.IsLogicallyDeleted {
			if !visit(primitives.Offset(cursor), pre) {
				return nil
			}
		}
		cursor += pre.TotalSize
	}
	return nil
}

// GetRowIdsOnPage returns the ids of rows whose current copy lives on this
// page, in the order those copies were written.
func (p *Page) GetRowIdsOnPage(includeDeletedRows bool) ([]primitives.RowID, error) {
	var ids []primitives.RowID
	err := p.ParsePageData(includeDeletedRows, false, func(_ primitives.Offset, pre tuple.Preamble) bool {
		if !pre.IsForwarded {
			ids = append(ids, pre.ID)
		}
		return true
	})
	return ids, err
}

// Rows returns decoded copies of every live row on the page.
func (p *Page) Rows() ([]*tuple.Row, error) {
	var rows []*tuple.Row
	err := p.scanLive(func(_ primitives.Offset, row *tuple.Row) {
		rows = append(rows, row)
	})
	return rows, err
}

// HasValue reports whether any live row holds value in value's column.
// Values are compared on their encoded bytes, null flag included.
func (p *Page) HasValue(value tuple.RowValue) (bool, error) {
	found := false
	err := p.scanLiveUntil(func(_ primitives.Offset, row *tuple.Row) bool {
		found = matchesAll(row, value)
		return !found
	})
	return found, err
}

// GetRowsWithValue returns decoded copies of the live rows holding value.
func (p *Page) GetRowsWithValue(value tuple.RowValue) ([]*tuple.Row, error) {
	var rows []*tuple.Row
	err := p.scanLive(func(_ primitives.Offset, row *tuple.Row) {
		if matchesAll(row, value) {
			rows = append(rows, row)
		}
	})
	return rows, err
}

// GetCountOfRowsWithValue counts the live rows holding value.
func (p *Page) GetCountOfRowsWithValue(value tuple.RowValue) (int, error) {
	count := 0
	err := p.scanLive(func(_ primitives.Offset, row *tuple.Row) {
		if matchesAll(row, value) {
			count++
		}
	})
	return count, err
}

// GetRowAddressesWithAllValues returns the address of every live row that
// holds all of values. At least one value is required.
func (p *Page) GetRowAddressesWithAllValues(values []tuple.RowValue) ([]primitives.RowAddress, error) {
	if len(values) == 0 {
		return nil, errNoValues("GetRowAddressesWithAllValues")
	}

	var addrs []primitives.RowAddress
	err := p.scanLive(func(off primitives.Offset, row *tuple.Row) {
		if matchesAll(row, values...) {
			addrs = append(addrs, primitives.RowAddress{
				DatabaseID: p.header.DatabaseID,
				TableID:    p.header.TableID,
				PageID:     p.header.PageID,
				RowID:      row.ID(),
				RowOffset:  off,
			})
		}
	})
	return addrs, err
}

func (p *Page) scanLive(fn func(primitives.Offset, *tuple.Row)) error {
	return p.scanLiveUntil(func(off primitives.Offset, row *tuple.Row) bool {
		fn(off, row)
		return true
	})
}

// scanLiveUntil decodes every copy that is neither deleted nor forwarded.
func (p *Page) scanLiveUntil(fn func(primitives.Offset, *tuple.Row) bool) error {
	var scanErr error
	err := p.ParsePageData(false, false, func(off primitives.Offset, pre tuple.Preamble) bool {
		if pre.IsForwarded {
			return true
		}
		row, err := tuple.ParseRow(p.schema, p.data[off:p.rowDataEnd()])
		if err != nil {
			scanErr = err
			return false
		}
		return fn(off, row)
	})
	if err != nil {
		return err
	}
	return scanErr
}

func errNoValues(op string) error {
	return dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
		"at least one value to match is required").In(op, pageComponent)
}

func matchesAll(row *tuple.Row, values ...tuple.RowValue) bool {
	for _, want := range values {
		got, ok := row.Value(want.Column.Name)
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// ValueFor encodes src for the named column of ts, for use with the value
// scans.
func ValueFor(ts *schema.TableSchema, column string, src any) (tuple.RowValue, error) {
	col, ok := ts.Column(column)
	if !ok {
		return tuple.RowValue{}, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeColumnNotFound,
			"table '%s' has no column '%s'", ts.TableName, column).In("ValueFor", pageComponent)
	}
	return tuple.EncodeValue(col, src)
}
