package primitives

import (
	"fmt"
	"hash/fnv"
)

// PageAddress locates a page: the key used by page stores.
type PageAddress struct {
	DatabaseID DatabaseID
	TableID    TableID
	PageID     PageID
}

// RowAddress locates one physical copy of a row on a page.
type RowAddress struct {
	DatabaseID DatabaseID
	TableID    TableID
	PageID     PageID
	RowID      RowID
	RowOffset  Offset
}

// TreeAddress locates a table tree: a table inside a database and schema.
type TreeAddress struct {
	DatabaseID DatabaseID
	TableID    TableID
	SchemaID   SchemaID
}

// ValueAddress locates one encoded column value inside a row.
type ValueAddress struct {
	DatabaseID  DatabaseID
	TableID     TableID
	PageID      PageID
	RowID       RowID
	RowOffset   Offset
	ValueOffset Offset
	ColumnName  string
}

// SQLAddress carries every coordinate a log entry or lock request may need.
// The To* projections are pure; no address type owns another.
type SQLAddress struct {
	DatabaseID DatabaseID
	TableID    TableID
	PageID     PageID
	RowID      RowID
	RowOffset  Offset
	SchemaID   SchemaID
}

// ToPageAddress projects the address onto its page coordinates.
func (a SQLAddress) ToPageAddress() PageAddress {
	return PageAddress{DatabaseID: a.DatabaseID, TableID: a.TableID, PageID: a.PageID}
}

// ToRowAddress projects the address onto its row coordinates.
func (a SQLAddress) ToRowAddress() RowAddress {
	return RowAddress{
		DatabaseID: a.DatabaseID,
		TableID:    a.TableID,
		PageID:     a.PageID,
		RowID:      a.RowID,
		RowOffset:  a.RowOffset,
	}
}

// ToTreeAddress projects the address onto its table tree coordinates.
func (a SQLAddress) ToTreeAddress() TreeAddress {
	return TreeAddress{DatabaseID: a.DatabaseID, TableID: a.TableID, SchemaID: a.SchemaID}
}

// PageAddress returns the page that holds this row copy.
func (r RowAddress) PageAddress() PageAddress {
	return PageAddress{DatabaseID: r.DatabaseID, TableID: r.TableID, PageID: r.PageID}
}

// String returns a string representation of the page address.
func (p PageAddress) String() string {
	return fmt.Sprintf("PageAddress(db=%s, table=%d, page=%d)", p.DatabaseID, p.TableID, p.PageID)
}

// HashCode returns a hash code for this page address.
func (p PageAddress) HashCode() HashCode {
	h := fnv.New64a()
	h.Write(p.DatabaseID[:])
	h.Write([]byte{
		byte(p.TableID), byte(p.TableID >> 8), byte(p.TableID >> 16), byte(p.TableID >> 24),
		byte(p.PageID), byte(p.PageID >> 8), byte(p.PageID >> 16), byte(p.PageID >> 24),
	})
	return HashCode(h.Sum64())
}

func (r RowAddress) String() string {
	return fmt.Sprintf("RowAddress(db=%s, table=%d, page=%d, row=%d, offset=%d)",
		r.DatabaseID, r.TableID, r.PageID, r.RowID, r.RowOffset)
}
