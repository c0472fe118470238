package page

import (
	"encoding/binary"
	"log/slog"
	"slices"
	"time"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
)

// Page is one 8192-byte data page of a table.
//
// Rows are appended one after another from RowDataStartOffset. Bytes are
// never reclaimed: a delete flips a flag and an update that changes a row's
// size appends a new copy and forwards every older copy to it. The page
// keeps an in-memory index from row id to every offset a copy of that row
// occupies, in the order the copies were written, so the last offset is
// always the newest copy.
//
// Page owns its buffer. Every lookup returns a decoded copy, never a view
// into the buffer. Page does no locking; callers serialize access per page.
type Page struct {
	data    []byte
	header  Header
	schema  *schema.TableSchema
	offsets map[primitives.RowID][]primitives.Offset
	dirty   bool
	logger  *slog.Logger
}

// NewPage creates an empty data page for rows of ts.
func NewPage(pageID primitives.PageID, ts *schema.TableSchema, kind DataPageType) *Page {
	p := &Page{
		data: make([]byte, PageSize),
		header: Header{
			PageID:       pageID,
			Type:         DataPage,
			DatabaseID:   ts.DatabaseID,
			TableID:      ts.TableID,
			DataPageType: kind,
		},
		schema:  ts,
		offsets: make(map[primitives.RowID][]primitives.Offset),
		dirty:   true,
	}
	p.header.put(p.data)
	p.logger = logging.WithPage(p.Address()).With("component", pageComponent)
	return p
}

// Load builds a page from a buffer returned by a page store. The buffer is
// copied, the header checked, and the row offset index rebuilt with one
// pass over the row data.
func Load(data []byte, ts *schema.TableSchema) (*Page, error) {
	if len(data) != PageSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"invalid page data size: expected %d, got %d", PageSize, len(data)).In("Load", pageComponent)
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Type != DataPage {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
			"page %d has type %d, expected a data page", h.PageID, uint32(h.Type)).In("Load", pageComponent)
	}
	if uint64(h.TotalBytesUsed)+RowDataStartOffset > PageSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"page %d claims %d used bytes", h.PageID, h.TotalBytesUsed).In("Load", pageComponent)
	}
	if h.TableID != ts.TableID || h.DatabaseID != ts.DatabaseID {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"page %d belongs to table %d, schema is for table %d", h.PageID, h.TableID, ts.TableID).
			In("Load", pageComponent)
	}

	p := &Page{
		data:    slices.Clone(data),
		header:  h,
		schema:  ts,
		offsets: make(map[primitives.RowID][]primitives.Offset),
	}
	p.logger = logging.WithPage(p.Address()).With("component", pageComponent)

	err = p.ParsePageData(true, false, func(off primitives.Offset, pre tuple.Preamble) bool {
		p.offsets[pre.ID] = append(p.offsets[pre.ID], off)
		return true
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Header returns the decoded page header.
func (p *Page) Header() Header {
	return p.header
}

// ID returns the page id.
func (p *Page) ID() primitives.PageID {
	return p.header.PageID
}

// Address returns the key of this page in a page store.
func (p *Page) Address() primitives.PageAddress {
	return p.header.Address()
}

// Schema returns the table schema used to decode rows.
func (p *Page) Schema() *schema.TableSchema {
	return p.schema
}

// TotalBytesUsed returns the number of row bytes written to the page,
// including forwarded and deleted copies.
func (p *Page) TotalBytesUsed() uint32 {
	return p.header.TotalBytesUsed
}

// TotalRows returns the number of logical rows stored on the page.
// Forwarded copies are not counted again.
func (p *Page) TotalRows() uint32 {
	return p.header.TotalRows
}

// FreeBytes returns the space left for new rows.
func (p *Page) FreeBytes() uint32 {
	return PageSize - RowDataStartOffset - p.header.TotalBytesUsed
}

// IsDirty reports whether the page changed since it was loaded or last
// marked clean.
func (p *Page) IsDirty() bool {
	return p.dirty
}

// MarkClean is called by page stores after the buffer was persisted.
func (p *Page) MarkClean() {
	p.dirty = false
}

// Data returns a copy of the page buffer for a page store.
func (p *Page) Data() []byte {
	return slices.Clone(p.data)
}

// IsFull reports whether a row of rowSize bytes would not fit.
func (p *Page) IsFull(rowSize uint32) bool {
	return uint64(p.header.TotalBytesUsed)+uint64(rowSize)+RowDataStartOffset > PageSize
}

// AddRow appends row at the next free offset and returns that offset.
// The row's sizes are recomputed before it is written. A full page, an
// invalid row id, or an id already on the page leave the page untouched.
func (p *Page) AddRow(row *tuple.Row) (primitives.Offset, error) {
	if !row.ID().IsValid() {
		return 0, dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"row id 0 is reserved").In("AddRow", pageComponent)
	}
	if _, exists := p.offsets[row.ID()]; exists {
		return 0, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeDuplicateRowID,
			"row %d is already on page %d", row.ID(), p.header.PageID).In("AddRow", pageComponent)
	}

	c := row.Clone()
	c.ClearForward()
	encoded, err := c.GetRowInPageBinaryFormat()
	if err != nil {
		return 0, err
	}

	off, err := p.appendRow(encoded, "AddRow")
	if err != nil {
		return 0, err
	}

	p.offsets[row.ID()] = []primitives.Offset{off}
	p.header.TotalRows++
	p.header.putCounters(p.data)

	p.logger.Debug("row added", "row_id", uint32(row.ID()), "offset", uint32(off), "size", len(encoded))
	return off, nil
}

// TryUpdateRowData writes a new version of an existing row.
//
// When the encoded size is unchanged the current copy is overwritten in
// place and its offset returned. Otherwise the new copy is appended and
// every older copy of the row is forwarded to it, so no chain is ever
// longer than one hop. When the new copy does not fit, the page reports
// NOT_ENOUGH_ROOM and nothing is written; the caller may relocate the row
// to another page and call ForwardRow.
func (p *Page) TryUpdateRowData(row *tuple.Row) (primitives.Offset, error) {
	offs, err := p.rowOffsets(row.ID(), "TryUpdateRowData")
	if err != nil {
		return 0, err
	}
	cur := offs[len(offs)-1]

	pre, err := tuple.ParsePreamble(p.data[cur:])
	if err != nil {
		return 0, err
	}
	if pre.IsForwarded {
		return 0, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"row %d was moved to page %d", row.ID(), pre.ForwardedPageID).In("TryUpdateRowData", pageComponent)
	}

	c := row.Clone()
	c.ClearForward()
	encoded, err := c.GetRowInPageBinaryFormat()
	if err != nil {
		return 0, err
	}

	if uint32(len(encoded)) == pre.TotalSize { // #nosec G115
		copy(p.data[cur:], encoded)
		p.dirty = true
		p.logger.Debug("row updated in place", "row_id", uint32(row.ID()), "offset", uint32(cur))
		return cur, nil
	}

	off, err := p.appendRow(encoded, "TryUpdateRowData")
	if err != nil {
		return 0, err
	}

	for _, old := range offs {
		p.stampForward(old, off, p.header.PageID)
	}
	p.offsets[row.ID()] = append(offs, off)
	p.header.putCounters(p.data)

	p.logger.Debug("row forwarded", "row_id", uint32(row.ID()), "from", uint32(cur), "to", uint32(off),
		"copies", len(offs)+1)
	return off, nil
}

// ForwardRow records that the row was relocated to another page. Every
// copy on this page is pointed at (offset, pageID) and the row no longer
// counts towards TotalRows; its bytes stay on the page.
func (p *Page) ForwardRow(id primitives.RowID, offset primitives.Offset, pageID primitives.PageID) error {
	offs, err := p.rowOffsets(id, "ForwardRow")
	if err != nil {
		return err
	}
	if pageID == p.header.PageID {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"row %d: same-page forwards are written by TryUpdateRowData", id).In("ForwardRow", pageComponent)
	}

	wasHere := !p.isForwardedAway(offs[len(offs)-1])
	for _, old := range offs {
		p.stampForward(old, offset, pageID)
	}
	if wasHere && p.header.TotalRows > 0 {
		p.header.TotalRows--
		p.header.putCounters(p.data)
	}

	p.logger.Debug("row moved", "row_id", uint32(id), "to_page", uint32(pageID), "to_offset", uint32(offset))
	return nil
}

// DeleteRow marks the current copy of the row logically deleted. Partial
// rows also record the remote deletion time. Counters are unchanged.
func (p *Page) DeleteRow(id primitives.RowID) error {
	return p.deleteRowAt(id, time.Now().UTC())
}

func (p *Page) deleteRowAt(id primitives.RowID, now time.Time) error {
	offs, err := p.rowOffsets(id, "DeleteRow")
	if err != nil {
		return err
	}
	cur := offs[len(offs)-1]

	pre, err := tuple.ParsePreamble(p.data[cur:])
	if err != nil {
		return err
	}
	if pre.IsForwarded && pre.ForwardedPageID != p.header.PageID {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"row %d was moved to page %d", id, pre.ForwardedPageID).In("DeleteRow", pageComponent)
	}

	p.data[int(cur)+tuple.OffsetIsDeleted] = 1
	if pre.Type == tuple.PartialRow {
		remote := int(cur) + tuple.PreambleSize
		p.data[remote+tuple.OffsetIsRemoteDeleted] = 1
		binary.LittleEndian.PutUint64(p.data[remote+tuple.OffsetRemoteDeletionUTC:], uint64(now.UnixNano())) // #nosec G115
	}
	p.dirty = true

	p.logger.Debug("row deleted", "row_id", uint32(id), "offset", uint32(cur))
	return nil
}

// GetRow returns a decoded copy of the newest version of the row. A
// forward to another offset on this page is followed; a forward to
// another page is returned as is so the caller can fetch that page.
func (p *Page) GetRow(id primitives.RowID) (*tuple.Row, error) {
	offs, err := p.rowOffsets(id, "GetRow")
	if err != nil {
		return nil, err
	}
	return p.resolve(offs[len(offs)-1])
}

// GetRowByAddress returns the row at addr. When addr carries a row offset
// the lookup starts from that copy; otherwise it behaves like GetRow.
func (p *Page) GetRowByAddress(addr primitives.RowAddress) (*tuple.Row, error) {
	if addr.PageAddress() != p.Address() {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"address %s is not on page %s", addr, p.Address()).In("GetRowByAddress", pageComponent)
	}
	if addr.RowOffset == primitives.InvalidOffset {
		return p.GetRow(addr.RowID)
	}

	offs, err := p.rowOffsets(addr.RowID, "GetRowByAddress")
	if err != nil {
		return nil, err
	}
	if !slices.Contains(offs, addr.RowOffset) {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeRowNotFound,
			"row %d has no copy at offset %d", addr.RowID, addr.RowOffset).In("GetRowByAddress", pageComponent)
	}
	return p.resolve(addr.RowOffset)
}

// GetRowOffsets returns every offset holding a copy of the row, oldest first.
func (p *Page) GetRowOffsets(id primitives.RowID) []primitives.Offset {
	return slices.Clone(p.offsets[id])
}

func (p *Page) resolve(off primitives.Offset) (*tuple.Row, error) {
	for hop := 0; ; hop++ {
		row, err := p.rowAt(off)
		if err != nil {
			return nil, err
		}
		if !row.IsForwarded() || row.Preamble.ForwardedPageID != p.header.PageID {
			return row, nil
		}
		if hop == MaxForwardHops {
			return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeForwardLoop,
				"row %d forwards more than %d times", row.ID(), MaxForwardHops).In("GetRow", pageComponent)
		}
		off = row.Preamble.ForwardOffset
	}
}

func (p *Page) rowAt(off primitives.Offset) (*tuple.Row, error) {
	if off < RowDataStartOffset || uint64(off) >= uint64(p.rowDataEnd()) {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"offset %d is outside the row data of page %d", off, p.header.PageID).In("GetRow", pageComponent)
	}
	return tuple.ParseRow(p.schema, p.data[off:p.rowDataEnd()])
}

func (p *Page) rowOffsets(id primitives.RowID, op string) ([]primitives.Offset, error) {
	offs, ok := p.offsets[id]
	if !ok || len(offs) == 0 {
		return nil, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeRowNotFound,
			"row %d is not on page %d", id, p.header.PageID).In(op, pageComponent)
	}
	return offs, nil
}

// appendRow copies encoded to the first free offset and accounts for its
// bytes. It writes nothing when the row does not fit.
func (p *Page) appendRow(encoded []byte, op string) (primitives.Offset, error) {
	size := uint32(len(encoded)) // #nosec G115
	if p.IsFull(size) {
		p.logger.Debug("page full", "op", op, "size", size, "free", p.FreeBytes())
		return 0, dberr.Newf(dberr.ErrCategoryCapacity, dberr.CodeNotEnoughRoom,
			"row of %d bytes does not fit, %d bytes free", size, p.FreeBytes()).
			In(op, pageComponent)
	}

	off := primitives.Offset(p.rowDataEnd())
	copy(p.data[off:], encoded)
	p.header.TotalBytesUsed += size
	p.dirty = true
	return off, nil
}

func (p *Page) stampForward(at, to primitives.Offset, pageID primitives.PageID) {
	row := p.data[at:]
	row[tuple.OffsetIsForwarded] = 1
	binary.LittleEndian.PutUint32(row[tuple.OffsetForwardOffset:], uint32(to))
	binary.LittleEndian.PutUint32(row[tuple.OffsetForwardedPageID:], uint32(pageID))
	p.dirty = true
}

func (p *Page) isForwardedAway(off primitives.Offset) bool {
	row := p.data[off:]
	return row[tuple.OffsetIsForwarded] != 0 &&
		primitives.PageID(binary.LittleEndian.Uint32(row[tuple.OffsetForwardedPageID:])) != p.header.PageID
}

func (p *Page) rowDataEnd() uint32 {
	return RowDataStartOffset + p.header.TotalBytesUsed
}
