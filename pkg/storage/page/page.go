package page

import (
	"encoding/binary"
	"fmt"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
)

const (
	// PageSize is the size of each page in bytes (8KB)
	PageSize = 8192

	// DatabaseVersion is the on-disk layout version described below.
	DatabaseVersion = 100

	// MaxForwardHops bounds how many same-page forwards a lookup follows.
	// Chain compression keeps real chains at one hop.
	MaxForwardHops = 4

	pageComponent = "Page"
)

// Header layout, version 100.
//
//	page preamble:      [PageId:4][PageType:4][IsDeleted:1]
//	data-page preamble: [TotalBytesUsed:4][TotalRows:4][DatabaseId:16][TableId:4][DataPageType:4]
//
// Rows start immediately after the data-page preamble.
const (
	OffsetPageID         = 0
	OffsetPageType       = 4
	OffsetPageIsDeleted  = 8
	PagePreambleSize     = 9
	OffsetTotalBytesUsed = 9
	OffsetTotalRows      = 13
	OffsetDatabaseID     = 17
	OffsetTableID        = 33
	OffsetDataPageType   = 37
	DataPreambleSize     = 32

	// RowDataStartOffset is where the first row of a version 100 page lives.
	RowDataStartOffset = PagePreambleSize + DataPreambleSize
)

// PageType is the kind of page stored in the page preamble.
type PageType uint32

const (
	UnknownPage PageType = iota
	DataPage
)

// DataPageType tells which kind of table a data page belongs to.
type DataPageType uint32

const (
	UnknownDataPage DataPageType = iota
	// UserDataPage holds rows of a user table.
	UserDataPage
	// SystemDataPage holds value-group rows of a catalog table.
	SystemDataPage
)

func (t DataPageType) String() string {
	switch t {
	case UserDataPage:
		return "user"
	case SystemDataPage:
		return "system"
	default:
		return fmt.Sprintf("DataPageType(%d)", uint32(t))
	}
}

// Header is the decoded page and data-page preamble.
type Header struct {
	PageID         primitives.PageID
	Type           PageType
	IsDeleted      bool
	TotalBytesUsed uint32
	TotalRows      uint32
	DatabaseID     primitives.DatabaseID
	TableID        primitives.TableID
	DataPageType   DataPageType
}

// Address returns the page address described by the header.
func (h Header) Address() primitives.PageAddress {
	return primitives.PageAddress{DatabaseID: h.DatabaseID, TableID: h.TableID, PageID: h.PageID}
}

func (h Header) put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[OffsetPageID:], uint32(h.PageID))
	binary.LittleEndian.PutUint32(dst[OffsetPageType:], uint32(h.Type))
	dst[OffsetPageIsDeleted] = 0
	if h.IsDeleted {
		dst[OffsetPageIsDeleted] = 1
	}
	h.putCounters(dst)
	copy(dst[OffsetDatabaseID:OffsetDatabaseID+16], h.DatabaseID[:])
	binary.LittleEndian.PutUint32(dst[OffsetTableID:], uint32(h.TableID))
	binary.LittleEndian.PutUint32(dst[OffsetDataPageType:], uint32(h.DataPageType))
}

func (h Header) putCounters(dst []byte) {
	binary.LittleEndian.PutUint32(dst[OffsetTotalBytesUsed:], h.TotalBytesUsed)
	binary.LittleEndian.PutUint32(dst[OffsetTotalRows:], h.TotalRows)
}

// ParseHeader decodes the preambles at the start of a page buffer.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < RowDataStartOffset {
		return Header{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"page header needs %d bytes, got %d", RowDataStartOffset, len(data)).
			In("ParseHeader", pageComponent)
	}

	h := Header{
		PageID:         primitives.PageID(binary.LittleEndian.Uint32(data[OffsetPageID:])),
		Type:           PageType(binary.LittleEndian.Uint32(data[OffsetPageType:])),
		IsDeleted:      data[OffsetPageIsDeleted] != 0,
		TotalBytesUsed: binary.LittleEndian.Uint32(data[OffsetTotalBytesUsed:]),
		TotalRows:      binary.LittleEndian.Uint32(data[OffsetTotalRows:]),
		TableID:        primitives.TableID(binary.LittleEndian.Uint32(data[OffsetTableID:])),
		DataPageType:   DataPageType(binary.LittleEndian.Uint32(data[OffsetDataPageType:])),
	}
	copy(h.DatabaseID[:], data[OffsetDatabaseID:OffsetDatabaseID+16])
	return h, nil
}
