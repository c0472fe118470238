package tuple

import (
	"encoding/binary"
	"fmt"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
)

// RowType is the variant tag stored in every row preamble.
type RowType uint32

const (
	UnknownRow RowType = iota
	// LocalRow stores every value on this host.
	LocalRow
	// HostRemoteRow stores only a reference (remote id + hash) to a row owned
	// by a participant.
	HostRemoteRow
	// PartialRow stores values together with replication metadata.
	PartialRow
	// ValueGroupRow stores values for system/catalog tables.
	ValueGroupRow
)

func (t RowType) String() string {
	switch t {
	case LocalRow:
		return "local"
	case HostRemoteRow:
		return "host_remote"
	case PartialRow:
		return "partial"
	case ValueGroupRow:
		return "value_group"
	default:
		return fmt.Sprintf("RowType(%d)", uint32(t))
	}
}

// IsRemote reports whether rows of this type carry a remote block.
func (t RowType) IsRemote() bool {
	return t == HostRemoteRow || t == PartialRow
}

// Byte offsets of the preamble fields, relative to the start of the row.
const (
	OffsetRowID           = 0
	OffsetRowType         = 4
	OffsetIsForwarded     = 8
	OffsetForwardOffset   = 9
	OffsetForwardedPageID = 13
	OffsetIsDeleted       = 17
	OffsetTotalSize       = 18
	OffsetRemotableSize   = 22
	OffsetValueSize       = 26

	// PreambleSize is the size of the fixed row preamble.
	PreambleSize = 30
)

// Preamble is the fixed header of every row.
//
//	[Id:4][Type:4][IsForwarded:1][ForwardOffset:4][ForwardedPageId:4]
//	[IsLogicallyDeleted:1][RowTotalSize:4][RowRemotableSize:4][RowValueSize:4]
//
// The three size fields are always recomputed together (Row.SetSizes).
type Preamble struct {
	ID                 primitives.RowID
	Type               RowType
	IsForwarded        bool
	ForwardOffset      primitives.Offset
	ForwardedPageID    primitives.PageID
	IsLogicallyDeleted bool
	TotalSize          uint32
	RemotableSize      uint32
	ValueSize          uint32
}

// Put writes the preamble into the first PreambleSize bytes of dst.
func (p Preamble) Put(dst []byte) {
	binary.LittleEndian.PutUint32(dst[OffsetRowID:], uint32(p.ID))
	binary.LittleEndian.PutUint32(dst[OffsetRowType:], uint32(p.Type))
	dst[OffsetIsForwarded] = boolByte(p.IsForwarded)
	binary.LittleEndian.PutUint32(dst[OffsetForwardOffset:], uint32(p.ForwardOffset))
	binary.LittleEndian.PutUint32(dst[OffsetForwardedPageID:], uint32(p.ForwardedPageID))
	dst[OffsetIsDeleted] = boolByte(p.IsLogicallyDeleted)
	binary.LittleEndian.PutUint32(dst[OffsetTotalSize:], p.TotalSize)
	binary.LittleEndian.PutUint32(dst[OffsetRemotableSize:], p.RemotableSize)
	binary.LittleEndian.PutUint32(dst[OffsetValueSize:], p.ValueSize)
}

// Bytes returns the serialized preamble.
func (p Preamble) Bytes() []byte {
	out := make([]byte, PreambleSize)
	p.Put(out)
	return out
}

// ParsePreamble reads a preamble from the start of data.
func ParsePreamble(data []byte) (Preamble, error) {
	if len(data) < PreambleSize {
		return Preamble{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"row preamble needs %d bytes, %d available", PreambleSize, len(data)).
			In("ParsePreamble", codecComponent)
	}

	return Preamble{
		ID:                 primitives.RowID(binary.LittleEndian.Uint32(data[OffsetRowID:])),
		Type:               RowType(binary.LittleEndian.Uint32(data[OffsetRowType:])),
		IsForwarded:        data[OffsetIsForwarded] != 0,
		ForwardOffset:      primitives.Offset(binary.LittleEndian.Uint32(data[OffsetForwardOffset:])),
		ForwardedPageID:    primitives.PageID(binary.LittleEndian.Uint32(data[OffsetForwardedPageID:])),
		IsLogicallyDeleted: data[OffsetIsDeleted] != 0,
		TotalSize:          binary.LittleEndian.Uint32(data[OffsetTotalSize:]),
		RemotableSize:      binary.LittleEndian.Uint32(data[OffsetRemotableSize:]),
		ValueSize:          binary.LittleEndian.Uint32(data[OffsetValueSize:]),
	}, nil
}

// Validate checks that the size fields are consistent with each other.
func (p Preamble) Validate() error {
	if uint64(p.TotalSize) != uint64(PreambleSize)+uint64(p.RemotableSize)+uint64(p.ValueSize) {
		return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"row %d: total size %d != %d + remotable %d + values %d",
			p.ID, p.TotalSize, PreambleSize, p.RemotableSize, p.ValueSize).
			In("ParsePreamble", codecComponent)
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
