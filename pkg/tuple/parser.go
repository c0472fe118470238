package tuple

import (
	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
)

// ParseRow decodes one row from the start of data using ts to interpret
// the value section. The preamble is read first, then the tag decides
// whether a remote block follows, and for remote rows the block's
// RemoteType decides whether values follow. Every step advances by the
// exact number of bytes consumed; the totals must match the preamble.
//
// ts is put into binary order as a side effect.
func ParseRow(ts *schema.TableSchema, data []byte) (*Row, error) {
	p, err := ParsePreamble(data)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if uint64(p.TotalSize) > uint64(len(data)) {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"row %d declares %d bytes, %d available", p.ID, p.TotalSize, len(data)).
			In("ParseRow", codecComponent)
	}

	row := &Row{Preamble: p}
	body := data[PreambleSize:p.TotalSize]

	withValues := false
	switch p.Type {
	case LocalRow, ValueGroupRow:
		withValues = true
	case HostRemoteRow, PartialRow:
		remote, err := parseRemoteFor(p, body)
		if err != nil {
			return nil, err
		}
		row.Remote = remote
		body = body[p.RemotableSize:]
		withValues = remote.Type == RemoteHost
	default:
		return nil, unknownRowType(p.Type, "ParseRow")
	}

	if !withValues {
		if p.ValueSize != 0 {
			return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
				"row %d is a reference but declares %d value bytes", p.ID, p.ValueSize).
				In("ParseRow", codecComponent)
		}
		return row, nil
	}

	values, err := parseValues(ts, body[:p.ValueSize])
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeCorruptData, "ParseRow", codecComponent).
			WithDetail("row %d", p.ID)
	}
	row.Values = values
	return row, nil
}

func parseRemoteFor(p Preamble, body []byte) (*RemoteData, error) {
	if uint64(p.RemotableSize) > uint64(len(body)) || p.RemotableSize < RemoteBlockFixedSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"row %d declares a %d-byte remote block", p.ID, p.RemotableSize).
			In("ParseRow", codecComponent)
	}

	remote, err := ParseRemoteData(body[:p.RemotableSize])
	if err != nil {
		return nil, err
	}
	if remote.Size() != p.RemotableSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"row %d remote block is %d bytes, preamble says %d", p.ID, remote.Size(), p.RemotableSize).
			In("ParseRow", codecComponent)
	}

	switch remote.Type {
	case RemoteContract:
		return nil, dberr.Newf(dberr.ErrCategoryNotImplemented, dberr.CodeNotImplemented,
			"row %d references a participant contract", p.ID).In("ParseRow", codecComponent)
	case RemoteParticipant:
		if p.Type != HostRemoteRow {
			return nil, mismatchedRemote(p, remote)
		}
	case RemoteHost:
		if p.Type != PartialRow {
			return nil, mismatchedRemote(p, remote)
		}
	default:
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
			"row %d has unknown remote type %d", p.ID, byte(remote.Type)).In("ParseRow", codecComponent)
	}
	return remote, nil
}

// parseValues decodes one value per column of ts, in binary order, and
// requires the values to consume data exactly.
func parseValues(ts *schema.TableSchema, data []byte) ([]RowValue, error) {
	ts.SortBinaryOrder()

	values := make([]RowValue, 0, len(ts.Columns))
	off := 0
	for _, col := range ts.Columns {
		v, err := DecodeValue(col, data[off:])
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		off += int(v.ParseValueLength)
	}

	if off != len(data) {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"values consumed %d of %d bytes", off, len(data)).In("ParseRow", codecComponent)
	}
	return values, nil
}

func mismatchedRemote(p Preamble, r *RemoteData) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
		"%s row %d carries a %s remote block", p.Type, p.ID, r.Type).In("ParseRow", codecComponent)
}
