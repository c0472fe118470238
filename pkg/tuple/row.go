package tuple

import (
	"crypto/sha256"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"pagedb/pkg/catalog/schema"
	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
	"pagedb/pkg/utils/bytebuf"
)

// Row is a tagged union over the four row variants. Preamble.Type is the
// tag; the variant decides which of Values and Remote are meaningful:
//
//	LocalRow:      Values
//	HostRemoteRow: Remote (Type RemoteParticipant), no Values
//	PartialRow:    Remote (Type RemoteHost) + Values
//	ValueGroupRow: Values
//
// Values are kept in the table's binary order. A Row returned by a page is
// a decoded copy; mutating it never touches the page buffer.
type Row struct {
	Preamble Preamble
	Values   []RowValue
	Remote   *RemoteData
}

// NewLocalRow creates a local row from encoded values.
func NewLocalRow(id primitives.RowID, values []RowValue) *Row {
	return newValueRow(id, LocalRow, values)
}

// NewValueGroupRow creates a value-group row used by system tables.
func NewValueGroupRow(id primitives.RowID, values []RowValue) *Row {
	return newValueRow(id, ValueGroupRow, values)
}

// NewHostRemoteRow creates a reference to a row owned by a participant.
// dataHash is the participant's hash of the row's values.
func NewHostRemoteRow(id primitives.RowID, remoteID uuid.UUID, dataHash []byte) *Row {
	r := &Row{
		Preamble: Preamble{ID: id, Type: HostRemoteRow},
		Remote: &RemoteData{
			RemoteID: remoteID,
			Type:     RemoteParticipant,
			DataHash: slices.Clone(dataHash),
		},
	}
	r.SetSizes()
	return r
}

// NewPartialRow creates a row holding values and replication metadata.
// Its hash is derived from the values.
func NewPartialRow(id primitives.RowID, remoteID uuid.UUID, values []RowValue) *Row {
	r := &Row{
		Preamble: Preamble{ID: id, Type: PartialRow},
		Values:   sortedValues(values),
		Remote:   &RemoteData{RemoteID: remoteID, Type: RemoteHost},
	}
	r.SetSizes()
	return r
}

func newValueRow(id primitives.RowID, t RowType, values []RowValue) *Row {
	r := &Row{
		Preamble: Preamble{ID: id, Type: t},
		Values:   sortedValues(values),
	}
	r.SetSizes()
	return r
}

// ID returns the row id.
func (r *Row) ID() primitives.RowID {
	return r.Preamble.ID
}

// Type returns the variant tag.
func (r *Row) Type() RowType {
	return r.Preamble.Type
}

// IsDeleted reports whether the row is logically deleted.
func (r *Row) IsDeleted() bool {
	return r.Preamble.IsLogicallyDeleted
}

// IsForwarded reports whether this copy of the row points elsewhere.
func (r *Row) IsForwarded() bool {
	return r.Preamble.IsForwarded
}

// Delete marks the row logically deleted at the current time.
func (r *Row) Delete() {
	r.DeleteAt(time.Now().UTC())
}

// DeleteAt marks the row logically deleted. Partial rows also record the
// remote deletion and its UTC time.
func (r *Row) DeleteAt(now time.Time) {
	r.Preamble.IsLogicallyDeleted = true
	if r.Preamble.Type == PartialRow && r.Remote != nil {
		r.Remote.IsRemoteDeleted = true
		r.Remote.RemoteDeletionUTC = now.UTC()
	}
}

// ForwardRow points this copy of the row at a newer copy.
func (r *Row) ForwardRow(offset primitives.Offset, pageID primitives.PageID) {
	r.Preamble.IsForwarded = true
	r.Preamble.ForwardOffset = offset
	r.Preamble.ForwardedPageID = pageID
}

// ClearForward removes any forwarding from this copy of the row.
func (r *Row) ClearForward() {
	r.Preamble.IsForwarded = false
	r.Preamble.ForwardOffset = 0
	r.Preamble.ForwardedPageID = 0
}

// Value returns the value of the named column.
func (r *Row) Value(column string) (RowValue, bool) {
	column = norm.NFC.String(column)
	for _, v := range r.Values {
		if v.Column.Name == column {
			return v, true
		}
	}
	return RowValue{}, false
}

// SetValue encodes src for the named column, replaces the current value and
// recomputes the preamble sizes.
func (r *Row) SetValue(column string, src any) error {
	idx, err := r.valueIndex(column)
	if err != nil {
		return err
	}

	v, err := EncodeValue(r.Values[idx].Column, src)
	if err != nil {
		return err
	}
	r.Values[idx] = v
	r.SetSizes()
	return nil
}

// SetValueAsNullForColumn sets the named column to NULL and recomputes the
// preamble sizes.
func (r *Row) SetValueAsNullForColumn(column string) error {
	idx, err := r.valueIndex(column)
	if err != nil {
		return err
	}

	v, err := NullValue(r.Values[idx].Column)
	if err != nil {
		return err
	}
	r.Values[idx] = v
	r.SetSizes()
	return nil
}

func (r *Row) valueIndex(column string) (int, error) {
	if r.Preamble.Type == HostRemoteRow {
		return -1, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"row %d is a host-remote reference and holds no values", r.Preamble.ID).
			In("SetValue", codecComponent)
	}
	column = norm.NFC.String(column)
	for i, v := range r.Values {
		if v.Column.Name == column {
			return i, nil
		}
	}
	return -1, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeColumnNotFound,
		"row %d has no column '%s'", r.Preamble.ID, column).In("SetValue", codecComponent)
}

// SetSizes recomputes RemotableSize, ValueSize and TotalSize together. For
// partial rows the hash is refreshed first so the remotable size is exact.
func (r *Row) SetSizes() {
	if r.Preamble.Type == PartialRow && r.Remote != nil {
		r.Remote.DataHash = r.ComputeDataHash()
	}

	var remotable, values uint32
	if r.Remote != nil && r.Preamble.Type.IsRemote() {
		remotable = r.Remote.Size()
	}
	if r.Preamble.Type != HostRemoteRow {
		for _, v := range r.Values {
			values += uint32(len(v.Encoded)) // #nosec G115
		}
	}

	r.Preamble.RemotableSize = remotable
	r.Preamble.ValueSize = values
	r.Preamble.TotalSize = PreambleSize + remotable + values
}

// Size returns the encoded size of the row after recomputing sizes.
func (r *Row) Size() uint32 {
	r.SetSizes()
	return r.Preamble.TotalSize
}

// ValuePayload returns the concatenated encoded values in binary order.
func (r *Row) ValuePayload() []byte {
	var n int
	for _, v := range r.Values {
		n += len(v.Encoded)
	}
	out := make([]byte, 0, n)
	for _, v := range r.Values {
		out = append(out, v.Encoded...)
	}
	return out
}

// ComputeDataHash returns the SHA-256 of the value payload. Two rows with
// identical values have identical hashes regardless of any other metadata.
func (r *Row) ComputeDataHash() []byte {
	sum := sha256.Sum256(r.ValuePayload())
	return sum[:]
}

// DataHash returns the content hash of the row. Partial rows recompute it
// from their current values on every call; host-remote rows return the
// hash supplied by the owning participant; other rows hash their values.
func (r *Row) DataHash() []byte {
	switch r.Preamble.Type {
	case HostRemoteRow:
		if r.Remote == nil {
			return nil
		}
		return slices.Clone(r.Remote.DataHash)
	default:
		return r.ComputeDataHash()
	}
}

// GetRowInPageBinaryFormat serializes the row as it is stored on a page.
// Sizes are recomputed first.
func (r *Row) GetRowInPageBinaryFormat() ([]byte, error) {
	r.SetSizes()

	w := bytebuf.NewWriter(int(r.Preamble.TotalSize))
	w.Raw(r.Preamble.Bytes())

	switch r.Preamble.Type {
	case LocalRow, ValueGroupRow:
		// values only
	case HostRemoteRow, PartialRow:
		if r.Remote == nil {
			return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeInvalidState,
				"%s row %d has no remote block", r.Preamble.Type, r.Preamble.ID).
				In("GetRowInPageBinaryFormat", codecComponent)
		}
		r.Remote.write(w)
		if err := w.Err(); err != nil {
			return nil, dberr.Wrap(err, dberr.CodeInvalidArgument, "GetRowInPageBinaryFormat", codecComponent)
		}
	default:
		return nil, unknownRowType(r.Preamble.Type, "GetRowInPageBinaryFormat")
	}

	if r.Preamble.Type != HostRemoteRow {
		for _, v := range r.Values {
			w.Raw(v.Encoded)
		}
	}

	return w.Bytes(), nil
}

// GetRowInTransactionBinaryFormat serializes the row for a transaction log
// entry: the page format with forwarding fields cleared, since offsets are
// page-local and meaningless on replay.
func (r *Row) GetRowInTransactionBinaryFormat() ([]byte, error) {
	c := r.Clone()
	c.ClearForward()
	return c.GetRowInPageBinaryFormat()
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{Preamble: r.Preamble, Remote: r.Remote.clone()}
	if r.Values != nil {
		c.Values = make([]RowValue, len(r.Values))
		for i, v := range r.Values {
			c.Values[i] = RowValue{
				Column:           v.Column,
				Encoded:          slices.Clone(v.Encoded),
				ParseValueLength: v.ParseValueLength,
			}
		}
	}
	return c
}

func sortedValues(values []RowValue) []RowValue {
	out := slices.Clone(values)
	slices.SortStableFunc(out, func(a, b RowValue) int {
		return schema.CompareBinaryOrder(a.Column, b.Column)
	})
	return out
}

func unknownRowType(t RowType, op string) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
		"unknown row type %d", uint32(t)).In(op, codecComponent)
}
