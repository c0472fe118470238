// Package entry implements the transaction log entry format: a fixed
// preamble, a self-describing action payload and the name of the user who
// issued the action.
//
//	[IsCompleted:1][Sequence:4][BatchID:16][AffectedObjectID:16][EntryTime:8]
//	[CompletedTime:8][ActionType:4][ActionVersion:4][ActionLength:4]
//	[IsDeleted:1][UserNameLength:4][Action:ActionLength][UserName:UserNameLength]
package entry

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/utils/bytebuf"
)

const (
	entryComponent  = "TransactionEntry"
	actionComponent = "Action"
)

// CurrentActionVersion is the version of the action payload format written
// by this package.
const CurrentActionVersion uint32 = 1

// Byte offsets of the preamble fields, relative to the start of the entry.
const (
	OffsetIsCompleted    = 0
	OffsetSequence       = 1
	OffsetBatchID        = 5
	OffsetAffectedObject = 21
	OffsetEntryTime      = 37
	OffsetCompletedTime  = 45
	OffsetActionType     = 53
	OffsetActionVersion  = 57
	OffsetActionLength   = 61
	OffsetIsDeleted      = 65
	OffsetUserNameLength = 66

	// PreambleSize is the size of the fixed entry preamble. The action
	// payload follows it, then the user name bytes.
	PreambleSize = 70
)

// Preamble is the fixed-size head of a transaction entry.
type Preamble struct {
	IsCompleted      bool
	Sequence         uint32
	BatchID          uuid.UUID
	AffectedObjectID uuid.UUID
	EntryTime        time.Time
	CompletedTime    time.Time
	ActionType       ActionType
	ActionVersion    uint32
	ActionLength     uint32
	IsDeleted        bool
	UserNameLength   uint32
}

// Size returns the size of the whole entry the preamble describes.
func (p Preamble) Size() int {
	return PreambleSize + int(p.ActionLength) + int(p.UserNameLength)
}

// ParsePreamble decodes the preamble at the start of data.
func ParsePreamble(data []byte) (Preamble, error) {
	if len(data) < PreambleSize {
		return Preamble{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"entry preamble needs %d bytes, have %d", PreambleSize, len(data)).In("ParsePreamble", entryComponent)
	}

	r := bytebuf.NewReader(data[:PreambleSize])
	p := Preamble{
		IsCompleted:      r.Bool(),
		Sequence:         r.Uint32(),
		BatchID:          r.GUID(),
		AffectedObjectID: r.GUID(),
		EntryTime:        r.Time(),
		CompletedTime:    r.Time(),
		ActionType:       ActionType(r.Uint32()),
		ActionVersion:    r.Uint32(),
		ActionLength:     r.Uint32(),
		IsDeleted:        r.Bool(),
		UserNameLength:   r.Uint32(),
	}
	return p, r.Err()
}

func (p Preamble) put(w *bytebuf.Writer) {
	w.Bool(p.IsCompleted)
	w.Uint32(p.Sequence)
	w.GUID(p.BatchID)
	w.GUID(p.AffectedObjectID)
	w.Time(p.EntryTime)
	w.Time(p.CompletedTime)
	w.Uint32(uint32(p.ActionType))
	w.Uint32(p.ActionVersion)
	w.Uint32(p.ActionLength)
	w.Bool(p.IsDeleted)
	w.Uint32(p.UserNameLength)
}

// TransactionEntry is the durable record of one mutation or read. An
// entry is written incomplete and stamped complete once the change it
// describes is durable; after that only the deleted flag may change.
type TransactionEntry struct {
	IsCompleted      bool
	Sequence         uint32
	BatchID          uuid.UUID
	AffectedObjectID uuid.UUID
	EntryTime        time.Time
	CompletedTime    time.Time
	ActionVersion    uint32
	IsDeleted        bool
	UserName         string
	Action           Action
}

// New creates an incomplete entry for action, number seq of batch.
func New(batch uuid.UUID, seq uint32, affected uuid.UUID, action Action, user string) *TransactionEntry {
	return &TransactionEntry{
		Sequence:         seq,
		BatchID:          batch,
		AffectedObjectID: affected,
		EntryTime:        time.Now().UTC(),
		ActionVersion:    CurrentActionVersion,
		UserName:         user,
		Action:           action,
	}
}

// ActionType returns the family of the entry's action.
func (e *TransactionEntry) ActionType() ActionType {
	return e.Action.Type()
}

// MarkComplete stamps the entry completed at now. Completing an entry
// twice fails with INVALID_STATE.
func (e *TransactionEntry) MarkComplete(now time.Time) error {
	if e.IsCompleted {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidState,
			"entry %d of batch %s is already completed", e.Sequence, e.BatchID).In("MarkComplete", entryComponent)
	}
	if err := bytebuf.CheckTime(now); err != nil {
		return dberr.Wrap(err, dberr.CodeInvalidArgument, "MarkComplete", entryComponent)
	}
	e.IsCompleted = true
	e.CompletedTime = now.UTC()
	return nil
}

// MarkIncomplete reopens a completed entry so recovery replays it.
func (e *TransactionEntry) MarkIncomplete() {
	e.IsCompleted = false
	e.CompletedTime = time.Time{}
}

// MarkDeleted tombstones the entry.
func (e *TransactionEntry) MarkDeleted() {
	e.IsDeleted = true
}

// Encode returns the binary form: preamble, action payload, user name.
func (e *TransactionEntry) Encode() ([]byte, error) {
	payload, err := e.Action.Encode()
	if err != nil {
		return nil, err
	}

	pre := Preamble{
		IsCompleted:      e.IsCompleted,
		Sequence:         e.Sequence,
		BatchID:          e.BatchID,
		AffectedObjectID: e.AffectedObjectID,
		EntryTime:        e.EntryTime,
		CompletedTime:    e.CompletedTime,
		ActionType:       e.ActionType(),
		ActionVersion:    e.ActionVersion,
		ActionLength:     uint32(len(payload)), // #nosec G115
		IsDeleted:        e.IsDeleted,
		UserNameLength:   uint32(len(e.UserName)), // #nosec G115
	}

	w := bytebuf.NewWriter(pre.Size())
	pre.put(w)
	if err := w.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeInvalidArgument, "Encode", entryComponent)
	}
	w.Raw(payload)
	w.Raw([]byte(e.UserName))
	return w.Bytes(), nil
}

// Decode parses the entry at the start of data and returns it with the
// number of bytes it occupies.
func Decode(data []byte) (*TransactionEntry, int, error) {
	pre, err := ParsePreamble(data)
	if err != nil {
		return nil, 0, err
	}

	switch pre.ActionType {
	case DataAction, SchemaAction:
	case PermissionAction:
		return nil, 0, dberr.New(dberr.ErrCategoryNotImplemented, dberr.CodeNotImplemented,
			"permission actions cannot be decoded").In("Decode", entryComponent)
	default:
		return nil, 0, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeUnknownType,
			"unknown action type %d", uint32(pre.ActionType)).In("Decode", entryComponent)
	}
	if pre.ActionVersion != CurrentActionVersion {
		return nil, 0, dberr.Newf(dberr.ErrCategoryNotImplemented, dberr.CodeNotImplemented,
			"action version %d is not supported", pre.ActionVersion).In("Decode", entryComponent)
	}

	size := pre.Size()
	if size > len(data) {
		return nil, 0, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"entry is %d bytes, have %d", size, len(data)).In("Decode", entryComponent)
	}

	actionEnd := PreambleSize + int(pre.ActionLength)
	action, err := DecodeAction(data[PreambleSize:actionEnd])
	if err != nil {
		return nil, 0, err
	}
	if action.Type() != pre.ActionType {
		return nil, 0, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"%s action stored as %s", action.Op, pre.ActionType).In("Decode", entryComponent)
	}

	return &TransactionEntry{
		IsCompleted:      pre.IsCompleted,
		Sequence:         pre.Sequence,
		BatchID:          pre.BatchID,
		AffectedObjectID: pre.AffectedObjectID,
		EntryTime:        pre.EntryTime,
		CompletedTime:    pre.CompletedTime,
		ActionVersion:    pre.ActionVersion,
		IsDeleted:        pre.IsDeleted,
		UserName:         string(data[actionEnd:size]),
		Action:           action,
	}, size, nil
}

// StampComplete patches an encoded preamble in place to record completion
// at now, which must pass bytebuf.CheckTime.
func StampComplete(preamble []byte, now time.Time) {
	preamble[OffsetIsCompleted] = 1
	binary.LittleEndian.PutUint64(preamble[OffsetCompletedTime:], uint64(now.UTC().UnixNano())) // #nosec G115
}

// StampIncomplete patches an encoded preamble in place to clear completion.
func StampIncomplete(preamble []byte) {
	preamble[OffsetIsCompleted] = 0
	binary.LittleEndian.PutUint64(preamble[OffsetCompletedTime:], 0)
}

// StampDeleted patches an encoded preamble in place to tombstone the entry.
func StampDeleted(preamble []byte) {
	preamble[OffsetIsDeleted] = 1
}
