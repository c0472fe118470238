package tuple

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/utils/bytebuf"
)

// RemoteType tells a decoder where the values of a remote row live.
type RemoteType byte

const (
	UnknownRemote RemoteType = iota
	// RemoteParticipant: a participant owns the values; only the reference
	// and hash are stored here.
	RemoteParticipant
	// RemoteHost: the values follow the remote block on this page.
	RemoteHost
	// RemoteContract: the block references a participant contract. Decoding
	// contracts is not supported.
	RemoteContract
)

func (t RemoteType) String() string {
	switch t {
	case RemoteParticipant:
		return "participant"
	case RemoteHost:
		return "host"
	case RemoteContract:
		return "contract"
	default:
		return fmt.Sprintf("RemoteType(%d)", byte(t))
	}
}

// Byte offsets inside the remote block, relative to its start.
const (
	OffsetRemoteID          = 0
	OffsetIsRemoteDeleted   = 16
	OffsetRemoteDeletionUTC = 17
	OffsetRemoteType        = 25
	OffsetHashLength        = 26

	// RemoteBlockFixedSize is the size of the remote block without the hash.
	RemoteBlockFixedSize = 30

	// HashSize is the size of a SHA-256 content hash.
	HashSize = sha256.Size
)

// RemoteData is the replication block of host-remote and partial rows.
//
//	[RemoteId:16][IsRemoteDeleted:1][RemoteDeletionUTC:8][RemoteType:1][HashLength:4][Hash]
type RemoteData struct {
	RemoteID          uuid.UUID
	IsRemoteDeleted   bool
	RemoteDeletionUTC time.Time
	Type              RemoteType
	DataHash          []byte
}

// Size returns the encoded size of the block.
func (r *RemoteData) Size() uint32 {
	return RemoteBlockFixedSize + uint32(len(r.DataHash)) // #nosec G115
}

func (r *RemoteData) write(w *bytebuf.Writer) {
	w.GUID(r.RemoteID)
	w.Bool(r.IsRemoteDeleted)
	w.Time(r.RemoteDeletionUTC)
	w.Byte(byte(r.Type))
	w.LenBytes(r.DataHash)
}

// ParseRemoteData reads a remote block from the start of data.
func ParseRemoteData(data []byte) (*RemoteData, error) {
	r := bytebuf.NewReader(data)
	rd := &RemoteData{
		RemoteID:          r.GUID(),
		IsRemoteDeleted:   r.Bool(),
		RemoteDeletionUTC: r.Time(),
		Type:              RemoteType(r.Byte()),
	}

	hashLen := r.Uint32()
	if r.Err() == nil && hashLen > HashSize {
		return nil, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"remote block declares a %d-byte hash", hashLen).In("ParseRemoteData", codecComponent)
	}
	rd.DataHash = r.Raw(int(hashLen))

	if err := r.Err(); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeCorruptData, "ParseRemoteData", codecComponent)
	}
	return rd, nil
}

func (r *RemoteData) clone() *RemoteData {
	if r == nil {
		return nil
	}
	c := *r
	c.DataHash = append([]byte(nil), r.DataHash...)
	return &c
}
