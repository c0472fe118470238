// Package bytebuf provides the fixed-width little-endian writer and reader
// shared by every binary format of the storage engine: row preambles, remote
// blocks, page headers, table schemas and transaction log entries.
//
// All integers are fixed width. Strings and byte slices are prefixed with a
// 4-byte length. GUIDs are 16 raw bytes. Times are 8-byte Unix nanoseconds,
// with the zero time written as 0.
package bytebuf

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"

	dberr "pagedb/pkg/error"
)

// GUIDSize is the on-disk size of a GUID.
const GUIDSize = 16

// Times that fit in 8-byte Unix nanoseconds.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// CheckTime fails with INVALID_ARGUMENT when t is neither the zero time nor
// representable as Unix nanoseconds.
func CheckTime(t time.Time) error {
	if t.IsZero() || (!t.Before(MinTime) && !t.After(MaxTime)) {
		return nil
	}
	return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
		"time %s is outside the storable range %s..%s", t.UTC().Format(time.RFC3339),
		MinTime.Format(time.RFC3339Nano), MaxTime.Format(time.RFC3339Nano))
}

// Writer appends fixed-width values to a growing byte slice. A value that
// cannot be encoded is recorded and written as zero; check Err before
// using the bytes.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Byte(v byte) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v)) // #nosec G115
}

func (w *Writer) Int64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) // #nosec G115
}

func (w *Writer) GUID(v uuid.UUID) {
	w.buf = append(w.buf, v[:]...)
}

// Time writes t as Unix nanoseconds; the zero time is written as 0.
func (w *Writer) Time(t time.Time) {
	if err := CheckTime(t); err != nil {
		if w.err == nil {
			w.err = err
		}
		w.Int64(0)
		return
	}
	if t.IsZero() {
		w.Int64(0)
		return
	}
	w.Int64(t.UTC().UnixNano())
}

// Raw appends b without a length prefix.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// LenBytes appends a 4-byte length followed by b.
func (w *Writer) LenBytes(b []byte) {
	w.Uint32(uint32(len(b))) // #nosec G115
	w.buf = append(w.buf, b...)
}

// Text appends a 4-byte length followed by the bytes of s.
func (w *Writer) Text(s string) {
	w.Uint32(uint32(len(s))) // #nosec G115
	w.buf = append(w.buf, s...)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first value that could not be encoded.
func (w *Writer) Err() error {
	return w.err
}

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader consumes fixed-width values from a byte slice. The first overrun
// is recorded and every later read returns a zero value; check Err once
// after a sequence of reads.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error {
	return r.err
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"buffer overrun: need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Byte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	return r.Byte() != 0
}

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int32() int32 {
	return int32(r.Uint32()) // #nosec G115
}

func (r *Reader) Int64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b)) // #nosec G115
}

func (r *Reader) GUID() uuid.UUID {
	var id uuid.UUID
	if b := r.take(GUIDSize); b != nil {
		copy(id[:], b)
	}
	return id
}

// Time reads a value written by Writer.Time.
func (r *Reader) Time() time.Time {
	n := r.Int64()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Raw returns a copy of the next n bytes.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// LenBytes reads a 4-byte length and returns a copy of that many bytes.
func (r *Reader) LenBytes() []byte {
	n := r.Uint32()
	if r.err != nil {
		return nil
	}
	return r.Raw(int(n))
}

// Text reads a length-prefixed string.
func (r *Reader) Text() string {
	return string(r.LenBytes())
}
