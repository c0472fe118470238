package wal

import (
	"errors"
	"io"
	"os"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/primitives"
)

const (
	// MaxEntrySize bounds the size a preamble may declare.
	MaxEntrySize = 10 * 1024 * 1024
)

// Record is a decoded entry together with its position in the log.
type Record struct {
	LSN   primitives.LSN
	Entry *entry.TransactionEntry
}

// LogReader reads transaction entries from a log file in the order they
// were written.
type LogReader struct {
	file   *os.File
	offset int64
}

// NewLogReader creates a new log reader for the specified file
func NewLogReader(logPath string) (*LogReader, error) {
	file, err := os.Open(logPath) // #nosec G304
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "NewLogReader", readerComponent).
			WithDetail("path %s", logPath)
	}
	return &LogReader{file: file}, nil
}

// ReadNext reads the entry at the current position and advances past it.
// It returns io.EOF at the end of the log. An entry cut short by the end
// of the file fails with CORRUPT_DATA and the position is not moved. An
// entry that is complete on disk but cannot be decoded fails and the
// position moves past it, so reading can continue.
func (lr *LogReader) ReadNext() (Record, error) {
	lsn := primitives.LSN(lr.offset) // #nosec G115

	head := make([]byte, entry.PreambleSize)
	n, err := lr.file.ReadAt(head, lr.offset)
	if n == 0 && errors.Is(err, io.EOF) {
		return Record{}, io.EOF
	}
	if n < entry.PreambleSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, dberr.Wrap(err, dberr.CodeIOFailure, "ReadNext", readerComponent)
		}
		return Record{}, torn(lsn, entry.PreambleSize, n)
	}

	pre, err := entry.ParsePreamble(head)
	if err != nil {
		return Record{}, err
	}
	size := pre.Size()
	if size > MaxEntrySize {
		return Record{}, dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
			"entry at lsn %d declares %d bytes", lsn, size).In("ReadNext", readerComponent)
	}

	data := make([]byte, size)
	copy(data, head)
	n, err = lr.file.ReadAt(data[entry.PreambleSize:], lr.offset+entry.PreambleSize)
	if n < size-entry.PreambleSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return Record{}, dberr.Wrap(err, dberr.CodeIOFailure, "ReadNext", readerComponent)
		}
		return Record{}, torn(lsn, size, entry.PreambleSize+n)
	}
	lr.offset += int64(size)

	e, _, err := entry.Decode(data)
	if err != nil {
		return Record{}, dberr.Wrap(err, dberr.CodeCorruptData, "ReadNext", readerComponent).
			WithDetail("entry at lsn %d", lsn)
	}
	return Record{LSN: lsn, Entry: e}, nil
}

// ReadAll reads every entry from the current position to the end of the
// log.
func (lr *LogReader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := lr.ReadNext()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// Offset returns the position of the next entry.
func (lr *LogReader) Offset() primitives.LSN {
	return primitives.LSN(lr.offset) // #nosec G115
}

// Reset resets the reader to the beginning of the file
func (lr *LogReader) Reset() {
	lr.offset = 0
}

// Close closes the underlying file
func (lr *LogReader) Close() error {
	if lr.file != nil {
		return lr.file.Close()
	}
	return nil
}

// GetFileSize returns the total size of the log file
func (lr *LogReader) GetFileSize() (int64, error) {
	stat, err := lr.file.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func torn(lsn primitives.LSN, want, have int) error {
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
		"entry at lsn %d is cut short: %d of %d bytes", lsn, have, want).In("ReadNext", readerComponent)
}
