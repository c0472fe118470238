package wal

import (
	"io"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/primitives"
)

// LogWriter buffers encoded entries in memory and writes them to the log
// file in order. An entry's LSN is the byte offset it will occupy.
type LogWriter struct {
	writer       io.WriterAt
	currentLSN   primitives.LSN
	flushedLSN   primitives.LSN
	buffer       []byte
	bufferOffset int
	bufferSize   int
}

// NewLogWriter creates a new LogWriter with the given underlying writer and buffer size
func NewLogWriter(writer io.WriterAt, bufferSize int, current, flushed primitives.LSN) *LogWriter {
	return &LogWriter{
		writer:     writer,
		bufferSize: bufferSize,
		buffer:     make([]byte, bufferSize),
		currentLSN: current,
		flushedLSN: flushed,
	}
}

// Write appends data to the buffer and returns the LSN assigned to it.
// Entries larger than the buffer bypass it.
func (w *LogWriter) Write(data []byte) (primitives.LSN, error) {
	assignedLSN := w.currentLSN

	if len(data) > w.bufferSize {
		if err := w.flush(); err != nil {
			return 0, err
		}
		if _, err := w.writer.WriteAt(data, int64(w.flushedLSN)); err != nil { // #nosec G115
			return 0, dberr.Wrap(err, dberr.CodeIOFailure, "Write", writerComponent)
		}
		w.flushedLSN += primitives.LSN(len(data))
		w.currentLSN = w.flushedLSN
		return assignedLSN, nil
	}

	if w.bufferOffset+len(data) > w.bufferSize {
		if err := w.flush(); err != nil {
			return 0, err
		}
	}
	copy(w.buffer[w.bufferOffset:], data)
	w.bufferOffset += len(data)
	w.currentLSN += primitives.LSN(len(data))

	return assignedLSN, nil
}

// Force ensures every byte before lsn has been handed to the underlying
// writer.
func (w *LogWriter) Force(lsn primitives.LSN) error {
	if w.flushedLSN >= lsn {
		return nil
	}
	return w.flush()
}

func (w *LogWriter) flush() error {
	if w.bufferOffset == 0 {
		return nil
	}

	if _, err := w.writer.WriteAt(w.buffer[:w.bufferOffset], int64(w.flushedLSN)); err != nil { // #nosec G115
		return dberr.Wrap(err, dberr.CodeIOFailure, "flush", writerComponent)
	}

	w.flushedLSN = w.currentLSN
	w.bufferOffset = 0
	return nil
}

// CurrentLSN returns the LSN the next entry will get.
func (w *LogWriter) CurrentLSN() primitives.LSN {
	return w.currentLSN
}

// FlushedLSN returns the end of the bytes already written out.
func (w *LogWriter) FlushedLSN() primitives.LSN {
	return w.flushedLSN
}

func (w *LogWriter) Close() error {
	return w.flush()
}
