package wal

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
	"pagedb/pkg/utils/bytebuf"
)

const (
	logComponent    = "TransactionLog"
	writerComponent = "LogWriter"
	readerComponent = "LogReader"

	// DefaultBufferSize is the write buffer used when none is configured.
	DefaultBufferSize = 64 * 1024
)

// Log appends transaction entries to a log file and stamps them complete
// in place once the batch they belong to is durable.
//
// Entries of a batch get sequence numbers 1, 2, 3... in the order they are
// appended. Thread-safety: all methods take the log's mutex.
type Log struct {
	file      *os.File
	writer    *LogWriter
	mutex     sync.Mutex
	sequences map[uuid.UUID]uint32
	pending   map[uuid.UUID][]primitives.LSN
	logger    *slog.Logger
}

// Open opens (creating if needed) the log file at path. New entries are
// appended after the existing ones.
func Open(path primitives.Filepath, bufferSize int) (*Log, error) {
	if path.IsEmpty() {
		return nil, dberr.New(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"log path cannot be empty").In("Open", logComponent)
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if err := path.MkdirAll(0o750); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "Open", logComponent)
	}

	file, err := os.OpenFile(path.String(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "Open", logComponent).WithDetail("path %s", path)
	}

	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, dberr.Wrap(err, dberr.CodeIOFailure, "Open", logComponent)
	}

	end := primitives.LSN(pos) // #nosec G115
	return &Log{
		file:      file,
		writer:    NewLogWriter(file, bufferSize, end, end),
		sequences: make(map[uuid.UUID]uint32),
		pending:   make(map[uuid.UUID][]primitives.LSN),
		logger:    logging.WithComponent(logComponent).With("path", path.String()),
	}, nil
}

// BeginBatch starts a new batch and returns its id.
func (l *Log) BeginBatch() uuid.UUID {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	id := uuid.New()
	l.sequences[id] = 0
	return id
}

// Append writes an incomplete entry for action as the next entry of
// batch and returns its LSN. The entry may stay buffered until Force or
// CompleteBatch.
func (l *Log) Append(batch, affected uuid.UUID, action entry.Action, user string) (primitives.LSN, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	seq, ok := l.sequences[batch]
	if !ok {
		return 0, dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"batch %s was not started", batch).In("Append", logComponent)
	}

	e := entry.New(batch, seq+1, affected, action, user)
	data, err := e.Encode()
	if err != nil {
		return 0, err
	}
	lsn, err := l.writer.Write(data)
	if err != nil {
		return 0, err
	}

	l.sequences[batch] = seq + 1
	l.pending[batch] = append(l.pending[batch], lsn)
	return lsn, nil
}

// Force writes every buffered entry and syncs the file.
func (l *Log) Force() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.force()
}

// CompleteBatch makes every entry of batch durable and stamps each one
// completed at now. The batch cannot be appended to afterwards.
func (l *Log) CompleteBatch(batch uuid.UUID, now time.Time) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.sequences[batch]; !ok {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"batch %s was not started", batch).In("CompleteBatch", logComponent)
	}
	if err := bytebuf.CheckTime(now); err != nil {
		return dberr.Wrap(err, dberr.CodeInvalidArgument, "CompleteBatch", logComponent)
	}
	if err := l.force(); err != nil {
		return err
	}

	for _, lsn := range l.pending[batch] {
		err := l.patch(lsn, func(pre []byte) {
			entry.StampComplete(pre, now)
		})
		if err != nil {
			return err
		}
	}
	if err := l.sync(); err != nil {
		return err
	}

	logging.WithBatch(batch).Debug("batch completed", "entries", len(l.pending[batch]))
	delete(l.pending, batch)
	delete(l.sequences, batch)
	return nil
}

// MarkDeleted tombstones the entry at lsn.
func (l *Log) MarkDeleted(lsn primitives.LSN) error {
	return l.stamp(lsn, entry.StampDeleted)
}

// MarkIncomplete clears the completion stamp of the entry at lsn so it is
// replayed with the rest of its batch.
func (l *Log) MarkIncomplete(lsn primitives.LSN) error {
	return l.stamp(lsn, entry.StampIncomplete)
}

// ReopenBatch marks every completed entry of b incomplete. Recovery uses
// it when only part of a batch was stamped, so the batch replays as a
// whole.
func (l *Log) ReopenBatch(b *Batch) error {
	for _, rec := range b.Records {
		if !rec.Entry.IsCompleted {
			continue
		}
		if err := l.MarkIncomplete(rec.LSN); err != nil {
			return err
		}
		rec.Entry.MarkIncomplete()
	}
	return nil
}

// Close flushes buffered entries and closes the file.
func (l *Log) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.writer.Close(); err != nil {
		return err
	}
	if err := l.file.Close(); err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "Close", logComponent)
	}
	return nil
}

func (l *Log) stamp(lsn primitives.LSN, fn func([]byte)) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.force(); err != nil {
		return err
	}
	if err := l.patch(lsn, fn); err != nil {
		return err
	}
	return l.sync()
}

// patch rewrites the preamble of the flushed entry at lsn.
func (l *Log) patch(lsn primitives.LSN, fn func([]byte)) error {
	if lsn+entry.PreambleSize > l.writer.FlushedLSN() {
		return dberr.Newf(dberr.ErrCategoryValidation, dberr.CodeInvalidArgument,
			"no entry at lsn %d", lsn).In("patch", logComponent)
	}

	pre := make([]byte, entry.PreambleSize)
	if _, err := l.file.ReadAt(pre, int64(lsn)); err != nil { // #nosec G115
		return dberr.Wrap(err, dberr.CodeIOFailure, "patch", logComponent)
	}
	if _, err := entry.ParsePreamble(pre); err != nil {
		return err
	}
	fn(pre)
	if _, err := l.file.WriteAt(pre, int64(lsn)); err != nil { // #nosec G115
		return dberr.Wrap(err, dberr.CodeIOFailure, "patch", logComponent)
	}
	return nil
}

func (l *Log) force() error {
	if err := l.writer.Force(l.writer.CurrentLSN()); err != nil {
		return err
	}
	return l.sync()
}

func (l *Log) sync() error {
	if err := l.file.Sync(); err != nil {
		return dberr.Wrap(err, dberr.CodeIOFailure, "sync", logComponent)
	}
	return nil
}
