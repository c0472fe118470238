package wal

import (
	"cmp"
	"errors"
	"io"
	"slices"

	"github.com/google/uuid"

	dberr "pagedb/pkg/error"
	"pagedb/pkg/logging"
	"pagedb/pkg/primitives"
)

// Batch is the set of entries written under one batch id, in sequence
// order.
type Batch struct {
	ID      uuid.UUID
	Records []Record
	// Missing lists sequence numbers below the highest one seen that have
	// no entry in the log.
	Missing []uint32
}

// IsComplete reports whether every entry of the batch is present and
// stamped complete.
func (b *Batch) IsComplete() bool {
	if len(b.Missing) > 0 {
		return false
	}
	for _, rec := range b.Records {
		if !rec.Entry.IsCompleted {
			return false
		}
	}
	return true
}

// Replay returns the entries to re-apply, in sequence order. Tombstoned
// entries are left out.
func (b *Batch) Replay() []Record {
	out := make([]Record, 0, len(b.Records))
	for _, rec := range b.Records {
		if !rec.Entry.IsDeleted {
			out = append(out, rec)
		}
	}
	return out
}

// Err returns a SEQUENCE_GAP error when entries of the batch are missing.
func (b *Batch) Err() error {
	if len(b.Missing) == 0 {
		return nil
	}
	return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeSequenceGap,
		"batch %s is missing sequence numbers %v", b.ID, b.Missing).In("Recover", logComponent)
}

// Report is the result of scanning a log file.
type Report struct {
	// Batches in the order their first entry appears in the log.
	Batches []*Batch
	Entries int
	// Skipped counts entries that are whole on disk but could not be
	// decoded, such as permission actions.
	Skipped int
	// TornTail is set when the log ends inside an entry; TailLSN is where
	// that entry starts.
	TornTail bool
	TailLSN  primitives.LSN
}

// Incomplete returns the batches that must be replayed or rolled back.
func (r *Report) Incomplete() []*Batch {
	var out []*Batch
	for _, b := range r.Batches {
		if !b.IsComplete() {
			out = append(out, b)
		}
	}
	return out
}

// Recover reads the log at path and groups its entries by batch. Two
// entries of one batch with the same sequence number fail with
// CORRUPT_DATA.
func Recover(path string) (*Report, error) {
	reader, err := NewLogReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	logger := logging.WithComponent(logComponent).With("path", path)
	report := &Report{}
	byID := make(map[uuid.UUID]*Batch)

	for {
		start := reader.Offset()
		rec, err := reader.ReadNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if reader.Offset() == start {
				report.TornTail = true
				report.TailLSN = start
				logger.Warn("log ends inside an entry", "lsn", uint64(start), "error", err)
				break
			}
			report.Skipped++
			logger.Warn("skipping undecodable entry", "lsn", uint64(start), "error", err)
			continue
		}

		report.Entries++
		b, ok := byID[rec.Entry.BatchID]
		if !ok {
			b = &Batch{ID: rec.Entry.BatchID}
			byID[b.ID] = b
			report.Batches = append(report.Batches, b)
		}
		b.Records = append(b.Records, rec)
	}

	for _, b := range report.Batches {
		if err := b.order(); err != nil {
			return nil, err
		}
		if len(b.Missing) > 0 {
			logging.WithBatch(b.ID).Warn("batch has sequence gaps", "missing", b.Missing)
		}
	}

	logger.Info("log recovered",
		"entries", report.Entries,
		"batches", len(report.Batches),
		"incomplete", len(report.Incomplete()),
		"skipped", report.Skipped,
		"torn_tail", report.TornTail)
	return report, nil
}

// order sorts the records by sequence number and fills Missing.
func (b *Batch) order() error {
	slices.SortStableFunc(b.Records, func(x, y Record) int {
		return cmp.Compare(x.Entry.Sequence, y.Entry.Sequence)
	})

	next := uint32(1)
	for _, rec := range b.Records {
		seq := rec.Entry.Sequence
		if seq < next {
			return dberr.Newf(dberr.ErrCategoryFormat, dberr.CodeCorruptData,
				"batch %s has a repeated or zero sequence number %d", b.ID, seq).In("Recover", logComponent)
		}
		for ; next < seq; next++ {
			b.Missing = append(b.Missing, next)
		}
		next = seq + 1
	}
	return nil
}
