package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pagedb/pkg/concurrency/lock"
	"pagedb/pkg/debug/logreader"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
)

// LogOptions holds flags for the log dump command.
type LogOptions struct {
	*RootOptions
	IncompleteOnly bool
	Locks          bool
}

// BatchResult is one batch in the log dump output.
type BatchResult struct {
	ID       string        `json:"id"`
	Complete bool          `json:"complete"`
	Missing  []uint32      `json:"missing,omitempty"`
	Entries  []EntryResult `json:"entries"`
	Locks    []LockResult  `json:"locks,omitempty"`
}

// LockResult is one lock a replay of the batch takes, with how long the
// configured lock timeouts let it wait.
type LockResult struct {
	Lock    string `json:"lock"`
	Timeout string `json:"timeout"`
}

// EntryResult is one entry in the log dump output.
type EntryResult struct {
	LSN       uint64 `json:"lsn"`
	Sequence  uint32 `json:"sequence"`
	Op        string `json:"op"`
	Family    string `json:"family"`
	Object    string `json:"object"`
	Table     uint32 `json:"table"`
	Page      uint32 `json:"page"`
	Row       uint32 `json:"row"`
	User      string `json:"user"`
	Entered   string `json:"entered"`
	Completed string `json:"completed,omitempty"`
	Deleted   bool   `json:"deleted"`
}

// LogDump is the JSON output of log dump.
type LogDump struct {
	Entries  int           `json:"entries"`
	Skipped  int           `json:"skipped"`
	TornTail bool          `json:"torn_tail"`
	TailLSN  uint64        `json:"tail_lsn,omitempty"`
	Batches  []BatchResult `json:"batches"`
}

// NewLogCommand creates the log command and its dump subcommand.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Read the transaction log",
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the batches of the transaction log",
		Long: `Print every batch of the transaction log with its entries.

With --locks, each batch also lists the locks a replay of it would take,
in acquisition order, with the wait bound from the locks section of the
configuration.

Exit codes:
  0 - Every batch is complete
  1 - At least one batch is incomplete or has sequence gaps
  2 - Command error (log not found, unreadable entries, etc.)

Examples:
  pagedb log dump
  pagedb log dump --incomplete --locks
  pagedb log dump --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogDump(opts, cmd)
		},
	}
	dump.Flags().BoolVar(&opts.IncompleteOnly, "incomplete", false, "only print incomplete batches")
	dump.Flags().BoolVar(&opts.Locks, "locks", false, "print the lock acquisition order of each batch")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Browse the transaction log interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logreader.Run(opts.config.WALPath().String()); err != nil {
				return WrapExitError(ExitCommandError, "log inspector failed", err)
			}
			return nil
		},
	}

	cmd.AddCommand(dump, inspect)
	return cmd
}

func runLogDump(opts *LogOptions, cmd *cobra.Command) error {
	path := opts.config.WALPath()
	report, err := wal.Recover(path.String())
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read log %s", path), err)
	}

	dump := LogDump{
		Entries:  report.Entries,
		Skipped:  report.Skipped,
		TornTail: report.TornTail,
		TailLSN:  uint64(report.TailLSN),
		Batches:  make([]BatchResult, 0, len(report.Batches)),
	}
	var timeouts *lock.Timeouts
	if opts.Locks {
		t := opts.config.LockTimeouts()
		timeouts = &t
	}
	healthy := true
	for _, b := range report.Batches {
		complete := b.IsComplete()
		if !complete {
			healthy = false
		}
		if opts.IncompleteOnly && complete {
			continue
		}
		dump.Batches = append(dump.Batches, batchResult(b, timeouts))
	}

	if opts.isJSON() {
		if err := writeJSON(cmd.OutOrStdout(), dump); err != nil {
			return err
		}
	} else {
		writeLogText(cmd.OutOrStdout(), dump)
	}

	if !healthy {
		return NewExitError(ExitFailure, "log has incomplete batches")
	}
	return nil
}

// batchResult converts b. Locks are listed only when timeouts is set.
func batchResult(b *wal.Batch, timeouts *lock.Timeouts) BatchResult {
	res := BatchResult{
		ID:       b.ID.String(),
		Complete: b.IsComplete(),
		Missing:  b.Missing,
		Entries:  make([]EntryResult, len(b.Records)),
	}
	for i, rec := range b.Records {
		e := rec.Entry
		er := EntryResult{
			LSN:      uint64(rec.LSN),
			Sequence: e.Sequence,
			Op:       e.Action.Op.String(),
			Family:   e.ActionType().String(),
			Object:   e.AffectedObjectID.String(),
			Table:    uint32(e.Action.Address.TableID),
			Page:     uint32(e.Action.Address.PageID),
			Row:      uint32(e.Action.Address.RowID),
			User:     e.UserName,
			Entered:  e.EntryTime.Format(time.RFC3339Nano),
			Deleted:  e.IsDeleted,
		}
		if e.IsCompleted {
			er.Completed = e.CompletedTime.Format(time.RFC3339Nano)
		}
		res.Entries[i] = er
	}
	if timeouts != nil {
		for _, r := range replayLocks(b) {
			res.Locks = append(res.Locks, LockResult{
				Lock:    r.String(),
				Timeout: timeouts.For(r.Type).String(),
			})
		}
	}
	return res
}

// replayLocks returns the locks needed to replay b: exclusive locks on
// the rows a batch writes and on the objects it creates or drops, shared
// locks on what it reads.
func replayLocks(b *wal.Batch) []lock.LockObjectRequest {
	var reqs []lock.LockObjectRequest
	for _, rec := range b.Replay() {
		a := rec.Entry.Action
		addr := a.Address
		switch a.Op {
		case entry.InsertOp, entry.UpdateOp, entry.DeleteOp:
			reqs = append(reqs, lock.NewRowRequest(addr.ToRowAddress(), lock.ExclusiveLock, 0))
		case entry.SelectOp:
			reqs = append(reqs, lock.NewRowRequest(addr.ToRowAddress(), lock.SharedLock, 0))
		case entry.SelectTableOp:
			reqs = append(reqs, lock.NewTableRequest(addr.DatabaseID, addr.TableID, lock.SharedLock, 0))
		case entry.CreateTableOp, entry.DropTableOp:
			reqs = append(reqs, lock.NewTableRequest(addr.DatabaseID, addr.TableID, lock.ExclusiveLock, 0))
		case entry.CreateDatabaseOp, entry.DropDatabaseOp:
			reqs = append(reqs, lock.LockObjectRequest{
				Address: addr,
				Level:   lock.DatabaseLevel,
				Type:    lock.ExclusiveLock,
			})
		}
	}
	return lock.SortForAcquisition(reqs)
}

func writeLogText(w io.Writer, dump LogDump) {
	fmt.Fprintf(w, "%d entries in %d batches", dump.Entries, len(dump.Batches))
	if dump.Skipped > 0 {
		fmt.Fprintf(w, ", %d skipped", dump.Skipped)
	}
	if dump.TornTail {
		fmt.Fprintf(w, ", torn tail at lsn %d", dump.TailLSN)
	}
	fmt.Fprintln(w)

	for _, b := range dump.Batches {
		state := "complete"
		if !b.Complete {
			state = "INCOMPLETE"
		}
		fmt.Fprintf(w, "\nbatch %s %s", b.ID, state)
		if len(b.Missing) > 0 {
			fmt.Fprintf(w, " missing %v", b.Missing)
		}
		fmt.Fprintln(w)

		for _, e := range b.Entries {
			deleted := ""
			if e.Deleted {
				deleted = " deleted"
			}
			fmt.Fprintf(w, "  #%-4d lsn=%-8d %-15s table=%d page=%d row=%d user=%s%s\n",
				e.Sequence, e.LSN, e.Op, e.Table, e.Page, e.Row, e.User, deleted)
		}
		for _, l := range b.Locks {
			fmt.Fprintf(w, "  lock %s wait<=%s\n", l.Lock, l.Timeout)
		}
	}
}
