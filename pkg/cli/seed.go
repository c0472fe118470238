package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"pagedb/pkg/catalog/schema"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	Table    string
	Rows     int
}

// SeedResult is the JSON output of the seed command.
type SeedResult struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	TableID  uint32 `json:"table_id"`
	Rows     int    `json:"rows"`
	Pages    uint32 `json:"pages"`
	Batch    string `json:"batch"`
}

var seedOwners = []string{"ada", "grace", "edsger", "barbara", "ken", "margaret", "donald"}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo table and fill it with rows",
		Long: `Create a demo accounts table and insert rows into it.

The table, its database and every inserted row are recorded in one batch of
the transaction log; the batch is stamped complete once every page is
written.

Examples:
  pagedb seed
  pagedb seed --database bank --table accounts --rows 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "database", "demo", "database name")
	cmd.Flags().StringVar(&opts.Table, "table", "accounts", "table name")
	cmd.Flags().IntVar(&opts.Rows, "rows", 250, "number of rows to insert")

	return cmd
}

func runSeed(ctx context.Context, opts *SeedOptions, cmd *cobra.Command) error {
	if opts.Rows < 0 {
		return NewExitError(ExitCommandError, "--rows cannot be negative")
	}

	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := cat.Table(opts.Database + "." + opts.Table); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("table %s.%s already exists", opts.Database, opts.Table))
	}

	log, err := wal.Open(opts.config.WALPath(), opts.config.WAL.BufferSize)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open transaction log", err)
	}
	defer log.Close()

	batch := log.BeginBatch()
	dbID, ok := cat.Database(opts.Database)
	if !ok {
		dbID = uuid.New()
		if _, err := log.Append(batch, dbID, entry.NewCreateDatabase(dbID, opts.Database), opts.User); err != nil {
			return WrapExitError(ExitCommandError, "failed to log database", err)
		}
	}

	ts, err := seedSchema(dbID, opts.Database, cat.NextTableID(dbID), opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid table", err)
	}
	if _, err := log.Append(batch, ts.ObjectID, entry.NewCreateTable(ts), opts.User); err != nil {
		return WrapExitError(ExitCommandError, "failed to log table", err)
	}

	hf := heap.NewHeapFile(store, ts, page.UserDataPage)
	for i := 1; i <= opts.Rows; i++ {
		row, err := seedRow(ts, primitives.RowID(i)) // #nosec G115
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build row", err)
		}
		addr, err := hf.InsertRow(ctx, row)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to insert row %d", i), err)
		}
		action, err := entry.NewInsert(ts, addr, row)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode insert", err)
		}
		if _, err := log.Append(batch, ts.ObjectID, action, opts.User); err != nil {
			return WrapExitError(ExitCommandError, "failed to log insert", err)
		}
	}

	if err := log.CompleteBatch(batch, time.Now()); err != nil {
		return WrapExitError(ExitCommandError, "failed to complete batch", err)
	}

	pages, err := hf.NumPages(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count pages", err)
	}

	result := SeedResult{
		Database: opts.Database,
		Table:    opts.Table,
		TableID:  uint32(ts.TableID),
		Rows:     opts.Rows,
		Pages:    pages,
		Batch:    batch.String(),
	}
	if opts.isJSON() {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s.%s (table %d): %d rows on %d pages, batch %s\n",
		result.Database, result.Table, result.TableID, result.Rows, result.Pages, result.Batch)
	return nil
}

func seedSchema(db primitives.DatabaseID, dbName string, id primitives.TableID, name string) (*schema.TableSchema, error) {
	return schema.NewSchemaBuilder(id, name).
		InDatabase(db, dbName).
		AddColumn("id", types.IntType, 0).
		AddColumn("owner", types.VarcharType, 64).
		AddColumn("balance", types.DecimalType, 0).
		AddColumn("opened", types.DateTimeType, 0).
		AddColumn("active", types.BitType, 0).
		AddNullable("note", types.VarcharType, 200).
		Build()
}

func seedRow(ts *schema.TableSchema, id primitives.RowID) (*tuple.Row, error) {
	n := int(id)
	b := tuple.NewBuilder(ts).
		Set("id", n).
		Set("owner", seedOwners[n%len(seedOwners)]).
		Set("balance", float64(n*125)/4).
		Set("opened", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, n)).
		Set("active", n%3 != 0)
	if n%2 == 0 {
		b.Set("note", fmt.Sprintf("account %d", n))
	} else {
		b.SetNull("note")
	}
	return b.Local(id)
}
