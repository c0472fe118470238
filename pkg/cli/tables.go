package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pagedb/pkg/debug/ui"
	"pagedb/pkg/resultset"
	"pagedb/pkg/storage/heap"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// TableResult describes one table in the tables output.
type TableResult struct {
	Database string   `json:"database"`
	Table    string   `json:"table"`
	TableID  uint32   `json:"table_id"`
	Columns  []string `json:"columns"`
	Pages    uint32   `json:"pages"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables recorded in the transaction log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runTables(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	results := make([]TableResult, 0)
	for _, ts := range cat.Tables() {
		pages, err := store.NumPages(ctx, ts.DatabaseID, ts.TableID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count pages", err)
		}
		layout, err := resultset.NewLayout(ts)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid table", err)
		}
		results = append(results, TableResult{
			Database: ts.DatabaseName,
			Table:    ts.TableName,
			TableID:  uint32(ts.TableID),
			Columns:  layout.Names(),
			Pages:    pages,
		})
	}

	if opts.isJSON() {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tables found.")
		return nil
	}

	cells := make([][]string, len(results))
	for i, r := range results {
		cells[i] = []string{r.Database + "." + r.Table, fmt.Sprintf("%d", r.TableID),
			fmt.Sprintf("%d", len(r.Columns)), fmt.Sprintf("%d", r.Pages)}
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderTable([]string{"table", "id", "columns", "pages"}, cells, -1))
	return nil
}

// RowsOptions holds flags for the rows command.
type RowsOptions struct {
	*RootOptions
	Table   string
	Columns []string
	Limit   int
}

// NewRowsCommand creates the rows command.
func NewRowsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RowsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print the live rows of a table",
		Long: `Print the live rows of a table, page by page.

Examples:
  pagedb rows --table demo.accounts
  pagedb rows --table accounts --columns id,owner --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRows(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table name, optionally qualified as database.table (required)")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "columns to print (default all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many rows (0 for no limit)")

	return cmd
}

func runRows(ctx context.Context, opts *RowsOptions, cmd *cobra.Command) error {
	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	ts, err := cat.Table(opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown table", err)
	}

	it := heap.NewHeapFile(store, ts, page.UserDataPage).Iterator(ctx)
	if err := it.Open(); err != nil {
		return WrapExitError(ExitCommandError, "failed to open table", err)
	}
	defer it.Close()

	var rows []*tuple.Row
	for opts.Limit <= 0 || len(rows) < opts.Limit {
		hasNext, err := it.HasNext()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read table", err)
		}
		if !hasNext {
			break
		}
		row, err := it.Next()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read table", err)
		}
		rows = append(rows, row)
	}

	layout, values, err := resultset.FromRows(ts, rows, opts.Columns...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to project rows", err)
	}
	return writeResultset(cmd, opts.RootOptions, layout, values)
}

func writeResultset(cmd *cobra.Command, opts *RootOptions, layout resultset.ResultsetLayout, values [][]resultset.ResultsetValue) error {
	headers, cells := ui.ResultsetCells(layout, values)
	if opts.isJSON() {
		out := make([]map[string]*string, len(values))
		for i, row := range values {
			out[i] = make(map[string]*string, len(row))
			for _, v := range row {
				if v.IsNull {
					out[i][v.Column] = nil
				} else {
					text := v.Text
					out[i][v.Column] = &text
				}
			}
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}
	if len(cells) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rows.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderTable(headers, cells, -1))
	return nil
}
