package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pagedb/pkg/debug/ui"
	"pagedb/pkg/primitives"
	"pagedb/pkg/resultset"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// PageOptions holds flags shared by the page subcommands.
type PageOptions struct {
	*RootOptions
	Table  string
	PageID uint32
}

// PageDump is the JSON output of page dump.
type PageDump struct {
	Header map[string]string    `json:"header"`
	Slots  []SlotResult         `json:"slots"`
	Rows   []map[string]*string `json:"rows"`
}

// SlotResult is one row copy in the page dump.
type SlotResult struct {
	Offset uint32 `json:"offset"`
	RowID  uint32 `json:"row_id"`
	Type   string `json:"type"`
	Size   uint32 `json:"size"`
	Status string `json:"status"`
}

// CountResult is the JSON output of page count.
type CountResult struct {
	Column    string                  `json:"column"`
	Value     string                  `json:"value"`
	Count     int                     `json:"count"`
	Addresses []primitives.RowAddress `json:"addresses,omitempty"`
}

// NewPageCommand creates the page command and its subcommands.
func NewPageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Read stored pages",
	}
	cmd.PersistentFlags().StringVarP(&opts.Table, "table", "t", "", "table name, optionally qualified as database.table (required)")
	_ = cmd.MarkPersistentFlagRequired("table")

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the header, row copies and live rows of one page",
		Example: `  pagedb page dump --table demo.accounts --page 0
  pagedb page dump --table accounts --page 2 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPageDump(cmd.Context(), opts, cmd)
		},
	}
	dump.Flags().Uint32VarP(&opts.PageID, "page", "p", 0, "page id")

	var rowID uint32
	get := &cobra.Command{
		Use:   "get",
		Short: "Print one row, following forwards to other pages",
		Example: `  pagedb page get --table demo.accounts --page 0 --row 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPageGet(cmd.Context(), opts, primitives.RowID(rowID), cmd)
		},
	}
	get.Flags().Uint32VarP(&opts.PageID, "page", "p", 0, "page id the row was written to")
	get.Flags().Uint32VarP(&rowID, "row", "r", 0, "row id (required)")
	_ = get.MarkFlagRequired("row")

	var column, value string
	var addresses bool
	count := &cobra.Command{
		Use:   "count",
		Short: "Count the live rows of a table holding a value, scanning pages in parallel",
		Example: `  pagedb page count --table demo.accounts --column owner --value ada
  pagedb page count --table accounts --column active --value true --addresses`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPageCount(cmd.Context(), opts, column, value, addresses, cmd)
		},
	}
	count.Flags().StringVar(&column, "column", "", "column to match (required)")
	count.Flags().StringVar(&value, "value", "", "literal to match")
	count.Flags().BoolVar(&addresses, "addresses", false, "also list the address of every match")
	_ = count.MarkFlagRequired("column")

	cmd.AddCommand(dump, get, count)
	return cmd
}

func runPageDump(ctx context.Context, opts *PageOptions, cmd *cobra.Command) error {
	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	ts, err := cat.Table(opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown table", err)
	}
	p, err := storage.LoadPage(ctx, store, ts, primitives.PageID(opts.PageID))
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to load page %d", opts.PageID), err)
	}
	slots, err := ui.Slots(p)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to parse page", err)
	}
	rows, err := p.Rows()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode rows", err)
	}
	layout, values, err := resultset.FromRows(ts, rows)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to project rows", err)
	}

	if opts.isJSON() {
		return writeJSON(cmd.OutOrStdout(), pageDump(p, slots, values))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.RenderFields(ui.HeaderFields(p)))
	fmt.Fprintln(out, ui.RenderHeaderWithCount("Row copies", len(slots)))
	slotCells := make([][]string, len(slots))
	for i, s := range slots {
		slotCells[i] = s.Cells()
	}
	fmt.Fprint(out, ui.RenderTable(ui.SlotHeaders, slotCells, -1))
	fmt.Fprintln(out, ui.RenderHeaderWithCount("Live rows", len(values)))
	return writeResultset(cmd, opts.RootOptions, layout, values)
}

func pageDump(p *page.Page, slots []ui.Slot, values [][]resultset.ResultsetValue) PageDump {
	dump := PageDump{
		Header: make(map[string]string),
		Slots:  make([]SlotResult, len(slots)),
		Rows:   make([]map[string]*string, len(values)),
	}
	for _, f := range ui.HeaderFields(p) {
		dump.Header[f.Label] = f.Value
	}
	for i, s := range slots {
		dump.Slots[i] = SlotResult{
			Offset: uint32(s.Offset),
			RowID:  uint32(s.Preamble.ID),
			Type:   s.Preamble.Type.String(),
			Size:   s.Preamble.TotalSize,
			Status: s.Status(),
		}
	}
	for i, row := range values {
		dump.Rows[i] = make(map[string]*string, len(row))
		for _, v := range row {
			if !v.IsNull {
				text := v.Text
				dump.Rows[i][v.Column] = &text
			} else {
				dump.Rows[i][v.Column] = nil
			}
		}
	}
	return dump
}

func runPageGet(ctx context.Context, opts *PageOptions, id primitives.RowID, cmd *cobra.Command) error {
	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	ts, err := cat.Table(opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown table", err)
	}
	addr := primitives.RowAddress{
		DatabaseID: ts.DatabaseID,
		TableID:    ts.TableID,
		PageID:     primitives.PageID(opts.PageID),
		RowID:      id,
	}
	row, err := storage.FetchRow(ctx, store, ts, addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to fetch row %d", id), err)
	}

	layout, values, err := resultset.FromRows(ts, []*tuple.Row{row})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to project row", err)
	}
	return writeResultset(cmd, opts.RootOptions, layout, values)
}

func runPageCount(ctx context.Context, opts *PageOptions, column, literal string, addresses bool, cmd *cobra.Command) error {
	cat, store, err := opts.openData()
	if err != nil {
		return err
	}
	defer store.Close()

	ts, err := cat.Table(opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown table", err)
	}
	value, err := page.ValueFor(ts, column, literal)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid value", err)
	}

	workers := opts.config.Scan.Workers
	n, err := storage.CountRowsWithValue(ctx, store, ts, value, workers)
	if err != nil {
		return WrapExitError(ExitCommandError, "scan failed", err)
	}

	result := CountResult{Column: column, Value: literal, Count: n}
	if addresses {
		result.Addresses, err = storage.FindRowAddresses(ctx, store, ts, []tuple.RowValue{value}, workers)
		if err != nil {
			return WrapExitError(ExitCommandError, "scan failed", err)
		}
	}

	if opts.isJSON() {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d rows with %s = %s\n", n, column, literal)
	for _, a := range result.Addresses {
		fmt.Fprintf(out, "  page %d row %d offset %d\n", a.PageID, a.RowID, a.RowOffset)
	}
	return nil
}
