package cli

import (
	"github.com/spf13/cobra"

	"pagedb/pkg/debug/pagereader"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Browse the pages of a table interactively",
		Example: `  pagedb inspect --table demo.accounts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, store, err := rootOpts.openData()
			if err != nil {
				return err
			}
			defer store.Close()

			ts, err := cat.Table(table)
			if err != nil {
				return WrapExitError(ExitCommandError, "unknown table", err)
			}
			if err := pagereader.Run(cmd.Context(), store, ts); err != nil {
				return WrapExitError(ExitCommandError, "inspector failed", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "table name, optionally qualified as database.table (required)")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}
