// Package cli implements the pagedb operator commands: seeding a demo
// table, dumping pages and log batches, counting values and the
// interactive page inspector.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"pagedb/pkg/catalog"
	"pagedb/pkg/config"
	"pagedb/pkg/logging"
	"pagedb/pkg/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	Verbose    bool
	User       string

	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the pagedb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pagedb",
		Short:         "pagedb - row and page storage engine tools",
		Long:          "Operator tools for pagedb data directories: seed tables, dump pages and transaction log batches, inspect pages interactively.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "pagedb", "user name recorded in log entries")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewRowsCommand(opts))
	cmd.AddCommand(NewPageCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load configuration", err)
		}
		cfg = loaded
	}
	if o.Verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	if cfg.Logging.OutputPath == "" && cfg.Logging.Writer == nil {
		cfg.Logging.Writer = cmd.ErrOrStderr()
	}

	_ = logging.Close()
	if err := logging.Init(cfg.Logging); err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logging", err)
	}
	o.config = cfg
	return nil
}

func (o *RootOptions) isJSON() bool {
	return o.Format == "json"
}

// openData loads the catalog from the log and opens the page store.
func (o *RootOptions) openData() (*catalog.Catalog, storage.PageStore, error) {
	cat, err := catalog.Load(o.config.WALPath())
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	store, err := o.config.OpenStore()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open page store", err)
	}
	return cat, store, nil
}
