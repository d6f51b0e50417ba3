package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dsquery/internal/config"
	"github.com/roach88/dsquery/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Backend    string
	StorePath  string

	// Config is loaded before any subcommand runs, with flags applied.
	Config *config.Config

	// Logger writes to the command's stderr at the configured level.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dsquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "dsquery",
		Version: ir.EngineVersion,
		Short:   "dsquery - logical queries over a sorted-index store",
		Long: `Run logical queries with IN, not-equal and multi-property sorts against
a store that only executes a narrow native query shape.

Queries are split into native sub-queries whose results are concatenated
or merged in memory, so results arrive exactly as the logical query asks.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./dsquery.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "store backend (sqlite|badger|memory), overrides store.backend")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "store path, overrides store.path")

	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// load reads the config and applies flag overrides.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Backend != "" {
		cfg.Store.Backend = o.Backend
	}
	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	o.Config = cfg
	o.Logger = cfg.Log.Logger(cmd.ErrOrStderr())
	return nil
}

// logger returns the configured logger, or a discarding one when the
// command runs without the root (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// settings returns the loaded config, or the defaults when the command runs
// without the root.
func (o *RootOptions) settings() *config.Config {
	if o.Config != nil {
		return o.Config
	}
	return config.Default()
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
