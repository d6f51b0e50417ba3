package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/dsquery/internal/querytext"
)

const shellPrompt = "dsquery> "

const shellHelp = `Commands:
  kind <Kind> [where ...] [order by ...] [limit N] [offset M]   run a query
  count <query>                                                 count results
  explain <query>                                               show the plan
  help                                                          show this help
  exit | quit | \q                                              leave the shell`

// lineReader is the part of liner.State the shell uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Data []string
}

// NewShellCommand creates the interactive shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run queries interactively",
		Long: `Open the store once and read queries line by line.

Lines starting with "count" or "explain" run those commands; any other
line is parsed as query text. When metrics.enabled is set in the config,
Prometheus metrics for the session are served on metrics.address.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := openSession(ctx, opts.RootOptions, opts.Data)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.cfg.Metrics.Enabled {
				_, stop, err := serveMetrics(s)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to start metrics server", err)
				}
				defer stop()
			}

			l := liner.NewLiner()
			l.SetCtrlCAborts(true)
			defer l.Close()
			return runShell(ctx, s, l, opts.formatter(cmd))
		},
	}
	cmd.Flags().StringSliceVar(&opts.Data, "data", nil, "CUE documents or directories to load first (repeatable)")
	return cmd
}

// runShell reads lines until exit, end of input or an aborted prompt.
// Query failures are printed and the loop continues.
func runShell(ctx context.Context, s *session, r lineReader, f *OutputFormatter) error {
	for {
		line, err := r.Prompt(shellPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(f.Writer)
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.AppendHistory(line)

		switch line {
		case "exit", "quit", `\q`:
			return nil
		case "help":
			fmt.Fprintln(f.Writer, shellHelp)
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		_ = shellExecute(ctx, s, line, f)
	}
}

// shellExecute runs one shell line and reports failures through f.
func shellExecute(ctx context.Context, s *session, line string, f *OutputFormatter) error {
	verb, rest := "query", line
	if head, tail, ok := strings.Cut(line, " "); ok && (head == "count" || head == "explain") {
		verb, rest = head, tail
	}

	st, err := querytext.ParseStatement(rest)
	if err != nil {
		_ = f.Error(ErrCodeQueryText, err.Error(), nil)
		return err
	}
	if err := st.Options.Validate(); err != nil {
		_ = f.Error(ErrCodeQueryText, err.Error(), nil)
		return err
	}

	started := time.Now()
	switch verb {
	case "count":
		err = executeCount(ctx, s, st, f)
	case "explain":
		err = executeExplain(ctx, s, st, f)
	default:
		err = executeQuery(ctx, s, st, f)
	}
	f.VerboseLog("%s took %s", verb, time.Since(started).Round(time.Microsecond))
	return err
}

// serveMetrics starts the Prometheus endpoint. It returns the bound
// address and a function that shuts the server down.
func serveMetrics(s *session) (string, func(), error) {
	ln, err := net.Listen("tcp", s.cfg.Metrics.Address)
	if err != nil {
		return "", nil, err
	}
	addr := ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	s.logger.Info("serving metrics", "address", addr)

	return addr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("error stopping metrics server", "error", err)
		}
	}, nil
}
