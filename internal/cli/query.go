package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dsquery/internal/engine"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
	"github.com/roach88/dsquery/internal/querytext"
	"github.com/roach88/dsquery/internal/store"
)

// QueryOptions holds flags shared by query, count and explain.
type QueryOptions struct {
	*RootOptions
	Data   []string // CUE documents loaded into the store first
	Named  string   // query declared in a data document
	Limit  int
	Offset int
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Query    string            `json:"query"`
	Count    int               `json:"count"`
	Digest   string            `json:"digest"`
	Entities []json.RawMessage `json:"entities"`
}

// CountResult is the JSON payload of the count command.
type CountResult struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	engine.Explanation
	MissingIndex string `json:"missing_index,omitempty"`
}

func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringSliceVar(&opts.Data, "data", nil, "CUE documents or directories to load first (repeatable)")
	cmd.Flags().StringVar(&opts.Named, "named", "", "run a query declared in a --data document instead of query text")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum results, overrides the query text")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "results to skip, overrides the query text")
}

func queryArgs(opts *QueryOptions) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if opts.Named != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	}
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query-text>",
		Short: "Run a logical query and print the entities",
		Long: `Run a logical query against the configured store.

The query text may end with "limit N offset M". Multiple arguments are
joined with spaces, so the query does not need quoting as a whole.

Examples:
  dsquery query 'kind Task where status != "done" order by status'
  dsquery query --backend memory --data ./fixtures 'kind Task where tags in ["a", "b"] order by due desc limit 5'
  dsquery query --data ./fixtures --named open_by_due --format json`,
		Args:          queryArgs(opts),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}
	addQueryFlags(cmd, opts)
	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <query-text>",
		Short: "Count the entities a logical query returns",
		Long: `Count the entities a logical query returns, after deduplication and
honoring limit and offset. Entities are fetched keys-only where possible.

Example:
  dsquery count 'kind Task where priority in [1, 2]'`,
		Args:          queryArgs(opts),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args, cmd)
		},
	}
	addQueryFlags(cmd, opts)
	return cmd
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query-text>",
		Short: "Show how a logical query is split into native queries",
		Long: `Show the normalized query, the index it needs, and the batches of native
queries it runs as. Nothing is executed.

With the sqlite backend, the smallest composite index missing from the
declared ones is reported too.

Example:
  dsquery explain 'kind Task where status != "done" and tags in ["a", "b"] order by status'`,
		Args:          queryArgs(opts),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args, cmd)
		},
	}
	addQueryFlags(cmd, opts)
	return cmd
}

// statement resolves the query text or named query and applies paging flags.
func (o *QueryOptions) statement(s *session, args []string, cmd *cobra.Command) (querytext.Statement, error) {
	var st querytext.Statement
	if o.Named != "" {
		nq, ok := s.doc.Query(o.Named)
		if !ok {
			return st, NewExitError(ExitCommandError, fmt.Sprintf("%s: no query named %q in --data documents", ErrCodeQuery, o.Named))
		}
		st = querytext.Statement{Query: nq.Query, Options: nq.Options}
	} else {
		var err error
		st, err = querytext.ParseStatement(strings.Join(args, " "))
		if err != nil {
			return st, WrapExitError(ExitCommandError, ErrCodeQueryText, err)
		}
	}

	if cmd.Flags().Changed("limit") {
		st.Options.Limit = o.Limit
	}
	if cmd.Flags().Changed("offset") {
		st.Options.Offset = o.Offset
	}
	if err := st.Options.Validate(); err != nil {
		return st, WrapExitError(ExitCommandError, ErrCodeQueryText, err)
	}
	return st, nil
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, opts.Data)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := opts.statement(s, args, cmd)
	if err != nil {
		return err
	}
	return executeQuery(ctx, s, st, opts.formatter(cmd))
}

// executeQuery prepares and runs a statement and prints its entities.
func executeQuery(ctx context.Context, s *session, st querytext.Statement, f *OutputFormatter) error {
	pq, err := s.engine.Prepare(st.Query)
	if err != nil {
		return queryError(f, err)
	}
	entities, err := pq.AsList(ctx, st.Options)
	if err != nil {
		return queryError(f, err)
	}

	if f.Format == "json" {
		result := QueryResult{
			Query:    queryir.Normalize(st.Query).String(),
			Count:    len(entities),
			Entities: make([]json.RawMessage, 0, len(entities)),
		}
		if result.Digest, err = ir.ResultDigest(entities); err != nil {
			return queryError(f, err)
		}
		for _, e := range entities {
			rec, err := ir.EncodeEntity(e)
			if err != nil {
				return queryError(f, err)
			}
			result.Entities = append(result.Entities, json.RawMessage(rec))
		}
		return f.Success(result)
	}

	for _, e := range entities {
		writeEntity(f.Writer, e)
	}
	fmt.Fprintf(f.Writer, "(%d %s)\n", len(entities), plural(len(entities), "entity", "entities"))
	return nil
}

func runCount(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, opts.Data)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := opts.statement(s, args, cmd)
	if err != nil {
		return err
	}
	return executeCount(ctx, s, st, opts.formatter(cmd))
}

func executeCount(ctx context.Context, s *session, st querytext.Statement, f *OutputFormatter) error {
	pq, err := s.engine.Prepare(st.Query)
	if err != nil {
		return queryError(f, err)
	}
	n, err := pq.Count(ctx, st.Options)
	if err != nil {
		return queryError(f, err)
	}
	if f.Format == "json" {
		return f.Success(CountResult{Query: queryir.Normalize(st.Query).String(), Count: n})
	}
	fmt.Fprintln(f.Writer, n)
	return nil
}

func runExplain(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(ctx, opts.RootOptions, opts.Data)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := opts.statement(s, args, cmd)
	if err != nil {
		return err
	}
	return executeExplain(ctx, s, st, opts.formatter(cmd))
}

func executeExplain(ctx context.Context, s *session, st querytext.Statement, f *OutputFormatter) error {
	pq, err := s.engine.Prepare(st.Query)
	if err != nil {
		return queryError(f, err)
	}

	result := ExplainResult{Explanation: pq.Explain()}
	if s.sqlite != nil && pq.CompositeIndex() != nil {
		existing, err := s.indexes(ctx, st.Query.Kind)
		if err != nil {
			return queryError(f, err)
		}
		if missing := pq.MissingIndex(existing); missing != nil {
			result.MissingIndex = missing.String()
		}
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	writeExplanation(f.Writer, result)
	return nil
}

// queryError reports a failed query and maps it to an exit code. Shape
// and fan-out errors are the caller's to fix, so they exit with 1.
func queryError(f *OutputFormatter, err error) error {
	code := ErrCodeExecution
	exit := ExitCommandError
	var missing *store.MissingIndexError
	switch {
	case queryir.IsQueryShapeError(err), planner.IsTooManyAlternatives(err):
		code, exit = ErrCodeQueryShape, ExitFailure
	case errors.As(err, &missing):
		code, exit = ErrCodeQueryShape, ExitFailure
	}
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// writeEntity prints an entity as its key followed by property=value
// pairs in name order.
func writeEntity(w io.Writer, e ir.Entity) {
	var b strings.Builder
	b.WriteString(e.Key.String())
	for _, name := range e.PropertyNames() {
		values := e.Values(name)
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString("=")
		if len(values) == 1 {
			b.WriteString(ir.FormatValue(values[0]))
			continue
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = ir.FormatValue(v)
		}
		b.WriteString("[" + strings.Join(parts, ", ") + "]")
	}
	fmt.Fprintln(w, b.String())
}

func writeExplanation(w io.Writer, ex ExplainResult) {
	fmt.Fprintf(w, "query: %s\n", ex.Query)
	if len(ex.IndexShape) > 0 {
		cols := make([]string, len(ex.IndexShape))
		for i, p := range ex.IndexShape {
			cols[i] = p.String()
		}
		fmt.Fprintf(w, "index shape: (%s)\n", strings.Join(cols, ", "))
	}
	if ex.CompositeIndex != "" {
		fmt.Fprintf(w, "composite index: %s\n", ex.CompositeIndex)
	}
	if ex.MissingIndex != "" {
		fmt.Fprintf(w, "missing index: %s\n", ex.MissingIndex)
	}
	if len(ex.BaseFilters) > 0 {
		fmt.Fprintf(w, "base filters: %s\n", strings.Join(ex.BaseFilters, " and "))
	}
	if len(ex.Acceptors) > 0 {
		fmt.Fprintf(w, "acceptors: %s\n", strings.Join(ex.Acceptors, ", "))
	}
	for _, c := range ex.Components {
		fmt.Fprintf(w, "component %s: %s, %d %s\n",
			c.Filter, c.Mode, len(c.Alternatives), plural(len(c.Alternatives), "alternative", "alternatives"))
	}
	fmt.Fprintf(w, "native queries: %d (%d per batch)\n", ex.NativeQueries, ex.PerBatch)
	for _, b := range ex.Batches {
		fmt.Fprintf(w, "batch %d:\n", b.Index)
		for _, q := range b.Queries {
			fmt.Fprintf(w, "  %s\n", q)
		}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
