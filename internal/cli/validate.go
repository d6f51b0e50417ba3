package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dsquery/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Files    int                        `json:"files,omitempty"`
	Entities int                        `json:"entities,omitempty"`
	Queries  int                        `json:"queries,omitempty"`
	Indexes  int                        `json:"indexes,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check CUE documents without touching the store",
		Long: `Compile CUE documents and check their entities, named queries and
indexes without opening the store.

Named queries are checked against the planner rules, so a query the
engine would reject fails here instead of at run time.

Exit codes:
  0 - Documents are valid
  1 - Validation errors found
  2 - Command error (paths, CUE syntax)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result, err := LoadDocuments(paths...)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled %d CUE file(s)", result.FileCount)

	doc := result.Document
	if errs := compiler.Validate(doc); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:    true,
			Files:    result.FileCount,
			Entities: len(doc.Entities),
			Queries:  len(doc.Queries),
			Indexes:  len(doc.Indexes),
		})
	}
	fmt.Fprintf(formatter.Writer, "\u2713 Documents valid (%d %s, %d %s, %d %s)\n",
		len(doc.Entities), plural(len(doc.Entities), "entity", "entities"),
		len(doc.Queries), plural(len(doc.Queries), "query", "queries"),
		len(doc.Indexes), plural(len(doc.Indexes), "index", "indexes"))
	return nil
}

// outputValidationErrors reports every validation error and fails with
// ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "\u2717 Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", e.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
	}
	return failure
}
