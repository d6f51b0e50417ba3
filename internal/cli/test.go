package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dsquery/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter       string // scenario filter (glob pattern)
	TestBackends []string
}

// ScenarioResult holds the result of one scenario on one backend.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Backend string   `json:"backend"`
	Pass    bool     `json:"pass"`
	Cases   int      `json:"cases"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run scenario files against fresh stores and check every case.

Each scenario loads its CUE fixtures into a new store per backend, runs
its queries through the engine and compares the results with the
expected keys, counts and error categories. Cases without explicit
expectations are compared with a direct evaluation over the fixtures.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  dsquery test ./scenarios
  dsquery test ./scenarios --filter "split*"
  dsquery test ./scenarios --backends memory,badger --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringSliceVar(&opts.TestBackends, "backends", nil, "only run on these backends (memory|sqlite|badger)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	for _, b := range opts.TestBackends {
		if !slices.Contains(harness.AllBackends, b) {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q", b))
		}
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(opts.formatter(cmd), result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range scenarioFiles {
		for _, sr := range runScenario(file, opts, cmd) {
			result.Scenarios = append(result.Scenarios, sr)
			result.Total++
			if sr.Pass {
				result.Passed++
			} else {
				result.Failed++
			}
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(opts.formatter(cmd), result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds all YAML scenario files under dir, sorted by path.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// backendsFor intersects the scenario's backends with the --backends flag.
func (o *TestOptions) backendsFor(s *harness.Scenario) []string {
	backends := harness.ScenarioBackends(s)
	if len(o.TestBackends) == 0 {
		return backends
	}
	var out []string
	for _, b := range backends {
		if slices.Contains(o.TestBackends, b) {
			out = append(out, b)
		}
	}
	return out
}

// runScenario loads a scenario file and runs it on each of its backends.
func runScenario(file string, opts *TestOptions, cmd *cobra.Command) []ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		name := filepath.Base(file)
		if text {
			fmt.Fprintf(w, "\u2717 %s\n", name)
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return []ScenarioResult{{
			Name:   name,
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}}
	}

	var results []ScenarioResult
	for _, backend := range opts.backendsFor(scenario) {
		sr := ScenarioResult{Name: scenario.Name, Backend: backend}

		res, err := harness.Run(commandContext(cmd), scenario, backend, harness.WithLogger(opts.logger()))
		switch {
		case err != nil:
			sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		default:
			sr.Pass = res.Pass
			sr.Cases = len(res.Cases)
			sr.Errors = res.Errors
		}

		if text {
			mark := "\u2713"
			if !sr.Pass {
				mark = "\u2717"
			}
			fmt.Fprintf(w, "%s %s [%s]\n", mark, sr.Name, sr.Backend)
			for _, e := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		results = append(results, sr)
	}
	return results
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario run(s) failed", result.Failed),
		}
	}
	if err := formatter.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario run(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario run(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "\u2713 All scenarios passed")
	return nil
}
