package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dsquery/internal/querytext"
)

// Scenario defines a conformance scenario: fixture documents plus query
// cases whose results every backend must agree on.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named
	// {name}-{case}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Data lists CUE fixture documents to load, in order.
	// Paths are relative to the scenario file location.
	Data []string `yaml:"data"`

	// Backends restricts which executors run the scenario.
	// Empty means all of them.
	Backends []string `yaml:"backends,omitempty"`

	// ChunkSize is the engine chunk size. Small values force sources
	// through several round trips. Defaults to 2.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// RequireIndexes makes the SQLite backend refuse queries no declared
	// composite index serves.
	RequireIndexes bool `yaml:"require_indexes,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is one query run against the loaded fixtures.
type Case struct {
	Name string `yaml:"name"`

	// Query is a query text statement, optionally with limit and offset.
	Query string `yaml:"query,omitempty"`

	// Named refers to a query declared in a fixture document instead.
	Named string `yaml:"named,omitempty"`

	// Expect holds explicit expectations. Results are always checked
	// against the logical reference as well, unless an error is expected.
	Expect *Expect `yaml:"expect,omitempty"`

	// Golden compares the rendered case against testdata/golden.
	Golden bool `yaml:"golden,omitempty"`
}

// Expect lists what a case must produce.
type Expect struct {
	// Keys are the result keys in order, written as Key(Task, 1).
	Keys []string `yaml:"keys,omitempty"`

	// Count is the expected number of results.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected error category, e.g. first-sort-mismatch.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "case:" vs "cases:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve data paths relative to the scenario file BEFORE validation
	base := filepath.Dir(path)
	for i, p := range scenario.Data {
		if !filepath.IsAbs(p) {
			scenario.Data[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Data) == 0 {
		return fmt.Errorf("data list is required and must be non-empty")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	if s.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative")
	}

	for _, p := range s.Data {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("data file not found: %s", p)
		}
	}

	for _, b := range s.Backends {
		if !isBackend(b) {
			return fmt.Errorf("unknown backend %q", b)
		}
	}

	names := make(map[string]bool)
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		names[c.Name] = true

		switch {
		case c.Query == "" && c.Named == "":
			return fmt.Errorf("cases[%d]: one of query or named is required", i)
		case c.Query != "" && c.Named != "":
			return fmt.Errorf("cases[%d]: query and named are mutually exclusive", i)
		}
		if c.Query != "" {
			if _, err := querytext.ParseStatement(c.Query); err != nil {
				return fmt.Errorf("cases[%d]: %w", i, err)
			}
		}
		if c.Expect != nil && c.Expect.Error != "" && (len(c.Expect.Keys) > 0 || c.Expect.Count != nil) {
			return fmt.Errorf("cases[%d].expect: error excludes keys and count", i)
		}
	}

	return nil
}
