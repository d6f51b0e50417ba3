package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
	"github.com/roach88/dsquery/internal/querytext"
)

// AssertionError is returned when a case does not meet an expectation.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Keys     []string // Keys the case produced, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Keys) > 0 {
		fmt.Fprintf(&buf, "\nResults:\n")
		for i, k := range e.Keys {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, k)
		}
	}

	return buf.String()
}

// Assertion types.
const (
	AssertError     = "error"
	AssertKeys      = "keys"
	AssertCount     = "count"
	AssertReference = "reference"
)

// ReferenceFunc computes the expected keys for a case without the engine.
// ordered is false when the query leaves result order unspecified.
type ReferenceFunc func(c Case) (keys []string, ordered bool, err error)

// ReferenceKeys evaluates a statement with the logical reference matcher
// over entities, paged the way the engine pages.
//
// A query with no sorts after normalization has no defined order across
// split branches, so ordered is false and callers compare as sets.
func ReferenceKeys(st querytext.Statement, entities []ir.Entity) ([]string, bool, error) {
	normalized := queryir.Normalize(st.Query)
	logical, err := match.NewLogical(normalized)
	if err != nil {
		return nil, false, err
	}
	selected, err := logical.Select(entities)
	if err != nil {
		return nil, false, err
	}
	ordered := len(normalized.Sorts) > 0
	if !ordered && (st.Options.Limit > 0 || st.Options.Offset > 0) {
		// Paging an unordered result picks an unspecified subset.
		return nil, false, fmt.Errorf("reference: limit and offset need an ordered query")
	}
	return keyStrings(native.Page(selected, st.Options)), ordered, nil
}

// EvaluateCase checks a case result against its expectations and the
// reference. Returns failure messages; empty means the case passed.
func EvaluateCase(c Case, cr CaseResult, reference ReferenceFunc) []string {
	var failures []string
	fail := func(err error) {
		failures = append(failures, err.Error())
	}

	expect := c.Expect
	if expect == nil {
		expect = &Expect{}
	}

	if err := assertError(cr, expect.Error); err != nil {
		fail(err)
		return failures
	}
	if expect.Error != "" {
		return failures
	}

	if len(expect.Keys) > 0 {
		if err := assertKeys(cr, expect.Keys); err != nil {
			fail(err)
		}
	}
	if expect.Count != nil {
		if err := assertCount(cr, *expect.Count); err != nil {
			fail(err)
		}
	}
	if cr.Count != len(cr.Keys) {
		fail(&AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("Count() to agree with the %d results delivered", len(cr.Keys)),
			Actual:   fmt.Sprintf("Count() = %d", cr.Count),
			Keys:     cr.Keys,
		})
	}

	if reference != nil {
		if err := assertReference(c, cr, reference); err != nil {
			fail(err)
		}
	}
	return failures
}

func assertError(cr CaseResult, want string) error {
	switch {
	case want == "" && cr.ErrorCategory == "":
		return nil
	case want == "":
		return &AssertionError{
			Type:     AssertError,
			Expected: "no error",
			Actual:   fmt.Sprintf("%s: %v", cr.ErrorCategory, cr.Err),
		}
	case cr.ErrorCategory == "":
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("error %s", want),
			Actual:   fmt.Sprintf("%d results", len(cr.Keys)),
			Keys:     cr.Keys,
		}
	case cr.ErrorCategory != want:
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("error %s", want),
			Actual:   fmt.Sprintf("%s: %v", cr.ErrorCategory, cr.Err),
		}
	}
	return nil
}

func assertKeys(cr CaseResult, want []string) error {
	if slices.Equal(cr.Keys, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertKeys,
		Expected: strings.Join(want, ", "),
		Actual:   strings.Join(cr.Keys, ", "),
		Keys:     cr.Keys,
	}
}

func assertCount(cr CaseResult, want int) error {
	if len(cr.Keys) == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d results", want),
		Actual:   fmt.Sprintf("%d results", len(cr.Keys)),
		Keys:     cr.Keys,
	}
}

// assertReference compares the engine's results with the logical
// reference: in order for sorted queries, as sets otherwise.
func assertReference(c Case, cr CaseResult, reference ReferenceFunc) error {
	want, ordered, err := reference(c)
	if err != nil {
		// Cases the reference cannot evaluate rely on explicit expectations.
		return nil
	}

	got := cr.Keys
	if !ordered {
		got = slices.Sorted(slices.Values(got))
		want = slices.Sorted(slices.Values(want))
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertReference,
		Expected: strings.Join(want, ", "),
		Actual:   strings.Join(got, ", "),
		Keys:     cr.Keys,
	}
}
