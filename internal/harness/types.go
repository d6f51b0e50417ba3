package harness

import (
	"github.com/roach88/dsquery/internal/engine"
)

// CaseResult is what one case produced on one backend.
type CaseResult struct {
	Name string `json:"name"`

	// Query is the normalized query, as the engine planned it.
	Query string `json:"query"`

	// Keys are the result keys in delivery order.
	Keys []string `json:"keys"`

	// Count is what PreparedQuery.Count reported.
	Count int `json:"count"`

	// ErrorCategory classifies a failed case; empty on success.
	ErrorCategory string `json:"error_category,omitempty"`
	Err           error  `json:"-"`

	Explanation *engine.Explanation `json:"explanation,omitempty"`
}

// Result is the outcome of one scenario on one backend.
type Result struct {
	Scenario string `json:"scenario"`
	Backend  string `json:"backend"`

	// Pass is true when every case met its expectations.
	Pass bool `json:"pass"`

	Cases []CaseResult `json:"cases"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario, backend string) *Result {
	return &Result{
		Scenario: scenario,
		Backend:  backend,
		Pass:     true,
		Cases:    []CaseResult{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Case returns the result of the named case.
func (r *Result) Case(name string) (CaseResult, bool) {
	for _, c := range r.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return CaseResult{}, false
}
