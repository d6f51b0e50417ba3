package planner

import (
	"slices"
	"strings"

	"github.com/roach88/dsquery/internal/ir"
)

// AcceptFunc reports whether an entity should surface. Acceptors may keep
// state (key-dedup does), so each run gets fresh instances.
type AcceptFunc func(e ir.Entity) bool

// Acceptor is a named factory for a post-decode entity predicate.
// Two acceptors with the same name are the same acceptor.
type Acceptor struct {
	Name string
	// NeedsValues is set when the predicate reads property values, so a
	// keys-only query has to fetch full entities.
	NeedsValues bool
	New         func() AcceptFunc
}

// KeyDedupName names the acceptor that drops entities already delivered.
const KeyDedupName = "key-dedup"

// KeyDedup rejects an entity whose key has already been accepted in this run.
func KeyDedup() Acceptor {
	return Acceptor{
		Name: KeyDedupName,
		New: func() AcceptFunc {
			seen := make(map[string]struct{})
			return func(e ir.Entity) bool {
				k := string(ir.EncodeKey(e.Key))
				if _, dup := seen[k]; dup {
					return false
				}
				seen[k] = struct{}{}
				return true
			}
		},
	}
}

// NotEqual rejects entities where any value of property equals v. A range
// branch of a split not-equal can match through a sibling value.
func NotEqual(property string, v ir.Value) Acceptor {
	return Acceptor{
		Name:        "not-equal(" + property + " != " + ir.FormatValue(v) + ")",
		NeedsValues: true,
		New: func() AcceptFunc {
			return func(e ir.Entity) bool {
				return !ir.ContainsValue(e.Values(property), v)
			}
		},
	}
}

// AcceptorSet is an ordered set of acceptors, unique by name.
type AcceptorSet []Acceptor

// Add inserts a unless an acceptor with the same name is present.
func (s AcceptorSet) Add(a Acceptor) AcceptorSet {
	if slices.ContainsFunc(s, func(existing Acceptor) bool { return existing.Name == a.Name }) {
		return s
	}
	return append(s, a)
}

// NeedsValues reports whether any acceptor reads property values.
func (s AcceptorSet) NeedsValues() bool {
	return slices.ContainsFunc(s, func(a Acceptor) bool { return a.NeedsValues })
}

// Names returns the acceptor names in insertion order.
func (s AcceptorSet) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name
	}
	return names
}

// Instantiate creates one AcceptFunc that applies every acceptor in order.
func (s AcceptorSet) Instantiate() AcceptFunc {
	funcs := make([]AcceptFunc, len(s))
	for i, a := range s {
		funcs[i] = a.New()
	}
	return func(e ir.Entity) bool {
		for _, accept := range funcs {
			if !accept(e) {
				return false
			}
		}
		return true
	}
}

func (s AcceptorSet) String() string {
	return strings.Join(s.Names(), ", ")
}

