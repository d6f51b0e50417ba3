package planner

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dsquery/internal/queryir"
)

// MaxConcurrentAlternatives caps how many native queries one batch may merge
// in memory.
const MaxConcurrentAlternatives = 30

// ExecutionMode says how a component's alternatives run.
type ExecutionMode int

const (
	// Sequential alternatives run one per batch; their results concatenate.
	Sequential ExecutionMode = iota
	// Concurrent alternatives all run in every batch and are merged.
	Concurrent
)

func (m ExecutionMode) String() string {
	if m == Concurrent {
		return "CONCURRENT"
	}
	return "SEQUENTIAL"
}

// MarshalText implements encoding.TextMarshaler.
func (m ExecutionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ExecutionComponent is a split component with its execution mode decided.
type ExecutionComponent struct {
	Mode         ExecutionMode
	SortPosition int
	Alternatives []FilterAlternativeSet
	Source       SplitComponent
}

// TooManyAlternativesError is returned when the concurrent alternatives of a
// plan multiply past MaxConcurrentAlternatives. The query has to be
// restructured; retrying cannot help.
type TooManyAlternativesError struct {
	Alternatives int
	Limit        int
}

// Error implements the error interface.
func (e *TooManyAlternativesError) Error() string {
	return fmt.Sprintf("too-many-alternatives: splitting the query needs at least %d native queries merged in memory, limit is %d",
		e.Alternatives, e.Limit)
}

// IsTooManyAlternatives reports whether err is a TooManyAlternativesError.
func IsTooManyAlternatives(err error) bool {
	var tooMany *TooManyAlternativesError
	return errors.As(err, &tooMany)
}

// Assemble orders split components by sort position and decides each one's
// mode.
//
// With no sorts every component is sequential. Otherwise a running sort
// index starts before the first sort; a component is sequential while its
// position equals the index or the next one, and the first component that
// breaks the run (including an unsorted one) makes it and every later
// component concurrent. Once a sequential component has range branches, a
// component at a later position also breaks the run: its batches would
// otherwise concatenate inside one range of the earlier property.
func Assemble(components []SplitComponent, sortCount int) ([]ExecutionComponent, error) {
	ordered := slices.Clone(components)
	slices.SortStableFunc(ordered, func(a, b SplitComponent) int {
		return comparePositions(a.SortPosition, b.SortPosition)
	})

	result := make([]ExecutionComponent, 0, len(ordered))
	index := -1
	forced := false
	ranged := false
	product := 1
	for _, c := range ordered {
		mode := Sequential
		if sortCount > 0 {
			if !forced && c.SortPosition != NoSortPosition &&
				(c.SortPosition == index || (c.SortPosition == index+1 && !ranged)) {
				index = c.SortPosition
				ranged = ranged || !fixesValue(c)
			} else {
				forced = true
				mode = Concurrent
			}
		}

		if mode == Concurrent {
			product *= len(c.Alternatives)
			if product > MaxConcurrentAlternatives {
				return nil, &TooManyAlternativesError{Alternatives: product, Limit: MaxConcurrentAlternatives}
			}
		}

		result = append(result, ExecutionComponent{
			Mode:         mode,
			SortPosition: c.SortPosition,
			Alternatives: c.Alternatives,
			Source:       c,
		})
	}
	return result, nil
}

// fixesValue reports whether every branch of c pins its property to one
// value.
func fixesValue(c SplitComponent) bool {
	for _, alt := range c.Alternatives {
		for _, f := range alt {
			if f.Operator != queryir.Equal {
				return false
			}
		}
	}
	return true
}

// comparePositions orders sort positions ascending with NoSortPosition last.
func comparePositions(a, b int) int {
	switch {
	case a == b:
		return 0
	case a == NoSortPosition:
		return 1
	case b == NoSortPosition:
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}
