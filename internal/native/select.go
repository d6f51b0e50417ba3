package native

import (
	"fmt"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/queryir"
)

// Select evaluates a native query over candidate entities: filter, order,
// then offset and limit. Keys-only queries get their properties stripped.
// Stores that cannot push every filter down run their candidates through
// it.
func Select(q queryir.Query, opts FetchOptions, candidates []ir.Entity) ([]ir.Entity, error) {
	if err := queryir.ValidateNative(q); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	matcher, err := match.NewMatcher(q)
	if err != nil {
		return nil, err
	}
	ordering, err := match.NewOrdering(q.Sorts, q.Filters)
	if err != nil {
		return nil, err
	}

	var selected []ir.Entity
	for _, e := range candidates {
		if matcher.Matches(e) {
			selected = append(selected, e)
		}
	}
	if err := ordering.Sort(selected); err != nil {
		return nil, fmt.Errorf("order results: %w", err)
	}

	selected = Page(selected, opts)
	if q.KeysOnly {
		for i, e := range selected {
			selected[i] = e.KeyOnly()
		}
	}
	return selected, nil
}

// Page applies offset and limit to an ordered slice.
func Page[T any](items []T, opts FetchOptions) []T {
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// EncodeAll turns entities into records.
func EncodeAll(entities []ir.Entity) ([]ir.Record, error) {
	records := make([]ir.Record, len(entities))
	for i, e := range entities {
		rec, err := ir.EncodeEntity(e)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}
