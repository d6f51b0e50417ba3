package match

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// ErrNoPlausibleValue is returned when an entity has no value for a sorted
// property that its filters allow. Stores never return such entities, so it
// means decoded data disagrees with the query that produced it.
var ErrNoPlausibleValue = errors.New("entity has no value relevant to the sort order")

// SortKey holds an entity's comparison values, one per adjusted order.
type SortKey []ir.Value

// Ordering compares entities the way the store's index orders them.
//
// For a multi-valued property the comparison value is the smallest
// (ascending) or largest (descending) value the filters on that property
// leave plausible.
type Ordering struct {
	orders   []queryir.SortPredicate
	consider func(property string, v ir.Value) bool
}

// NewOrdering builds an ordering over sorts, with plausibility taken from
// native filters.
func NewOrdering(sorts []queryir.SortPredicate, filters []queryir.FilterPredicate) (*Ordering, error) {
	matchers, err := propertyMatchers(sorts, filters)
	if err != nil {
		return nil, err
	}
	return &Ordering{
		orders: AdjustedOrders(sorts, filters),
		consider: func(property string, v ir.Value) bool {
			pm, ok := matchers[property]
			return !ok || pm.ConsiderValueForOrder(v)
		},
	}, nil
}

// AdjustedOrders returns the total order a query's results follow: the sorts
// up to and including the first key sort, otherwise followed by ascending
// key. A query with no sorts but an inequality orders by the inequality
// property first.
func AdjustedOrders(sorts []queryir.SortPredicate, filters []queryir.FilterPredicate) []queryir.SortPredicate {
	adjusted := make([]queryir.SortPredicate, 0, len(sorts)+1)
	for _, s := range sorts {
		adjusted = append(adjusted, s)
		if s.Property == ir.KeyProperty {
			return adjusted
		}
	}
	if len(adjusted) == 0 {
		for _, f := range filters {
			if f.Operator.IsInequality() {
				adjusted = append(adjusted, queryir.Asc(f.Property))
				break
			}
		}
	}
	return append(adjusted, queryir.Asc(ir.KeyProperty))
}

// Orders returns the adjusted orders.
func (o *Ordering) Orders() []queryir.SortPredicate {
	return slices.Clone(o.orders)
}

// SortKey extracts e's comparison values.
func (o *Ordering) SortKey(e ir.Entity) (SortKey, error) {
	key := make(SortKey, len(o.orders))
	for i, order := range o.orders {
		var extreme ir.Value
		for _, v := range e.Values(order.Property) {
			if !o.consider(order.Property, v) {
				continue
			}
			if extreme == nil {
				extreme = v
				continue
			}
			c := ir.Compare(v, extreme)
			if (order.Direction == queryir.Ascending && c < 0) ||
				(order.Direction == queryir.Descending && c > 0) {
				extreme = v
			}
		}
		if extreme == nil {
			return nil, fmt.Errorf("%w: %s on %q", ErrNoPlausibleValue, e.Key, order.Property)
		}
		key[i] = extreme
	}
	return key, nil
}

// Compare orders two sort keys produced by orderings over the same sorts.
func (o *Ordering) Compare(a, b SortKey) int {
	for i, order := range o.orders {
		c := ir.Compare(a[i], b[i])
		if c == 0 {
			continue
		}
		if order.Direction == queryir.Descending {
			return -c
		}
		return c
	}
	return 0
}

// Sort orders entities in place. Entities without plausible sort values
// fail the whole sort.
func (o *Ordering) Sort(entities []ir.Entity) error {
	keys := make([]SortKey, len(entities))
	for i, e := range entities {
		key, err := o.SortKey(e)
		if err != nil {
			return err
		}
		keys[i] = key
	}

	idx := make([]int, len(entities))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return o.Compare(keys[a], keys[b])
	})

	sorted := make([]ir.Entity, len(entities))
	for i, j := range idx {
		sorted[i] = entities[j]
	}
	copy(entities, sorted)
	return nil
}
