package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/queryir"
)

// SQLCompiler compiles native queries to parameterized SQL for SQLite.
//
// The schema stores one row per entity in entities (key, kind, record,
// key_record) and one row per property value in entity_values. Keys and
// values are stored in the order-preserving ir encodings, so SQLite's
// memcmp BLOB ordering is the datastore's index order.
//
// CRITICAL: ALL queries include ORDER BY ending in the key for deterministic
// results. All values are parameterized, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a native query to SQL selecting one record column.
// Keys-only queries select key_record instead of record.
//
// The statement has no LIMIT; wrap it with Window to page it.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.ValidateNative(q); err != nil {
		return "", nil, fmt.Errorf("compile: %w", err)
	}

	var b builder
	column := "e.record"
	if q.KeysOnly {
		column = "e.key_record"
	}
	b.write("SELECT " + column + " FROM entities e")

	var conds []string
	if q.Kind != "" {
		conds = append(conds, b.param("e.kind = ?", q.Kind))
	}
	if q.Ancestor != nil {
		conds = append(conds, c.compileAncestor(&b, *q.Ancestor))
	}

	for _, group := range groupFilters(q) {
		if group.property == ir.KeyProperty {
			conds = append(conds, c.compileKeyFilters(&b, group.filters)...)
			continue
		}
		conds = append(conds, c.compilePropertyFilters(&b, group)...)
	}

	if len(conds) > 0 {
		b.write(" WHERE " + strings.Join(conds, " AND "))
	}

	b.write(" ORDER BY " + c.compileOrder(&b, q))

	return b.sql.String(), b.args, nil
}

// Window appends LIMIT and OFFSET to a compiled statement. A zero limit
// means no limit.
func Window(sql string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = -1
	}
	out := make([]any, len(args), len(args)+2)
	copy(out, args)
	return sql + " LIMIT ? OFFSET ?", append(out, limit, offset)
}

// builder accumulates SQL text and its parameters in order. Conditions are
// rendered before they are joined, so params are appended as each condition
// is built and every placeholder keeps its position.
type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

// param records args for the placeholders in fragment and returns it.
func (b *builder) param(fragment string, args ...any) string {
	b.args = append(b.args, args...)
	return fragment
}

// compileAncestor matches the ancestor itself and every descendant: their
// encoded keys share the ancestor's encoding as a prefix.
func (c *SQLCompiler) compileAncestor(b *builder, ancestor ir.Key) string {
	prefix := ir.EncodeKey(ancestor)
	end := ir.PrefixEnd(prefix)
	if end == nil {
		return b.param("e.key >= ?", prefix)
	}
	return b.param("(e.key >= ? AND e.key < ?)", prefix, end)
}

// compileKeyFilters compares the entity key column directly.
func (c *SQLCompiler) compileKeyFilters(b *builder, filters []queryir.FilterPredicate) []string {
	var conds []string
	for _, f := range filters {
		if f.Operator == queryir.Exists {
			continue
		}
		key := f.Value.(ir.Key)
		conds = append(conds, b.param("e.key "+string(f.Operator)+" ?", ir.EncodeKey(key)))
	}
	return conds
}

// compilePropertyFilters renders one property's filters with the same
// semantics as match.PropertyMatcher: every EQUAL value present, and one
// value inside all range bounds. A sorted property without filters only
// has to be present.
func (c *SQLCompiler) compilePropertyFilters(b *builder, g filterGroup) []string {
	var conds []string
	for _, f := range g.filters {
		if f.Operator == queryir.Equal {
			conds = append(conds, b.param(
				"EXISTS (SELECT 1 FROM entity_values v WHERE v.key = e.key AND v.property = ? AND v.value = ?)",
				g.property, ir.EncodeValue(f.Value)))
		}
	}

	ranges := c.rangeConditions(b, g.property, g.filters)
	conds = append(conds, "EXISTS (SELECT 1 FROM entity_values v WHERE v.key = e.key AND "+ranges+")")
	return conds
}

// rangeConditions restricts v to property and to every range bound on it.
func (c *SQLCompiler) rangeConditions(b *builder, property string, filters []queryir.FilterPredicate) string {
	parts := []string{b.param("v.property = ?", property)}
	for _, f := range filters {
		if f.Operator.IsRange() {
			parts = append(parts, b.param("v.value "+string(f.Operator)+" ?", ir.EncodeValue(f.Value)))
		}
	}
	return strings.Join(parts, " AND ")
}

// compileOrder renders match.AdjustedOrders. A multi-valued property sorts
// by its smallest (ascending) or largest (descending) value that the
// query's filters on it leave plausible.
func (c *SQLCompiler) compileOrder(b *builder, q queryir.Query) string {
	var parts []string
	for _, order := range match.AdjustedOrders(q.Sorts, q.Filters) {
		dir := "ASC"
		if order.Direction == queryir.Descending {
			dir = "DESC"
		}
		if order.Property == ir.KeyProperty {
			parts = append(parts, "e.key "+dir)
			continue
		}

		agg := "MIN"
		if order.Direction == queryir.Descending {
			agg = "MAX"
		}
		filters := q.FiltersOn(order.Property)
		cond := c.rangeConditions(b, order.Property, filters)

		var equals []string
		for _, f := range filters {
			if f.Operator == queryir.Equal {
				equals = append(equals, b.param("?", ir.EncodeValue(f.Value)))
			}
		}
		if len(equals) > 0 {
			cond += " AND v.value IN (" + strings.Join(equals, ", ") + ")"
		}
		parts = append(parts, fmt.Sprintf(
			"(SELECT %s(v.value) FROM entity_values v WHERE v.key = e.key AND %s) %s", agg, cond, dir))
	}
	return strings.Join(parts, ", ")
}

type filterGroup struct {
	property string
	filters  []queryir.FilterPredicate
}

// groupFilters groups filters by property in first-appearance order, then
// adds empty groups for sorted properties up to the first key sort so
// entities without them are excluded.
func groupFilters(q queryir.Query) []filterGroup {
	var groups []filterGroup
	index := make(map[string]int)
	add := func(property string) int {
		i, ok := index[property]
		if !ok {
			i = len(groups)
			index[property] = i
			groups = append(groups, filterGroup{property: property})
		}
		return i
	}

	for _, f := range q.Filters {
		i := add(f.Property)
		groups[i].filters = append(groups[i].filters, f)
	}
	for _, s := range q.Sorts {
		if s.Property == ir.KeyProperty {
			break
		}
		add(s.Property)
	}
	return groups
}
