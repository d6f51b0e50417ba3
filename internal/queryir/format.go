package queryir

import (
	"strings"

	"github.com/roach88/dsquery/internal/ir"
)

// String renders the filter in query-text form, e.g. `priority in [1, 3]`.
func (f FilterPredicate) String() string {
	switch f.Operator {
	case Exists:
		return f.Property + " exists"
	case In:
		parts := make([]string, len(f.Values))
		for i, v := range f.Values {
			parts[i] = ir.FormatValue(v)
		}
		return f.Property + " in [" + strings.Join(parts, ", ") + "]"
	default:
		return f.Property + " " + string(f.Operator) + " " + ir.FormatValue(f.Value)
	}
}

func (s SortPredicate) String() string {
	return s.Property + " " + s.Direction.String()
}

// String renders the query in the text syntax the shell parses:
//
//	kind Task ancestor Key(Project, "apollo") where status != "done" order by dueDate asc
//
// A kindless query renders as `kind *`.
func (q Query) String() string {
	var b strings.Builder
	b.WriteString("kind ")
	if q.Kind == "" {
		b.WriteString("*")
	} else {
		b.WriteString(q.Kind)
	}
	if q.Ancestor != nil {
		b.WriteString(" ancestor ")
		b.WriteString(q.Ancestor.String())
	}
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(f.String())
	}
	for i, s := range q.Sorts {
		if i == 0 {
			b.WriteString(" order by ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(s.String())
	}
	if q.KeysOnly {
		b.WriteString(" keys only")
	}
	return b.String()
}
