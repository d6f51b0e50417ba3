package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
	"github.com/roach88/dsquery/internal/querytext"
)

// NamedQuery is a query declared in a document under a name.
type NamedQuery struct {
	Name    string
	Query   queryir.Query
	Options native.FetchOptions
}

// CompileQuery parses a named query. It accepts either the query text
// syntax:
//
//	open: {text: "kind Task where status != \"done\" order by due", limit: 10}
//
// or the structured form:
//
//	open: {
//		kind: "Task"
//		ancestor: ["Project", "apollo"]
//		filter: [
//			{property: "status", op: "!=", value: "done"},
//			{property: "priority", op: "in", values: [1, 3]},
//			{property: "due", op: "exists"},
//		]
//		order: [{property: "due", direction: "desc"}]
//		keys_only: true
//		limit: 10
//		offset: 5
//	}
//
// Shape is not checked here; Validate and the engine do that.
func CompileQuery(name string, v cue.Value) (NamedQuery, error) {
	if err := v.Err(); err != nil {
		return NamedQuery{}, formatCUEError(err)
	}
	field := "queries." + name
	nq := NamedQuery{Name: name}

	textVal := v.LookupPath(cue.ParsePath("text"))
	if textVal.Exists() {
		for _, structured := range []string{"kind", "ancestor", "filter", "order", "keys_only"} {
			if v.LookupPath(cue.ParsePath(structured)).Exists() {
				return NamedQuery{}, compileErrorf(v, field, "text and %s are mutually exclusive", structured)
			}
		}
		text, err := textVal.String()
		if err != nil {
			return NamedQuery{}, compileErrorf(textVal, field+".text", "text must be a string")
		}
		st, err := querytext.ParseStatement(text)
		if err != nil {
			return NamedQuery{}, compileErrorf(textVal, field+".text", "%v", err)
		}
		nq.Query = st.Query
		nq.Options = st.Options
	} else {
		q, err := compileStructuredQuery(v, field)
		if err != nil {
			return NamedQuery{}, err
		}
		nq.Query = q
	}

	if err := compilePaging(v, field, &nq.Options); err != nil {
		return NamedQuery{}, err
	}
	return nq, nil
}

func compileStructuredQuery(v cue.Value, field string) (queryir.Query, error) {
	var kind string
	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		k, err := kindVal.String()
		if err != nil {
			return queryir.Query{}, compileErrorf(kindVal, field+".kind", "kind must be a string")
		}
		kind = k
	}
	b := queryir.NewQuery(kind)

	if ancVal := v.LookupPath(cue.ParsePath("ancestor")); ancVal.Exists() {
		key, err := CompileKey(ancVal, field+".ancestor")
		if err != nil {
			return queryir.Query{}, err
		}
		b.Ancestor(key)
	}

	if filterVal := v.LookupPath(cue.ParsePath("filter")); filterVal.Exists() {
		iter, err := filterVal.List()
		if err != nil {
			return queryir.Query{}, compileErrorf(filterVal, field+".filter", "filter must be a list")
		}
		for i := 0; iter.Next(); i++ {
			f, err := compileFilter(iter.Value(), fmt.Sprintf("%s.filter[%d]", field, i))
			if err != nil {
				return queryir.Query{}, err
			}
			b.Where(f)
		}
	}

	if orderVal := v.LookupPath(cue.ParsePath("order")); orderVal.Exists() {
		iter, err := orderVal.List()
		if err != nil {
			return queryir.Query{}, compileErrorf(orderVal, field+".order", "order must be a list")
		}
		for i := 0; iter.Next(); i++ {
			elemField := fmt.Sprintf("%s.order[%d]", field, i)
			prop, err := requiredString(iter.Value(), "property", elemField)
			if err != nil {
				return queryir.Query{}, err
			}
			dir := queryir.Ascending
			if dirVal := iter.Value().LookupPath(cue.ParsePath("direction")); dirVal.Exists() {
				s, _ := dirVal.String()
				dir, err = queryir.ParseDirection(s)
				if err != nil {
					return queryir.Query{}, compileErrorf(dirVal, elemField+".direction", "%v", err)
				}
			}
			b.Order(prop, dir)
		}
	}

	if keysVal := v.LookupPath(cue.ParsePath("keys_only")); keysVal.Exists() {
		keysOnly, err := keysVal.Bool()
		if err != nil {
			return queryir.Query{}, compileErrorf(keysVal, field+".keys_only", "keys_only must be a bool")
		}
		if keysOnly {
			b.KeysOnly()
		}
	}

	q, err := b.Build()
	if err != nil {
		return queryir.Query{}, compileErrorf(v, field, "%v", err)
	}
	return q, nil
}

func compileFilter(v cue.Value, field string) (queryir.FilterPredicate, error) {
	prop, err := requiredString(v, "property", field)
	if err != nil {
		return queryir.FilterPredicate{}, err
	}
	opName, err := requiredString(v, "op", field)
	if err != nil {
		return queryir.FilterPredicate{}, err
	}
	op, err := queryir.ParseOperator(strings.TrimSpace(opName))
	if err != nil {
		return queryir.FilterPredicate{}, compileErrorf(v, field+".op", "%v", err)
	}

	switch op {
	case queryir.Exists:
		return queryir.ExistsFilter(prop), nil
	case queryir.In:
		valuesVal := v.LookupPath(cue.ParsePath("values"))
		if !valuesVal.Exists() {
			return queryir.FilterPredicate{}, compileErrorf(v, field+".values", "in needs a values list")
		}
		iter, err := valuesVal.List()
		if err != nil {
			return queryir.FilterPredicate{}, compileErrorf(valuesVal, field+".values", "values must be a list")
		}
		var values []ir.Value
		for i := 0; iter.Next(); i++ {
			value, err := CompileValue(iter.Value(), fmt.Sprintf("%s.values[%d]", field, i))
			if err != nil {
				return queryir.FilterPredicate{}, err
			}
			values = append(values, value)
		}
		f, err := queryir.NewInFilter(prop, values...)
		if err != nil {
			return queryir.FilterPredicate{}, compileErrorf(valuesVal, field+".values", "%v", err)
		}
		return f, nil
	default:
		valueVal := v.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return queryir.FilterPredicate{}, compileErrorf(v, field+".value", "%s needs a value", op)
		}
		value, err := CompileValue(valueVal, field+".value")
		if err != nil {
			return queryir.FilterPredicate{}, err
		}
		f, err := queryir.NewFilter(prop, op, value)
		if err != nil {
			return queryir.FilterPredicate{}, compileErrorf(v, field, "%v", err)
		}
		return f, nil
	}
}

func compilePaging(v cue.Value, field string, opts *native.FetchOptions) error {
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	} {
		pv := v.LookupPath(cue.ParsePath(p.name))
		if !pv.Exists() {
			continue
		}
		n, err := pv.Int64()
		if err != nil || n < 0 {
			return compileErrorf(pv, field+"."+p.name, "%s must be a non-negative integer", p.name)
		}
		*p.dst = int(n)
	}
	return nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(name))
	if !sv.Exists() {
		return "", compileErrorf(v, field+"."+name, "%s is required", name)
	}
	s, err := sv.String()
	if err != nil || s == "" {
		return "", compileErrorf(sv, field+"."+name, "%s must be a non-empty string", name)
	}
	return s, nil
}
