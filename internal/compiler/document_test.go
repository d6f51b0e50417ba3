package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
)

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("doc.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompileDocument(t *testing.T) {
	v := compileString(t, `
		entities: [
			{key: ["Project", "apollo"]},
			{
				key: ["Project", "apollo", "Task", 7]
				properties: {
					status: "open"
					tags:   ["backend", "urgent"]
					due:    3
					score:  1.5
					done:   false
					note:   null
					owner:  {key: ["User", "ann"]}
				}
			},
		]
		queries: {
			open_by_due: {
				kind: "Task"
				ancestor: ["Project", "apollo"]
				filter: [
					{property: "status", op: "!=", value: "done"},
					{property: "tags", op: "in", values: ["backend", "ops"]},
					{property: "owner", op: "exists"},
				]
				order: [{property: "status"}, {property: "due", direction: "desc"}]
				keys_only: true
				limit: 10
			}
			by_text: {text: "kind Task where due >= 2 order by due limit 5", offset: 1}
		}
		indexes: [{
			kind: "Task"
			ancestor: true
			properties: [{property: "status"}, {property: "due", direction: "desc"}]
		}]
	`)

	doc, err := CompileDocument(v)
	require.NoError(t, err)

	require.Len(t, doc.Entities, 2)
	assert.Equal(t, ir.MustKey("Project", "apollo"), doc.Entities[0].Key)
	assert.Empty(t, doc.Entities[0].Properties)

	task := doc.Entities[1]
	assert.Equal(t, ir.MustKey("Project", "apollo", "Task", 7), task.Key)
	assert.Equal(t, []ir.Value{ir.String("open")}, task.Values("status"))
	assert.Equal(t, []ir.Value{ir.String("backend"), ir.String("urgent")}, task.Values("tags"))
	assert.Equal(t, []ir.Value{ir.Int(3)}, task.Values("due"))
	assert.Equal(t, []ir.Value{ir.Float(1.5)}, task.Values("score"))
	assert.Equal(t, []ir.Value{ir.Bool(false)}, task.Values("done"))
	assert.Equal(t, []ir.Value{ir.Null{}}, task.Values("note"))
	assert.Equal(t, []ir.Value{ir.MustKey("User", "ann")}, task.Values("owner"))

	require.Len(t, doc.Queries, 2)
	open, ok := doc.Query("open_by_due")
	require.True(t, ok)
	want := queryir.NewQuery("Task").
		Ancestor(ir.MustKey("Project", "apollo")).
		Filter("status", queryir.NotEqual, ir.String("done")).
		In("tags", ir.String("backend"), ir.String("ops")).
		Exists("owner").
		Order("status", queryir.Ascending).
		Order("due", queryir.Descending).
		KeysOnly().
		MustBuild()
	assert.Equal(t, want, open.Query)
	assert.Equal(t, native.FetchOptions{Limit: 10}, open.Options)

	byText := doc.Queries[1]
	assert.Equal(t, "by_text", byText.Name)
	assert.Equal(t, "kind Task where due >= 2 order by due asc", byText.Query.String())
	assert.Equal(t, native.FetchOptions{Limit: 5, Offset: 1}, byText.Options)

	_, ok = doc.Query("missing")
	assert.False(t, ok)

	require.Len(t, doc.Indexes, 1)
	assert.Equal(t, indexshape.CompositeIndex{
		Kind:     "Task",
		Ancestor: true,
		Properties: []indexshape.IndexProperty{
			{Property: "status", Direction: queryir.Ascending},
			{Property: "due", Direction: queryir.Descending},
		},
	}, doc.Indexes[0])

	assert.Empty(t, Validate(doc))
}

func TestCompileDocumentEmpty(t *testing.T) {
	doc, err := CompileDocument(compileString(t, `{}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Entities)
	assert.Empty(t, doc.Queries)
	assert.Empty(t, doc.Indexes)
}

func TestCompileDocumentErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"entities not a list", `entities: {a: 1}`, "entities"},
		{"missing key", `entities: [{properties: {a: 1}}]`, "entities[0].key"},
		{"key not a list", `entities: [{key: "Task"}]`, "entities[0].key"},
		{"odd key", `entities: [{key: ["Task"]}]`, "entities[0].key"},
		{"float key id", `entities: [{key: ["Task", 1.5]}]`, "entities[0].key[1]"},
		{"non-string kind", `entities: [{key: [1, 1]}]`, "entities[0].key[0]"},
		{"nested list", `entities: [{key: ["Task", 1], properties: {a: [[1]]}}]`, "entities[0].properties.a[0]"},
		{"empty list", `entities: [{key: ["Task", 1], properties: {a: []}}]`, "entities[0].properties.a"},
		{"struct value", `entities: [{key: ["Task", 1], properties: {a: {b: 1}}}]`, "entities[0].properties.a"},
		{"incomplete value", `entities: [{key: ["Task", 1], properties: {a: int}}]`, "entities[0].properties.a"},
		{"unknown operator", `queries: q: {kind: "T", filter: [{property: "a", op: "~", value: 1}]}`, "queries.q.filter[0].op"},
		{"missing value", `queries: q: {kind: "T", filter: [{property: "a", op: "<"}]}`, "queries.q.filter[0].value"},
		{"missing property", `queries: q: {kind: "T", filter: [{op: "<", value: 1}]}`, "queries.q.filter[0].property"},
		{"empty in", `queries: q: {kind: "T", filter: [{property: "a", op: "in", values: []}]}`, "queries.q.filter[0].values"},
		{"bad direction", `queries: q: {kind: "T", order: [{property: "a", direction: "up"}]}`, "queries.q.order[0].direction"},
		{"text and kind", `queries: q: {text: "kind T", kind: "T"}`, "queries.q"},
		{"bad text", `queries: q: {text: "kind T where"}`, "queries.q.text"},
		{"negative limit", `queries: q: {kind: "T", limit: -1}`, "queries.q.limit"},
		{"index without kind", `indexes: [{properties: []}]`, "indexes[0].kind"},
		{"index without properties", `indexes: [{kind: "T"}]`, "indexes[0].properties"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileDocument(compileString(t, tt.src))
			require.Error(t, err)
			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, compileErr.Field)
		})
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	v := compileString(t, "entities: [\n\t{key: [\"Task\", 1.5]},\n]\n")
	_, err := CompileDocument(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doc.cue:2:")
}

func TestCompileValueKinds(t *testing.T) {
	tests := []struct {
		src  string
		want ir.Value
	}{
		{`v: 3`, ir.Int(3)},
		{`v: -3`, ir.Int(-3)},
		{`v: 2.0`, ir.Float(2)},
		{`v: "s"`, ir.String("s")},
		{`v: true`, ir.Bool(true)},
		{`v: null`, ir.Null{}},
		{`v: {key: ["A", "x", "B", 2]}`, ir.MustKey("A", "x", "B", 2)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			v := compileString(t, tt.src).LookupPath(cue.ParsePath("v"))
			got, err := CompileValue(v, "v")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentMerge(t *testing.T) {
	a, err := CompileDocument(compileString(t, `
		entities: [{key: ["Task", 1]}]
		queries: all: {text: "kind Task"}
	`))
	require.NoError(t, err)
	b, err := CompileDocument(compileString(t, `
		entities: [{key: ["Task", 1]}]
		queries: all: {text: "kind Task keys only"}
	`))
	require.NoError(t, err)

	a.Merge(b)
	assert.Len(t, a.Entities, 2)
	assert.Len(t, a.Queries, 2)
	assert.Equal(t, []string{ErrDuplicateEntityKey, ErrDuplicateQueryName}, codes(Validate(a)))
}
