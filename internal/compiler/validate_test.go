package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func validDocument() *Document {
	a := ir.NewEntity(ir.MustKey("Task", 1))
	a.Set("status", ir.String("open"))
	b := ir.NewEntity(ir.MustKey("Task", 2))
	b.Set("status", ir.String("done"))

	return &Document{
		Entities: []ir.Entity{a, b},
		Queries: []NamedQuery{{
			Name:  "open",
			Query: queryir.NewQuery("Task").Filter("status", queryir.NotEqual, ir.String("done")).MustBuild(),
		}},
		Indexes: []indexshape.CompositeIndex{{
			Kind: "Task",
			Properties: []indexshape.IndexProperty{
				{Property: "status", Direction: queryir.Ascending},
				{Property: "due", Direction: queryir.Descending},
			},
		}},
	}
}

func TestValidateValidDocument(t *testing.T) {
	assert.Empty(t, Validate(validDocument()))
}

func TestValidateEntities(t *testing.T) {
	doc := validDocument()
	dup := ir.NewEntity(ir.MustKey("Task", 1))
	reserved := ir.NewEntity(ir.MustKey("Task", 3))
	reserved.Set(ir.KeyProperty, ir.Int(1))
	doc.Entities = append(doc.Entities, dup, reserved, ir.Entity{})

	errs := Validate(doc)
	assert.Equal(t, []string{ErrDuplicateEntityKey, ErrReservedProperty, ErrEntityNoKey}, codes(errs))
	assert.Contains(t, errs[0].Message, "entities[0]")
	assert.Equal(t, "entities[2].key", errs[0].Field)
}

func TestValidateQueries(t *testing.T) {
	doc := validDocument()
	doc.Queries = append(doc.Queries,
		NamedQuery{Name: "open", Query: queryir.NewQuery("Task").MustBuild()},
		NamedQuery{
			Name: "two_ranges",
			Query: queryir.NewQuery("Task").
				Filter("a", queryir.LessThan, ir.Int(1)).
				Filter("b", queryir.GreaterThan, ir.Int(2)).
				MustBuild(),
		},
		NamedQuery{Name: "paged", Query: queryir.NewQuery("Task").MustBuild(), Options: native.FetchOptions{Offset: -1}},
	)

	errs := Validate(doc)
	assert.Equal(t, []string{ErrDuplicateQueryName, ErrQueryShape, ErrInvalidPaging}, codes(errs))
	assert.Contains(t, errs[1].Message, string(queryir.CategoryMultipleInequalityProperties))
}

func TestValidateIndexes(t *testing.T) {
	doc := validDocument()
	doc.Indexes = append(doc.Indexes,
		doc.Indexes[0],
		indexshape.CompositeIndex{Kind: "Task"},
		indexshape.CompositeIndex{Kind: "Task", Properties: []indexshape.IndexProperty{
			{Property: "a"}, {Property: "a", Direction: queryir.Descending},
		}},
		indexshape.CompositeIndex{Kind: "Task", Properties: []indexshape.IndexProperty{
			{Property: ir.KeyProperty}, {Property: "a"},
		}},
	)

	errs := Validate(doc)
	require.Len(t, errs, 4)
	assert.Equal(t, []string{ErrDuplicateIndex, ErrIndexNoProperties, ErrIndexDuplicateColumn, ErrIndexKeyPropertyOrder}, codes(errs))
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "queries.x", Message: "bad", Code: ErrQueryShape}
	assert.Equal(t, "[E111] queries.x: bad", err.Error())

	err.Line = 4
	assert.Equal(t, "[E111] line 4: queries.x: bad", err.Error())
}
