package queryir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
)

func TestOperatorClassification(t *testing.T) {
	tests := []struct {
		op         Operator
		isRange    bool
		inequality bool
		native     bool
	}{
		{Equal, false, false, true},
		{LessThan, true, true, true},
		{LessThanOrEqual, true, true, true},
		{GreaterThan, true, true, true},
		{GreaterThanOrEqual, true, true, true},
		{NotEqual, false, true, false},
		{In, false, false, false},
		{Exists, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.True(t, tt.op.Valid())
			assert.Equal(t, tt.isRange, tt.op.IsRange())
			assert.Equal(t, tt.inequality, tt.op.IsInequality())
			assert.Equal(t, tt.native, tt.op.IsNative())
		})
	}

	assert.False(t, Operator("LIKE").Valid())
	assert.False(t, Operator("LIKE").IsNative())
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"=": Equal, "==": Equal, "<": LessThan, "<=": LessThanOrEqual,
		">": GreaterThan, ">=": GreaterThanOrEqual, "!=": NotEqual, "<>": NotEqual,
		"in": In, "IN": In, "exists": Exists,
	}
	for text, want := range tests {
		got, err := ParseOperator(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
	}

	_, err := ParseOperator("~=")
	assert.Error(t, err)
}

func TestNewFilter(t *testing.T) {
	f, err := NewFilter("status", NotEqual, ir.String("done"))
	require.NoError(t, err)
	assert.Equal(t, []ir.Value{ir.String("done")}, f.Operands())

	_, err = NewFilter("status", In, ir.String("done"))
	assert.Error(t, err, "IN goes through NewInFilter")

	_, err = NewFilter("status", Equal, nil)
	assert.Error(t, err)

	_, err = NewFilter("status", Operator("~"), ir.Int(1))
	assert.Error(t, err)

	f, err = NewFilter("tags", Exists, nil)
	require.NoError(t, err)
	assert.Equal(t, Exists, f.Operator)
	assert.Empty(t, f.Operands())
}

func TestNewInFilter(t *testing.T) {
	values := []ir.Value{ir.Int(3), ir.Int(1)}
	f, err := NewInFilter("priority", values...)
	require.NoError(t, err)
	assert.Equal(t, values, f.Operands())

	values[0] = ir.Int(99)
	assert.Equal(t, ir.Int(3), f.Values[0], "filter keeps its own copy")

	_, err = NewInFilter("priority")
	assert.True(t, errors.Is(err, ErrEmptyIn))

	_, err = NewInFilter("priority", ir.Int(1), nil)
	assert.Error(t, err)
}

func TestFilterEqual(t *testing.T) {
	a, _ := NewInFilter("p", ir.Int(1), ir.Int(2))
	b, _ := NewInFilter("p", ir.Int(1), ir.Int(2))
	c, _ := NewInFilter("p", ir.Int(2), ir.Int(1))
	d, _ := NewFilter("p", Equal, ir.Int(1))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "IN order is significant")
	assert.False(t, a.Equal(d))
}

func TestQueryClone(t *testing.T) {
	anc := ir.MustKey("Project", "apollo")
	q := NewQuery("Task").
		Ancestor(anc).
		In("priority", ir.Int(1), ir.Int(3)).
		Order("priority", Ascending).
		MustBuild()

	clone := q.Clone()
	clone.Filters[0].Values[0] = ir.Int(42)
	clone.Sorts[0].Direction = Descending
	clone.Ancestor.Path[0].Name = "gemini"

	assert.Equal(t, ir.Int(1), q.Filters[0].Values[0])
	assert.Equal(t, Ascending, q.Sorts[0].Direction)
	assert.Equal(t, "apollo", q.Ancestor.Path[0].Name)
}

func TestQueryHelpers(t *testing.T) {
	q := NewQuery("Task").
		Filter("due", GreaterThan, ir.Int(1)).
		Filter("status", NotEqual, ir.String("done")).
		Filter("due", LessThan, ir.Int(9)).
		Filter("owner", Equal, ir.String("ada")).
		Order("due", Ascending).
		Order("owner", Descending).
		MustBuild()

	assert.Equal(t, []string{"due", "status"}, q.InequalityProperties())
	assert.Len(t, q.FiltersOn("due"), 2)
	assert.Equal(t, 1, q.SortIndex("owner"))
	assert.Equal(t, -1, q.SortIndex("status"))
}
