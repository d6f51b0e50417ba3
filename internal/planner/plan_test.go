package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

func TestBuild(t *testing.T) {
	q := queryir.NewQuery("Task").
		Filter("status", queryir.NotEqual, ir.String("done")).
		Order("status", queryir.Ascending).
		Order("dueDate", queryir.Ascending).
		MustBuild()

	plan, err := Build(q)
	require.NoError(t, err)

	assert.Empty(t, plan.BaseFilters)
	require.Len(t, plan.Components, 1)
	assert.Equal(t, Sequential, plan.Components[0].Mode)
	assert.False(t, plan.HasConcurrent())
	assert.Equal(t, 2, plan.TotalNativeQueries())
	assert.Equal(t, 1, plan.ConcurrentAlternatives())
	assert.Equal(t, `kind Task where status < "done" order by status asc, dueDate asc`, plan.Representative().String())
}

func TestBuildErrors(t *testing.T) {
	values := make([]ir.Value, 31)
	for i := range values {
		values[i] = ir.Int(int64(i))
	}

	tests := []struct {
		name     string
		query    queryir.Query
		category queryir.ShapeCategory
		tooMany  bool
	}{
		{
			name: "shape error",
			query: queryir.NewQuery("Task").
				Filter("a", queryir.NotEqual, ir.Int(1)).
				Filter("b", queryir.GreaterThan, ir.Int(1)).
				MustBuild(),
			category: queryir.CategoryMultipleInequalityProperties,
		},
		{
			name: "IN with 31 values crossed with another component",
			query: queryir.NewQuery("Task").
				In("p", values...).
				In("q", ir.Int(1), ir.Int(2)).
				Order("due", queryir.Ascending).
				MustBuild(),
			tooMany: true,
		},
		{
			name: "keys-only merge on a property",
			query: queryir.NewQuery("Task").
				In("p", ir.Int(1), ir.Int(2)).
				Order("due", queryir.Ascending).
				KeysOnly().
				MustBuild(),
			category: queryir.CategoryKeysOnlySort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.query)
			require.Error(t, err)
			if tt.tooMany {
				assert.True(t, IsTooManyAlternatives(err))
				return
			}
			category, ok := queryir.ShapeCategoryOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestBuildKeysOnlySequentialAllowed(t *testing.T) {
	q := queryir.NewQuery("Task").
		In("p", ir.Int(1), ir.Int(2)).
		Order("p", queryir.Ascending).
		KeysOnly().
		MustBuild()

	plan, err := Build(q)
	require.NoError(t, err)
	assert.False(t, plan.HasConcurrent())
}

func TestBuildSingleValueInIsEqual(t *testing.T) {
	in, err := Build(queryir.NewQuery("Task").In("p", ir.Int(1)).MustBuild())
	require.NoError(t, err)
	equal, err := Build(queryir.NewQuery("Task").Filter("p", queryir.Equal, ir.Int(1)).MustBuild())
	require.NoError(t, err)

	assert.Equal(t, equal, in)
	assert.Empty(t, in.Components)
	assert.Empty(t, in.Acceptors)
}
