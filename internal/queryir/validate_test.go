package queryir

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
)

func TestValidateLogical(t *testing.T) {
	key := ir.MustKey("Task", 7)

	tests := []struct {
		name  string
		query Query
		want  ShapeCategory // empty means valid
	}{
		{
			name:  "plain kind query",
			query: NewQuery("Task").MustBuild(),
		},
		{
			name: "not-equal with matching sort",
			query: NewQuery("Task").
				Filter("status", NotEqual, ir.String("done")).
				Order("status", Ascending).
				Order("due", Ascending).
				MustBuild(),
		},
		{
			name: "IN with sorts",
			query: NewQuery("Task").
				In("priority", ir.Int(1), ir.Int(3)).
				Order("priority", Descending).
				MustBuild(),
		},
		{
			name: "range on one property twice",
			query: NewQuery("Task").
				Filter("due", GreaterThan, ir.Int(1)).
				Filter("due", LessThanOrEqual, ir.Int(9)).
				MustBuild(),
		},
		{
			name: "leading IN sort skipped for first-sort check",
			query: NewQuery("Task").
				In("priority", ir.Int(1), ir.Int(3)).
				Filter("due", GreaterThan, ir.Int(1)).
				Order("priority", Ascending).
				Order("due", Ascending).
				MustBuild(),
		},
		{
			name: "transaction without ancestor",
			query: NewQuery("Task").
				InTransaction().
				MustBuild(),
			want: CategoryTransactionNeedsAncestor,
		},
		{
			name: "transaction with ancestor",
			query: NewQuery("Task").
				Ancestor(ir.MustKey("Project", "apollo")).
				InTransaction().
				MustBuild(),
		},
		{
			name: "kindless key filter",
			query: NewQuery("").
				Filter(ir.KeyProperty, GreaterThan, key).
				Order(ir.KeyProperty, Ascending).
				MustBuild(),
		},
		{
			name: "kindless property filter",
			query: NewQuery("").
				Filter("status", Equal, ir.String("done")).
				MustBuild(),
			want: CategoryKindRequired,
		},
		{
			name: "kindless descending key sort",
			query: NewQuery("").
				Order(ir.KeyProperty, Descending).
				MustBuild(),
			want: CategoryKindRequired,
		},
		{
			name: "filter without property",
			query: NewQuery("Task").
				Where(FilterPredicate{Operator: Equal, Value: ir.Int(1)}).
				MustBuild(),
			want: CategoryMultiPropertyFilter,
		},
		{
			name: "key filter with non-key value",
			query: NewQuery("Task").
				Filter(ir.KeyProperty, Equal, ir.String("Task/7")).
				MustBuild(),
			want: CategoryIllegalValue,
		},
		{
			name: "key IN with one non-key value",
			query: NewQuery("Task").
				In(ir.KeyProperty, key, ir.Int(7)).
				MustBuild(),
			want: CategoryIllegalValue,
		},
		{
			name: "NaN value",
			query: NewQuery("Task").
				Filter("score", LessThan, ir.Float(nan())).
				MustBuild(),
			want: CategoryIllegalValue,
		},
		{
			name: "IN without values",
			query: NewQuery("Task").
				Where(FilterPredicate{Property: "p", Operator: In}).
				MustBuild(),
			want: CategoryIllegalValue,
		},
		{
			name: "two inequality properties",
			query: NewQuery("Task").
				Filter("due", GreaterThan, ir.Int(1)).
				Filter("score", LessThan, ir.Int(5)).
				MustBuild(),
			want: CategoryMultipleInequalityProperties,
		},
		{
			name: "not-equal plus range on another property",
			query: NewQuery("Task").
				Filter("status", NotEqual, ir.String("done")).
				Filter("due", LessThan, ir.Int(5)).
				MustBuild(),
			want: CategoryMultipleInequalityProperties,
		},
		{
			name: "unknown operator",
			query: NewQuery("Task").
				Where(FilterPredicate{Property: "p", Operator: "LIKE", Value: ir.String("a%")}).
				MustBuild(),
			want: CategoryUnsupportedFilter,
		},
		{
			name: "first sort not on inequality property",
			query: NewQuery("Task").
				Filter("due", GreaterThan, ir.Int(1)).
				Order("owner", Ascending).
				Order("due", Ascending).
				MustBuild(),
			want: CategoryFirstSortMismatch,
		},
		{
			name: "sorts only on IN property with inequality elsewhere",
			query: NewQuery("Task").
				In("priority", ir.Int(1), ir.Int(3)).
				Filter("due", GreaterThan, ir.Int(1)).
				Order("priority", Ascending).
				MustBuild(),
			want: CategoryFirstSortMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLogical(tt.query)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			category, ok := ShapeCategoryOf(err)
			require.True(t, ok, "want QueryShapeError, got %T", err)
			assert.Equal(t, tt.want, category)
		})
	}
}

func TestValidateNative(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  ShapeCategory
	}{
		{
			name: "range with sort",
			query: NewQuery("Task").
				Filter("status", LessThan, ir.String("done")).
				Order("status", Ascending).
				Order("due", Ascending).
				MustBuild(),
		},
		{
			name:  "exists",
			query: NewQuery("Task").Exists("due").MustBuild(),
		},
		{
			name: "not-equal rejected",
			query: NewQuery("Task").
				Filter("status", NotEqual, ir.String("done")).
				MustBuild(),
			want: CategoryUnsupportedFilter,
		},
		{
			name: "IN rejected",
			query: NewQuery("Task").
				In("priority", ir.Int(1), ir.Int(3)).
				MustBuild(),
			want: CategoryUnsupportedFilter,
		},
		{
			name: "IN sort not skipped natively",
			query: NewQuery("Task").
				Filter("due", GreaterThan, ir.Int(1)).
				Order("priority", Ascending).
				MustBuild(),
			want: CategoryFirstSortMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNative(tt.query)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			category, ok := ShapeCategoryOf(err)
			require.True(t, ok, "want QueryShapeError, got %v", err)
			assert.Equal(t, tt.want, category)
		})
	}
}

func TestValidationOrder(t *testing.T) {
	// Transaction scope is checked before kind, kind before filters.
	q := NewQuery("").
		Filter("a", GreaterThan, ir.Int(1)).
		Filter("b", GreaterThan, ir.Int(1)).
		InTransaction().
		MustBuild()

	category, _ := ShapeCategoryOf(ValidateLogical(q))
	assert.Equal(t, CategoryTransactionNeedsAncestor, category)

	q.Transactional = false
	category, _ = ShapeCategoryOf(ValidateLogical(q))
	assert.Equal(t, CategoryKindRequired, category)

	q.Kind = "Task"
	category, _ = ShapeCategoryOf(ValidateLogical(q))
	assert.Equal(t, CategoryMultipleInequalityProperties, category)
}

func TestQueryShapeErrorMessage(t *testing.T) {
	err := error(shapeError(CategoryFirstSortMismatch, "due", "first sort is %q", "owner"))
	assert.Equal(t, `query shape (first-sort-mismatch) on "due": first sort is "owner"`, err.Error())

	wrapped := fmt.Errorf("prepare: %w", err)
	assert.True(t, IsQueryShapeError(wrapped))

	_, ok := ShapeCategoryOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func nan() float64 { return math.NaN() }
