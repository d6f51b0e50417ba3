package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
)

func TestPut_Get(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := taskEntity("a", map[string][]ir.Value{
		"tags":  vals(ir.String("x"), ir.String("y")),
		"due":   vals(ir.Int(3)),
		"score": vals(ir.Float(1.5)),
	})
	require.NoError(t, s.Put(ctx, e))

	got, ok, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e, got)

	_, ok, err = s.Get(ctx, ir.MustKey("Task", "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPut_ReplacesValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, taskEntity("a", map[string][]ir.Value{"tags": vals(ir.String("x"), ir.String("y"))})))
	require.NoError(t, s.Put(ctx, taskEntity("a", map[string][]ir.Value{"tags": vals(ir.String("z"))})))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM entity_values").Scan(&count))
	assert.Equal(t, 1, count, "old value rows are removed")

	got, ok, err := s.Get(ctx, ir.MustKey("Task", "a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.String("z")}, got.Values("tags"))
}

func TestPut_DuplicateValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := taskEntity("a", map[string][]ir.Value{"tags": vals(ir.String("x"), ir.String("x"))})
	require.NoError(t, s.Put(ctx, e))

	got, _, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.Len(t, got.Values("tags"), 2, "the record keeps every value")
}

func TestPutAll_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.PutAll(ctx, []ir.Entity{
		taskEntity("a", nil),
		{Key: ir.MustKey("Task", "b"), Properties: map[string][]ir.Value{ir.KeyProperty: vals(ir.Int(1))}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEntity)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "nothing is written when one entity is invalid")
}

func TestPut_RejectsInvalidEntities(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		entity ir.Entity
	}{
		{"zero key", ir.Entity{}},
		{"empty property name", ir.Entity{Key: ir.MustKey("Task", 1), Properties: map[string][]ir.Value{"": vals(ir.Int(1))}}},
		{"nil value", ir.Entity{Key: ir.MustKey("Task", 1), Properties: map[string][]ir.Value{"p": {nil}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Put(ctx, tt.entity), ErrInvalidEntity)
		})
	}
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e := taskEntity("a", map[string][]ir.Value{"due": vals(ir.Int(1))})
	require.NoError(t, s.Put(ctx, e))
	require.NoError(t, s.Delete(ctx, e.Key))
	require.NoError(t, s.Delete(ctx, e.Key), "deleting a missing key is a no-op")

	_, ok, err := s.Get(ctx, e.Key)
	require.NoError(t, err)
	assert.False(t, ok)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM entity_values").Scan(&count))
	assert.Zero(t, count, "value rows cascade")
}

func TestAll_KeyOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	parent := ir.MustKey("Project", "p")
	child, err := parent.Child("Task", 2)
	require.NoError(t, err)

	require.NoError(t, s.PutAll(ctx, []ir.Entity{
		taskEntity("b", nil),
		ir.NewEntity(child),
		taskEntity("a", nil),
		ir.NewEntity(parent),
		ir.NewEntity(ir.MustKey("Task", 7)),
	}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.Key.String()
	}
	want := []string{parent.String(), child.String(), ir.MustKey("Task", 7).String(), ir.MustKey("Task", "a").String(), ir.MustKey("Task", "b").String()}
	assert.Equal(t, want, keys)
}
