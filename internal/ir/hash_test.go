package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityDigest_Deterministic(t *testing.T) {
	a := NewEntity(MustKey("Task", 1))
	a.Set("status", String("open"))
	a.Set("priority", Int(2))

	b := NewEntity(MustKey("Task", 1))
	b.Set("priority", Int(2))
	b.Set("status", String("open"))

	da, err := EntityDigest(a)
	require.NoError(t, err)
	db, err := EntityDigest(b)
	require.NoError(t, err)

	assert.Equal(t, da, db, "property insertion order must not matter")
	assert.Len(t, da, 64)
}

func TestEntityDigest_DistinguishesTypes(t *testing.T) {
	a := NewEntity(MustKey("Task", 1))
	a.Set("n", Int(2))
	b := NewEntity(MustKey("Task", 1))
	b.Set("n", Float(2))

	da, err := EntityDigest(a)
	require.NoError(t, err)
	db, err := EntityDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestResultDigest_OrderSensitive(t *testing.T) {
	a := NewEntity(MustKey("Task", 1))
	b := NewEntity(MustKey("Task", 2))

	ab, err := ResultDigest([]Entity{a, b})
	require.NoError(t, err)
	ba, err := ResultDigest([]Entity{b, a})
	require.NoError(t, err)

	assert.NotEqual(t, ab, ba)
}

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainEntity, data), hashWithDomain(DomainResult, data))
}
