package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/dsquery/internal/native"
)

func TestPageQuota(t *testing.T) {
	q := newPageQuota(2, 3)

	var admitted []bool
	for !q.exhausted() {
		admitted = append(admitted, q.admit())
	}

	assert.Equal(t, []bool{false, false, true, true, true}, admitted)
	assert.Equal(t, 3, q.Emitted())
}

func TestPageQuotaUnbounded(t *testing.T) {
	q := newPageQuota(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, q.admit())
	}
	assert.False(t, q.exhausted())
}

func TestSplitFetchOptions(t *testing.T) {
	opts := native.FetchOptions{Offset: 4, Limit: 2, PrefetchSize: 5}

	fetch, quota := splitFetchOptions(opts, true, 50)
	assert.Equal(t, native.FetchOptions{Offset: 4, Limit: 2, ChunkSize: 50, PrefetchSize: 5}, fetch)
	assert.True(t, quota.admit(), "offset already applied by the store")

	fetch, quota = splitFetchOptions(opts, false, 50)
	assert.Equal(t, native.FetchOptions{ChunkSize: 50, PrefetchSize: 5}, fetch)
	assert.False(t, quota.admit())

	opts.ChunkSize = 7
	fetch, _ = splitFetchOptions(opts, false, 50)
	assert.Equal(t, 7, fetch.ChunkSize)
}
