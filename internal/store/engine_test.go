package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/engine"
	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/match"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/queryir"
)

// The engine merges several chunked SQLite sources at once; its results
// must equal a full scan evaluated with the logical reference matcher.
func TestEngineOverStore(t *testing.T) {
	s := createTestStore(t)
	seedTasks(t, s)
	ctx := context.Background()

	e, err := engine.New(s,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithChunkSize(2),
	)
	require.NoError(t, err)
	defer e.Close()

	all, err := s.All(ctx)
	require.NoError(t, err)

	q := queryir.NewQuery
	queries := []queryir.Query{
		q("Task").In("priority", ir.Int(1), ir.Int(3)).Order("due", queryir.Ascending).MustBuild(),
		q("Task").In("tags", ir.String("a"), ir.String("c")).Order("tags", queryir.Descending).MustBuild(),
		q("Task").Filter("status", queryir.NotEqual, ir.String("done")).Order("status", queryir.Ascending).MustBuild(),
		q("Task").Filter("tags", queryir.NotEqual, ir.String("b")).In("priority", ir.Int(0), ir.Int(2)).Order("tags", queryir.Ascending).MustBuild(),
		q("Task").In("priority", ir.Int(1), ir.Int(2)).In("status", ir.String("open"), ir.String("blocked")).Order("due", queryir.Descending).MustBuild(),
	}

	for _, query := range queries {
		t.Run(query.String(), func(t *testing.T) {
			pq, err := e.Prepare(query)
			require.NoError(t, err)
			got, err := pq.AsList(ctx, native.FetchOptions{})
			require.NoError(t, err)

			logical, err := match.NewLogical(queryir.Normalize(query))
			require.NoError(t, err)
			want, err := logical.Select(all)
			require.NoError(t, err)

			require.NotEmpty(t, want)
			assert.Equal(t, names(want), names(got))
		})
	}
}
