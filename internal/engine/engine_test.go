package engine

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/native"
	"github.com/roach88/dsquery/internal/planner"
	"github.com/roach88/dsquery/internal/queryir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, exec native.Executor, opts ...EngineOption) *Engine {
	t.Helper()
	defaults := []EngineOption{
		WithLogger(discardLogger()),
		WithRunIDGenerator(NewSequenceGenerator("run")),
	}
	e, err := New(exec, append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// task builds a Task entity named name with the given properties.
func task(name string, props map[string][]ir.Value) ir.Entity {
	e := ir.NewEntity(ir.MustKey("Task", name))
	for p, values := range props {
		e.Set(p, values...)
	}
	return e
}

// names returns the last key path element of each entity, id or name.
func names(entities []ir.Entity) []string {
	var out []string
	for _, e := range entities {
		last := e.Key.Path[len(e.Key.Path)-1]
		if last.Name != "" {
			out = append(out, last.Name)
		} else {
			out = append(out, strconv.FormatInt(last.ID, 10))
		}
	}
	return out
}

func vals(vs ...ir.Value) []ir.Value { return vs }

func prepare(t *testing.T, e *Engine, q queryir.Query) *PreparedQuery {
	t.Helper()
	pq, err := e.Prepare(q)
	require.NoError(t, err)
	return pq
}

func list(t *testing.T, pq *PreparedQuery, opts native.FetchOptions) []ir.Entity {
	t.Helper()
	out, err := pq.AsList(context.Background(), opts)
	require.NoError(t, err)
	return out
}

func TestNew(t *testing.T) {
	e := newTestEngine(t, native.NewMemory())
	assert.Equal(t, planner.MaxConcurrentAlternatives, e.poolSize)
	assert.Equal(t, DefaultChunkSize, e.chunkSize)

	e = newTestEngine(t, native.NewMemory(), WithMaxConcurrentSources(4), WithChunkSize(10))
	assert.Equal(t, 4, e.poolSize)
	assert.Equal(t, 10, e.chunkSize)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(native.NewMemory(), WithMaxConcurrentSources(0))
	assert.Error(t, err)

	_, err = New(native.NewMemory(), WithChunkSize(-1))
	assert.Error(t, err)
}

func TestPrepareRejectsBeforeAnyNativeCall(t *testing.T) {
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
			name: "31 IN values crossed with another component",
			query: queryir.NewQuery("Task").
				In("priority", values...).
				In("status", ir.String("open"), ir.String("blocked")).
				Order("due", queryir.Ascending).
				MustBuild(),
			tooMany: true,
		},
		{
			name: "not-equal sorted on another property",
			query: queryir.NewQuery("Task").
				Filter("status", queryir.NotEqual, ir.String("done")).
				Order("dueDate", queryir.Ascending).
				MustBuild(),
			category: queryir.CategoryFirstSortMismatch,
		},
		{
			name: "two inequality properties",
			query: queryir.NewQuery("Task").
				Filter("status", queryir.NotEqual, ir.String("done")).
				Filter("due", queryir.GreaterThan, ir.Int(1)).
				MustBuild(),
			category: queryir.CategoryMultipleInequalityProperties,
		},
		{
			name: "keys-only merge sorted on a property",
			query: queryir.NewQuery("Task").
				In("priority", ir.Int(1), ir.Int(2)).
				Order("due", queryir.Ascending).
				KeysOnly().
				MustBuild(),
			category: queryir.CategoryKeysOnlySort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := native.NewMemory(task("A", map[string][]ir.Value{"priority": vals(ir.Int(1))}))
			e := newTestEngine(t, mem)

			_, err := e.Prepare(tt.query)
			require.Error(t, err)
			if tt.tooMany {
				assert.True(t, planner.IsTooManyAlternatives(err))
			} else {
				category, ok := queryir.ShapeCategoryOf(err)
				require.True(t, ok, "want QueryShapeError, got %v", err)
				assert.Equal(t, tt.category, category)
			}
			assert.Zero(t, mem.Calls())
		})
	}
}

func TestPrepareIsReusable(t *testing.T) {
	mem := native.NewMemory(
		task("A", map[string][]ir.Value{"priority": vals(ir.Int(1))}),
		task("B", map[string][]ir.Value{"priority": vals(ir.Int(3))}),
	)
	e := newTestEngine(t, mem)
	pq := prepare(t, e, queryir.NewQuery("Task").In("priority", ir.Int(3), ir.Int(1)).MustBuild())

	first := list(t, pq, native.FetchOptions{})
	second := list(t, pq, native.FetchOptions{})
	assert.Equal(t, names(first), names(second))
	assert.Equal(t, []string{"B", "A"}, names(first), "unsorted IN keeps caller value order")
}

type recordingMetrics struct {
	prepared  int
	batches   int
	failed    int
	rejected  int
	runs      int
	delivered int
}

func (m *recordingMetrics) QueryPrepared(int, bool) { m.prepared++ }
func (m *recordingMetrics) BatchStarted(int) { m.batches++ }
func (m *recordingMetrics) SourceFailed() { m.failed++ }
func (m *recordingMetrics) EntityRejected() { m.rejected++ }
func (m *recordingMetrics) RunFinished(_ time.Duration, delivered int, _ error) {
	m.runs++
	m.delivered += delivered
}

func TestMetricsHooks(t *testing.T) {
	mem := native.NewMemory(
		task("A", map[string][]ir.Value{"status": vals(ir.String("done"))}),
		task("B", map[string][]ir.Value{"status": vals(ir.String("pending"))}),
		task("C", map[string][]ir.Value{"status": vals(ir.String("blocked"), ir.String("done"))}),
	)
	m := &recordingMetrics{}
	e := newTestEngine(t, mem, WithMetrics(m))

	pq := prepare(t, e, queryir.NewQuery("Task").Filter("status", queryir.NotEqual, ir.String("done")).MustBuild())
	got := list(t, pq, native.FetchOptions{})

	assert.Equal(t, []string{"B"}, names(got))
	assert.Equal(t, 1, m.prepared)
	assert.Equal(t, 2, m.batches)
	assert.Equal(t, 1, m.rejected, "C matches the lower range but carries done")
	assert.Equal(t, 1, m.runs)
	assert.Equal(t, 1, m.delivered)
	assert.Zero(t, m.failed)
}
