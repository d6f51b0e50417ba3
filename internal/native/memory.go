package native

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/dsquery/internal/ir"
	"github.com/roach88/dsquery/internal/queryir"
)

// Memory is an in-process executor over a set of entities. It evaluates
// every query with Select, so it doubles as the reference store in tests.
type Memory struct {
	mu       sync.RWMutex
	entities map[string]ir.Entity

	calls  atomic.Int64
	failOn func(q queryir.Query) error
}

// NewMemory returns an executor holding entities.
func NewMemory(entities ...ir.Entity) *Memory {
	m := &Memory{entities: make(map[string]ir.Entity)}
	for _, e := range entities {
		m.Put(e)
	}
	return m
}

// Put stores e, replacing any entity with the same key.
func (m *Memory) Put(e ir.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[string(ir.EncodeKey(e.Key))] = e
}

// Delete removes the entity with key k.
func (m *Memory) Delete(k ir.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, string(ir.EncodeKey(k)))
}

// All returns every stored entity in key order.
func (m *Memory) All() []ir.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entities))
	for k := range m.entities {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]ir.Entity, len(keys))
	for i, k := range keys {
		out[i] = m.entities[k]
	}
	return out
}

// FailWith makes ExecuteNative return the error fn produces for a query.
// A nil error lets the query run.
func (m *Memory) FailWith(fn func(q queryir.Query) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = fn
}

// Calls returns how many native queries have been executed.
func (m *Memory) Calls() int {
	return int(m.calls.Load())
}

// ExecuteNative implements Executor.
func (m *Memory) ExecuteNative(ctx context.Context, q queryir.Query, opts FetchOptions) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)

	m.mu.RLock()
	failOn := m.failOn
	m.mu.RUnlock()
	if failOn != nil {
		if err := failOn(q); err != nil {
			return nil, err
		}
	}

	selected, err := Select(q, opts, m.All())
	if err != nil {
		return nil, err
	}
	records, err := EncodeAll(selected)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(records), nil
}
