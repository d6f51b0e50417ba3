package store

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/roach88/dsquery/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// taskEntity builds a Task entity named name.
func taskEntity(name string, props map[string][]ir.Value) ir.Entity {
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
