package ir

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// KeyProperty is the reserved property name that refers to an entity's key
// in filters and sort orders.
const KeyProperty = "__key__"

// PathElement is one (kind, id-or-name) step of a key path.
// Exactly one of ID and Name is set on a complete element.
type PathElement struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Key identifies an entity by its ancestor path. The last element names the
// entity itself; earlier elements name its ancestors.
type Key struct {
	Path []PathElement
}

func (Key) value() {}

// NewKey builds a key from alternating kind and id-or-name arguments:
//
//	NewKey("Project", "apollo", "Task", 7)
//
// ids may be int or int64; names are strings.
func NewKey(parts ...any) (Key, error) {
	if len(parts) == 0 || len(parts)%2 != 0 {
		return Key{}, fmt.Errorf("key needs kind/id pairs, got %d parts", len(parts))
	}

	path := make([]PathElement, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		kind, ok := parts[i].(string)
		if !ok || kind == "" {
			return Key{}, fmt.Errorf("key part %d: kind must be a non-empty string", i)
		}
		elem := PathElement{Kind: kind}
		switch id := parts[i+1].(type) {
		case int:
			elem.ID = int64(id)
		case int64:
			elem.ID = id
		case string:
			elem.Name = id
		default:
			return Key{}, fmt.Errorf("key part %d: id must be int or string, got %T", i+1, parts[i+1])
		}
		if elem.ID == 0 && elem.Name == "" {
			return Key{}, fmt.Errorf("key part %d: incomplete path element", i+1)
		}
		path = append(path, elem)
	}
	return Key{Path: path}, nil
}

// MustKey is NewKey for literals in tests and fixtures. Panics on error.
func MustKey(parts ...any) Key {
	k, err := NewKey(parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Kind returns the kind of the entity the key names.
func (k Key) Kind() string {
	if len(k.Path) == 0 {
		return ""
	}
	return k.Path[len(k.Path)-1].Kind
}

// Parent returns the key with the last path element removed.
// The second result is false for a root key.
func (k Key) Parent() (Key, bool) {
	if len(k.Path) < 2 {
		return Key{}, false
	}
	return Key{Path: k.Path[:len(k.Path)-1]}, true
}

// Child returns a new key one level below k.
func (k Key) Child(kind string, idOrName any) (Key, error) {
	child, err := NewKey(kind, idOrName)
	if err != nil {
		return Key{}, err
	}
	path := make([]PathElement, 0, len(k.Path)+1)
	path = append(path, k.Path...)
	path = append(path, child.Path[0])
	return Key{Path: path}, nil
}

// HasAncestor reports whether ancestor is a prefix of k's path.
// A key is its own ancestor, matching ancestor-query semantics.
func (k Key) HasAncestor(ancestor Key) bool {
	if len(ancestor.Path) == 0 || len(ancestor.Path) > len(k.Path) {
		return false
	}
	for i, elem := range ancestor.Path {
		if elem != k.Path[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the key has no path.
func (k Key) IsZero() bool {
	return len(k.Path) == 0
}

// String renders the key in query-text form: Key(Project, "apollo", Task, 7).
func (k Key) String() string {
	var b strings.Builder
	b.WriteString("Key(")
	for i, elem := range k.Path {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(elem.Kind)
		b.WriteString(", ")
		if elem.Name != "" {
			b.WriteString(strconv.Quote(elem.Name))
		} else {
			b.WriteString(strconv.FormatInt(elem.ID, 10))
		}
	}
	b.WriteString(")")
	return b.String()
}

// CompareKeys orders keys element by element: kind, then ids before names,
// then id or name. A key sorts before its descendants.
func CompareKeys(a, b Key) int {
	n := min(len(a.Path), len(b.Path))
	for i := 0; i < n; i++ {
		if c := comparePathElements(a.Path[i], b.Path[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.Path), len(b.Path))
}

func comparePathElements(a, b PathElement) int {
	if c := strings.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	aNamed, bNamed := a.Name != "", b.Name != ""
	switch {
	case aNamed && bNamed:
		return strings.Compare(a.Name, b.Name)
	case aNamed:
		return 1
	case bNamed:
		return -1
	default:
		return cmp.Compare(a.ID, b.ID)
	}
}
