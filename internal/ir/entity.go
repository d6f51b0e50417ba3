package ir

import (
	"slices"
)

// Entity is a decoded datastore record: a key and multi-valued properties.
// Every property present in Properties holds at least one value.
type Entity struct {
	Key        Key
	Properties map[string][]Value
}

// NewEntity creates an entity with no properties.
func NewEntity(key Key) Entity {
	return Entity{Key: key, Properties: make(map[string][]Value)}
}

// Set replaces the values of a property. Setting no values removes it.
func (e *Entity) Set(property string, values ...Value) {
	if e.Properties == nil {
		e.Properties = make(map[string][]Value)
	}
	if len(values) == 0 {
		delete(e.Properties, property)
		return
	}
	e.Properties[property] = slices.Clone(values)
}

// Values returns the values of a property, or nil if the entity lacks it.
// The reserved key property resolves to the entity's key.
func (e Entity) Values(property string) []Value {
	if property == KeyProperty {
		return []Value{e.Key}
	}
	return e.Properties[property]
}

// Has reports whether the entity carries the property.
func (e Entity) Has(property string) bool {
	return len(e.Values(property)) > 0
}

// PropertyNames returns property names in ascending order.
func (e Entity) PropertyNames() []string {
	names := make([]string, 0, len(e.Properties))
	for name := range e.Properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// KeyOnly returns a copy of the entity without properties, the shape
// keys-only queries surface.
func (e Entity) KeyOnly() Entity {
	return Entity{Key: e.Key, Properties: map[string][]Value{}}
}
