// Package compiler turns CUE documents into fixtures the engine can load:
// entities, named queries and composite index declarations.
//
// A document has three optional top-level fields:
//
//	entities: [...{key: [...], properties: {...}}]
//	queries: [Name=string]: {text: "..."} | {kind: "...", filter: [...], ...}
//	indexes: [...{kind: "...", ancestor?: bool, properties: [...]}]
//
// Compile* functions stop at the first malformed field and return a
// *CompileError carrying its CUE source position. Validate then checks a
// compiled document as a whole and reports every problem it finds.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/ir"
)

// Document is a compiled fixture document.
type Document struct {
	Entities []ir.Entity
	Queries  []NamedQuery // declaration order
	Indexes  []indexshape.CompositeIndex
}

// Query returns the named query.
func (d *Document) Query(name string) (NamedQuery, bool) {
	for _, q := range d.Queries {
		if q.Name == name {
			return q, true
		}
	}
	return NamedQuery{}, false
}

// Merge appends other's contents to d. Query names are kept as declared;
// Validate reports collisions.
func (d *Document) Merge(other *Document) {
	d.Entities = append(d.Entities, other.Entities...)
	d.Queries = append(d.Queries, other.Queries...)
	d.Indexes = append(d.Indexes, other.Indexes...)
}

// CompileDocument parses a whole document value.
func CompileDocument(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	doc := &Document{}

	if entVal := v.LookupPath(cue.ParsePath("entities")); entVal.Exists() {
		iter, err := entVal.List()
		if err != nil {
			return nil, compileErrorf(entVal, "entities", "entities must be a list")
		}
		for i := 0; iter.Next(); i++ {
			e, err := CompileEntity(iter.Value(), fmt.Sprintf("entities[%d]", i))
			if err != nil {
				return nil, err
			}
			doc.Entities = append(doc.Entities, e)
		}
	}

	if queriesVal := v.LookupPath(cue.ParsePath("queries")); queriesVal.Exists() {
		iter, err := queriesVal.Fields()
		if err != nil {
			return nil, compileErrorf(queriesVal, "queries", "queries must be a struct of named queries")
		}
		for iter.Next() {
			q, err := CompileQuery(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			doc.Queries = append(doc.Queries, q)
		}
	}

	if idxVal := v.LookupPath(cue.ParsePath("indexes")); idxVal.Exists() {
		iter, err := idxVal.List()
		if err != nil {
			return nil, compileErrorf(idxVal, "indexes", "indexes must be a list")
		}
		for i := 0; iter.Next(); i++ {
			ci, err := CompileIndex(iter.Value(), fmt.Sprintf("indexes[%d]", i))
			if err != nil {
				return nil, err
			}
			doc.Indexes = append(doc.Indexes, ci)
		}
	}

	return doc, nil
}
