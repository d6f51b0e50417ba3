package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/dsquery/internal/indexshape"
	"github.com/roach88/dsquery/internal/queryir"
)

// CompileIndex parses a composite index declaration:
//
//	{kind: "Task", ancestor: true, properties: [
//		{property: "owner"},
//		{property: "due", direction: "desc"},
//	]}
func CompileIndex(v cue.Value, field string) (indexshape.CompositeIndex, error) {
	if err := v.Err(); err != nil {
		return indexshape.CompositeIndex{}, formatCUEError(err)
	}

	kind, err := requiredString(v, "kind", field)
	if err != nil {
		return indexshape.CompositeIndex{}, err
	}
	ci := indexshape.CompositeIndex{Kind: kind}

	if ancVal := v.LookupPath(cue.ParsePath("ancestor")); ancVal.Exists() {
		ci.Ancestor, err = ancVal.Bool()
		if err != nil {
			return indexshape.CompositeIndex{}, compileErrorf(ancVal, field+".ancestor", "ancestor must be a bool")
		}
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return indexshape.CompositeIndex{}, compileErrorf(v, field+".properties", "properties is required")
	}
	iter, err := propsVal.List()
	if err != nil {
		return indexshape.CompositeIndex{}, compileErrorf(propsVal, field+".properties", "properties must be a list")
	}
	for i := 0; iter.Next(); i++ {
		elemField := fmt.Sprintf("%s.properties[%d]", field, i)
		prop, err := requiredString(iter.Value(), "property", elemField)
		if err != nil {
			return indexshape.CompositeIndex{}, err
		}
		dir := queryir.Ascending
		if dirVal := iter.Value().LookupPath(cue.ParsePath("direction")); dirVal.Exists() {
			s, _ := dirVal.String()
			if dir, err = queryir.ParseDirection(s); err != nil {
				return indexshape.CompositeIndex{}, compileErrorf(dirVal, elemField+".direction", "%v", err)
			}
		}
		ci.Properties = append(ci.Properties, indexshape.IndexProperty{Property: prop, Direction: dir})
	}

	return ci, nil
}
