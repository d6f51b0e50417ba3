package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/dsquery/internal/ir"
)

// CompileEntity parses one entity:
//
//	{
//		key: ["Project", "apollo", "Task", 7]
//		properties: {
//			status: "open"
//			tags:   ["backend", "urgent"] // multi-valued
//			owner:  {key: ["User", "ann"]}
//		}
//	}
func CompileEntity(v cue.Value, field string) (ir.Entity, error) {
	if err := v.Err(); err != nil {
		return ir.Entity{}, formatCUEError(err)
	}

	keyVal := v.LookupPath(cue.ParsePath("key"))
	if !keyVal.Exists() {
		return ir.Entity{}, compileErrorf(v, field+".key", "key is required")
	}
	key, err := CompileKey(keyVal, field+".key")
	if err != nil {
		return ir.Entity{}, err
	}
	entity := ir.NewEntity(key)

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return entity, nil
	}

	iter, err := propsVal.Fields()
	if err != nil {
		return ir.Entity{}, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		propField := fmt.Sprintf("%s.properties.%s", field, name)
		values, err := compilePropertyValues(iter.Value(), propField)
		if err != nil {
			return ir.Entity{}, err
		}
		entity.Set(name, values...)
	}

	return entity, nil
}

func compilePropertyValues(v cue.Value, field string) ([]ir.Value, error) {
	if v.Kind() != cue.ListKind {
		value, err := CompileValue(v, field)
		if err != nil {
			return nil, err
		}
		return []ir.Value{value}, nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var values []ir.Value
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		elemField := fmt.Sprintf("%s[%d]", field, i)
		if elem.Kind() == cue.ListKind {
			return nil, compileErrorf(elem, elemField, "nested lists are not allowed")
		}
		value, err := CompileValue(elem, elemField)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, compileErrorf(v, field, "a property needs at least one value; omit it instead")
	}
	return values, nil
}
