package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/dsquery/internal/ir"
)

// CompileValue converts a concrete CUE scalar into a property value.
//
//	3          -> ir.Int
//	1.5, 2.0   -> ir.Float
//	"open"     -> ir.String
//	true       -> ir.Bool
//	null       -> ir.Null
//	{key: [...]} -> ir.Key
//
// Lists are not values; entity properties use them for multiple values.
func CompileValue(v cue.Value, field string) (ir.Value, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, compileErrorf(v, field, "integer out of range: %v", err)
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, compileErrorf(v, field, "float out of range: %v", err)
		}
		return ir.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.StructKind:
		keyVal := v.LookupPath(cue.ParsePath("key"))
		if !keyVal.Exists() {
			return nil, compileErrorf(v, field, "struct values must be keys: {key: [Kind, id, ...]}")
		}
		return CompileKey(keyVal, field+".key")
	case cue.BottomKind:
		return nil, compileErrorf(v, field, "value is not concrete")
	default:
		return nil, compileErrorf(v, field, "unsupported value kind %v", v.IncompleteKind())
	}
}

// CompileKey converts a list of alternating kinds and ids into a key:
//
//	["Project", "apollo", "Task", 7]
//
// Integer ids must be non-zero; string names must be non-empty.
func CompileKey(v cue.Value, field string) (ir.Key, error) {
	if err := v.Err(); err != nil {
		return ir.Key{}, formatCUEError(err)
	}
	if v.Kind() != cue.ListKind {
		return ir.Key{}, compileErrorf(v, field, "key must be a list of kind/id pairs")
	}

	iter, err := v.List()
	if err != nil {
		return ir.Key{}, formatCUEError(err)
	}

	var parts []any
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		elemField := fmt.Sprintf("%s[%d]", field, i)
		if i%2 == 0 {
			kind, err := elem.String()
			if err != nil {
				return ir.Key{}, compileErrorf(elem, elemField, "key kind must be a string")
			}
			parts = append(parts, kind)
			continue
		}
		switch elem.Kind() {
		case cue.IntKind:
			id, err := elem.Int64()
			if err != nil {
				return ir.Key{}, compileErrorf(elem, elemField, "key id out of range: %v", err)
			}
			parts = append(parts, id)
		case cue.StringKind:
			name, _ := elem.String()
			parts = append(parts, name)
		default:
			return ir.Key{}, compileErrorf(elem, elemField, "key id must be an integer or a string")
		}
	}

	key, err := ir.NewKey(parts...)
	if err != nil {
		return ir.Key{}, compileErrorf(v, field, "%v", err)
	}
	return key, nil
}
