package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Record is the raw form a native store hands back for one entity:
// canonical JSON produced by EncodeEntity.
//
//	{"key":[["Project","apollo"],["Task",7]],"properties":{"due":[3],"tags":["a","b"]}}
//
// Value forms inside properties:
//   - null, true/false, integers and strings map to JSON directly
//   - Float is {"float":1.5} so it never reads back as an Int
//   - Key is {"key":[[kind, id-or-name], ...]}
type Record []byte

// MarshalCanonical produces canonical JSON: object keys sorted by UTF-16
// code units, no HTML escaping, NFC-normalized strings.
//
// Accepted inputs are Value types, Entity, []Value, map[string]any, []any,
// string, int, int64 and bool. Bare float64 is rejected; wrap it in Float.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case String:
		return marshalCanonicalString(buf, string(val))
	case string:
		return marshalCanonicalString(buf, val)
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("float %v has no JSON form", f)
		}
		buf.WriteString(`{"float":`)
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		buf.WriteByte('}')
	case Key:
		buf.WriteString(`{"key":`)
		if err := marshalKeyPath(buf, val); err != nil {
			return err
		}
		buf.WriteByte('}')
	case Entity:
		return marshalCanonicalEntity(buf, val)
	case []Value:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return marshalCanonicalObject(buf, val)
	case float64, float32:
		return fmt.Errorf("bare floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func marshalCanonicalEntity(buf *bytes.Buffer, e Entity) error {
	buf.WriteString(`{"key":`)
	if err := marshalKeyPath(buf, e.Key); err != nil {
		return err
	}
	buf.WriteString(`,"properties":`)

	props := make(map[string]any, len(e.Properties))
	for name, values := range e.Properties {
		if len(values) == 0 {
			continue
		}
		props[name] = values
	}
	if err := marshalCanonicalObject(buf, props); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	buf.WriteByte('}')
	return nil
}

func marshalKeyPath(buf *bytes.Buffer, k Key) error {
	if k.IsZero() {
		return fmt.Errorf("key has no path")
	}
	buf.WriteByte('[')
	for i, elem := range k.Path {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		if err := marshalCanonicalString(buf, elem.Kind); err != nil {
			return err
		}
		buf.WriteByte(',')
		if elem.Name != "" {
			if err := marshalCanonicalString(buf, elem.Name); err != nil {
				return err
			}
		} else {
			buf.WriteString(strconv.FormatInt(elem.ID, 10))
		}
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
	return nil
}

// marshalCanonicalString writes a JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; <, >, & and
// U+2028/U+2029 are written literally.
func marshalCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes json.Encoder
// emits back into literal characters, leaving an escaped backslash followed
// by "u2028" untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			if data[i+1] == 'u' && i+5 < len(data) &&
				data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
				(data[i+5] == '8' || data[i+5] == '9') {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
			// Any other escape: copy both bytes so an escaped backslash
			// never pairs with the following text.
			out = append(out, data[i], data[i+1])
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func marshalCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonicalString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := marshalCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// compareKeysRFC8785 compares strings by UTF-16 code units as RFC 8785
// requires. Go's native string order is UTF-8 and differs above U+FFFF.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// EncodeEntity serializes an entity into its record form.
func EncodeEntity(e Entity) (Record, error) {
	data, err := MarshalCanonical(e)
	if err != nil {
		return nil, fmt.Errorf("encode entity %s: %w", e.Key, err)
	}
	return Record(data), nil
}

// DecodeEntity parses a record produced by EncodeEntity.
func DecodeEntity(rec Record) (Entity, error) {
	var raw struct {
		Key        json.RawMessage            `json:"key"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Entity{}, fmt.Errorf("decode record: %w", err)
	}
	if len(raw.Key) == 0 {
		return Entity{}, fmt.Errorf("decode record: missing key")
	}

	key, err := decodeKeyPath(raw.Key)
	if err != nil {
		return Entity{}, fmt.Errorf("decode record key: %w", err)
	}

	e := NewEntity(key)
	for name, rawValues := range raw.Properties {
		var elems []json.RawMessage
		if err := json.Unmarshal(rawValues, &elems); err != nil {
			return Entity{}, fmt.Errorf("property %q: %w", name, err)
		}
		if len(elems) == 0 {
			return Entity{}, fmt.Errorf("property %q: empty value list", name)
		}
		values := make([]Value, len(elems))
		for i, elem := range elems {
			v, err := UnmarshalValue(elem)
			if err != nil {
				return Entity{}, fmt.Errorf("property %q[%d]: %w", name, i, err)
			}
			values[i] = v
		}
		e.Properties[name] = values
	}
	return e, nil
}

// UnmarshalValue decodes one value in record form.
// Bare JSON numbers must be integers; floats use the {"float":...} form.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case 'n':
		return Null{}, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		if rawFloat, ok := obj["float"]; ok && len(obj) == 1 {
			f, err := strconv.ParseFloat(string(bytes.TrimSpace(rawFloat)), 64)
			if err != nil {
				return nil, fmt.Errorf("float value: %w", err)
			}
			return Float(f), nil
		}
		if rawKey, ok := obj["key"]; ok && len(obj) == 1 {
			return decodeKeyPath(rawKey)
		}
		return nil, fmt.Errorf("unknown tagged value %s", string(data))
	default:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bare numbers must be int64 (wrap floats as {\"float\":...}): %s", string(data))
		}
		return Int(n), nil
	}
}

func decodeKeyPath(data []byte) (Key, error) {
	var elems [][]json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return Key{}, err
	}
	if len(elems) == 0 {
		return Key{}, fmt.Errorf("key has no path")
	}

	parts := make([]any, 0, len(elems)*2)
	for i, elem := range elems {
		if len(elem) != 2 {
			return Key{}, fmt.Errorf("path element %d: want [kind, id]", i)
		}
		var kind string
		if err := json.Unmarshal(elem[0], &kind); err != nil {
			return Key{}, fmt.Errorf("path element %d kind: %w", i, err)
		}
		parts = append(parts, kind)

		idOrName := bytes.TrimSpace(elem[1])
		if len(idOrName) > 0 && idOrName[0] == '"' {
			var name string
			if err := json.Unmarshal(idOrName, &name); err != nil {
				return Key{}, fmt.Errorf("path element %d name: %w", i, err)
			}
			parts = append(parts, name)
			continue
		}
		id, err := strconv.ParseInt(string(idOrName), 10, 64)
		if err != nil {
			return Key{}, fmt.Errorf("path element %d id: %w", i, err)
		}
		parts = append(parts, id)
	}
	return NewKey(parts...)
}
