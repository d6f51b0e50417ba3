package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"min int64", Int(-9223372036854775808), "-9223372036854775808"},
		{"bool", Bool(false), "false"},
		{"float", Float(1.5), `{"float":1.5}`},
		{"whole float", Float(2), `{"float":2}`},
		{"key", MustKey("Project", "apollo", "Task", 7), `{"key":[["Project","apollo"],["Task",7]]}`},
		{"empty object", map[string]any{}, "{}"},
		{"value list", []Value{Int(1), String("a")}, `[1,"a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// An escaped backslash followed by the text u2028 stays escaped.
	result, err = MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	result, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejectsBareFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestEncodeDecodeEntity(t *testing.T) {
	e := NewEntity(MustKey("Project", "apollo", "Task", 7))
	e.Set("title", String("ship it"))
	e.Set("tags", String("b"), String("a"))
	e.Set("estimate", Float(2))
	e.Set("done", Bool(false))
	e.Set("owner", MustKey("User", "ada"))
	e.Set("due", Int(3), Null{})

	rec, err := EncodeEntity(e)
	require.NoError(t, err)
	assert.Equal(t,
		`{"key":[["Project","apollo"],["Task",7]],"properties":{"done":[false],"due":[3,null],`+
			`"estimate":[{"float":2}],"owner":[{"key":[["User","ada"]]}],"tags":["b","a"],"title":["ship it"]}}`,
		string(rec))

	decoded, err := DecodeEntity(rec)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestDecodeEntity_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		record string
	}{
		{"not json", `{`},
		{"missing key", `{"properties":{}}`},
		{"empty key path", `{"key":[]}`},
		{"bare float", `{"key":[["Task",1]],"properties":{"x":[1.5]}}`},
		{"empty value list", `{"key":[["Task",1]],"properties":{"x":[]}}`},
		{"unknown tag", `{"key":[["Task",1]],"properties":{"x":[{"blob":"AA=="}]}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEntity(Record(tc.record))
			assert.Error(t, err)
		})
	}
}
