package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is one field of a stored record, or one bound statement parameter
// as it travels on the wire. The set of implementations is closed: Null,
// String, Int, Bool, Array and Object. Records carry no floating point, so
// two documents with equal fields always compare and hash equal.
type Value interface {
	irValue()
}

// Null is an explicitly null field, distinct from an absent one.
type Null struct{}

// String is a text field; also the element type of string[] parameters.
type String string

// Int carries both int and long parameters. The protocol's int range is
// enforced by queryir, not here.
type Int int64

// Bool is a boolean field.
type Bool bool

// Array is a list field. Descriptors only bind string lists, but stored
// documents may nest any Value.
type Array []Value

// Object is a whole record, or a nested document inside one.
type Object map[string]Value

func (Null) irValue()   {}
func (String) irValue() {}
func (Int) irValue()    {}
func (Bool) irValue()   {}
func (Array) irValue()  {}
func (Object) irValue() {}

// SortedKeys returns the field names ordered by UTF-16 code units, the
// order canonical record encoding requires.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}

// MarshalValue encodes v as JSON with object fields in SortedKeys order.
// A nil Value encodes as null.
func MarshalValue(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler.
func (obj Object) MarshalJSON() ([]byte, error) { return MarshalValue(obj) }

// MarshalJSON implements json.Marshaler.
func (arr Array) MarshalJSON() ([]byte, error) { return MarshalValue(arr) }

func appendValue(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		return appendJSON(buf, string(val))
	case Int:
		return appendJSON(buf, int64(val))
	case Bool:
		return appendJSON(buf, bool(val))
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendValue(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, k); err != nil {
				return fmt.Errorf("field name %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := appendValue(buf, val[k]); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
	return nil
}

func appendJSON(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// UnmarshalValue decodes one JSON value. null becomes Null; a number with
// a fraction or exponent is an error, as is one outside int64.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromJSON(raw)
}

// UnmarshalObject decodes a stored document.
func UnmarshalObject(data []byte) (Object, error) {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves obj nil.
func (obj *Object) UnmarshalJSON(data []byte) error {
	o, err := unmarshalAs[Object](data, "object")
	if err != nil {
		return err
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves arr nil.
func (arr *Array) UnmarshalJSON(data []byte) error {
	a, err := unmarshalAs[Array](data, "array")
	if err != nil {
		return err
	}
	*arr = a
	return nil
}

func unmarshalAs[T Object | Array](data []byte, what string) (T, error) {
	var zero T
	v, err := UnmarshalValue(data)
	if err != nil {
		return zero, err
	}
	if _, isNull := v.(Null); isNull {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("expected JSON %s, got %T", what, v)
	}
	return t, nil
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return nil, fmt.Errorf("floats are not allowed in records: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
