package types

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
)

// ValueKind enumerates the closed set of metadata value shapes
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a metadata value: string, number, bool or list of strings
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// Metadata is the open string-keyed map attached to an entry
type Metadata map[string]Value

func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func ListValue(items ...string) Value {
	return Value{kind: KindList, list: append([]string(nil), items...)}
}

// Kind returns the value's shape; zero Values report 0
func (v Value) Kind() ValueKind { return v.kind }

// Valid reports whether the value was constructed through one of the constructors
func (v Value) Valid() bool { return v.kind >= KindString && v.kind <= KindList }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

// Terms returns the canonical string forms used for filtering and faceting.
// Scalars yield one term, lists yield one term per element.
func (v Value) Terms() []string {
	switch v.kind {
	case KindString:
		return []string{v.str}
	case KindNumber:
		return []string{strconv.FormatFloat(v.num, 'f', -1, 64)}
	case KindBool:
		return []string{strconv.FormatBool(v.b)}
	case KindList:
		return append([]string(nil), v.list...)
	default:
		return nil
	}
}

// MarshalJSON encodes the value as its natural JSON shape
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts strings, numbers, booleans and arrays of strings
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ErrUnsupportedValue is returned for metadata values outside the closed variant
var ErrUnsupportedValue = errors.New("unsupported metadata value")

// ValueOf converts a decoded JSON/YAML scalar or string list into a Value
func ValueOf(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), nil
	case float64:
		return NumberValue(t), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case bool:
		return BoolValue(t), nil
	case []string:
		return ListValue(t...), nil
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return Value{}, ErrUnsupportedValue
			}
			items = append(items, s)
		}
		return ListValue(items...), nil
	default:
		return Value{}, ErrUnsupportedValue
	}
}

// Keys returns the metadata keys in sorted order
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
