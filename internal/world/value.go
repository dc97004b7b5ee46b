package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueType tags the closed set of value shapes that cross the script/host
// boundary.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeTable
	TypeDict
)

// Value is the sole data type passed between scripts and the host. It is a
// closed tagged union; only the field selected by Type is meaningful.
// Table preserves arbitrary key/value pairs in order (the shape Lua tables
// convert to); Dict is a string-keyed map for JSON compatibility.
type Value struct {
	Type  ValueType
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Table []Pair
	Dict  map[string]Value
}

type Pair struct {
	Key Value
	Val Value
}

func Nil() Value                   { return Value{Type: TypeNil} }
func Boolean(b bool) Value         { return Value{Type: TypeBool, Bool: b} }
func Integer(i int64) Value        { return Value{Type: TypeInt, Int: i} }
func Number(f float64) Value       { return Value{Type: TypeFloat, Float: f} }
func Str(s string) Value           { return Value{Type: TypeString, Str: s} }
func TableOf(pairs []Pair) Value   { return Value{Type: TypeTable, Table: pairs} }
func DictOf(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Type: TypeDict, Dict: m}
}

func (v Value) IsNil() bool { return v.Type == TypeNil }

// AsString returns the string payload, or "" for other types.
func (v Value) AsString() (string, bool) {
	if v.Type == TypeString {
		return v.Str, true
	}
	return "", false
}

// Get looks a string key up in a Dict or Table value.
func (v Value) Get(key string) Value {
	switch v.Type {
	case TypeDict:
		return v.Dict[key]
	case TypeTable:
		for _, p := range v.Table {
			if p.Key.Type == TypeString && p.Key.Str == key {
				return p.Val
			}
		}
	}
	return Nil()
}

func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeNil:
		return true
	case TypeBool:
		return v.Bool == o.Bool
	case TypeInt:
		return v.Int == o.Int
	case TypeFloat:
		return v.Float == o.Float
	case TypeString:
		return v.Str == o.Str
	case TypeTable:
		if len(v.Table) != len(o.Table) {
			return false
		}
		for i := range v.Table {
			if !v.Table[i].Key.Equal(o.Table[i].Key) || !v.Table[i].Val.Equal(o.Table[i].Val) {
				return false
			}
		}
		return true
	case TypeDict:
		if len(v.Dict) != len(o.Dict) {
			return false
		}
		for k, val := range v.Dict {
			ov, ok := o.Dict[k]
			if !ok || !val.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON keeps values JSON-compatible: nil->null, dicts->objects,
// tables->arrays of [key, value] pairs, integral floats stay floats.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case TypeNil:
		return []byte("null"), nil
	case TypeBool:
		return json.Marshal(v.Bool)
	case TypeInt:
		return json.Marshal(v.Int)
	case TypeFloat:
		// Keep a decimal point on integral floats so they stay floats on
		// the way back in.
		if IsIntegral(v.Float) && math.Abs(v.Float) < 1e15 {
			return []byte(strconv.FormatFloat(v.Float, 'f', 1, 64)), nil
		}
		return json.Marshal(v.Float)
	case TypeString:
		return json.Marshal(v.Str)
	case TypeTable:
		out := make([][2]Value, len(v.Table))
		for i, p := range v.Table {
			out[i] = [2]Value{p.Key, p.Val}
		}
		return json.Marshal(out)
	case TypeDict:
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, _ := json.Marshal(k)
			vb, err := json.Marshal(v.Dict[k])
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf = append(buf, vb...)
		}
		return append(buf, '}'), nil
	}
	return nil, fmt.Errorf("unknown value type %d", v.Type)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := fromJSONAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func fromJSONAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Nil(), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Nil(), err
		}
		return Number(f), nil
	case string:
		return Str(t), nil
	case []any:
		pairs := make([]Pair, 0, len(t))
		for _, el := range t {
			kv, ok := el.([]any)
			if !ok || len(kv) != 2 {
				return Nil(), fmt.Errorf("table entry is not a [key, value] pair")
			}
			k, err := fromJSONAny(kv[0])
			if err != nil {
				return Nil(), err
			}
			v, err := fromJSONAny(kv[1])
			if err != nil {
				return Nil(), err
			}
			pairs = append(pairs, Pair{Key: k, Val: v})
		}
		return TableOf(pairs), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, el := range t {
			v, err := fromJSONAny(el)
			if err != nil {
				return Nil(), err
			}
			m[k] = v
		}
		return DictOf(m), nil
	}
	return Nil(), fmt.Errorf("unsupported JSON value %T", raw)
}

// IsIntegral reports whether a float carries an exact integer value.
func IsIntegral(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f)
}
