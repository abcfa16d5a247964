// Package value implements the dynamic, self-describing document type used
// throughout the storage engine to represent rows, query results, patches
// and hook payloads without a fixed Go struct per scheme.
package value

import (
	"fmt"
	"math"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// Pair is one insertion-ordered key/value entry of a dict Value.
type Pair struct {
	Key   string
	Value Value
}

// Value is a tagged union over the document shapes the engine moves between
// the driver, the cursor and scheme hooks: null, bool, i64, f64, string,
// bytes, array and an insertion-ordered dict.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	arr   []Value
	dict  []Pair
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int(v int64) Value          { return Value{kind: KindInt, i: v} }
func Float(v float64) Value      { return Value{kind: KindFloat, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, bytes: v} }
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Dict builds a dict Value from ordered pairs.
func Dict(pairs ...Pair) Value {
	return Value{kind: KindDict, dict: pairs}
}

// NewDict returns an empty, mutable dict Value.
func NewDict() Value {
	return Value{kind: KindDict}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.bytes, v.kind == KindBytes }
func (v Value) AsArray() ([]Value, bool)   { return v.arr, v.kind == KindArray }
func (v Value) AsDict() ([]Pair, bool)     { return v.dict, v.kind == KindDict }

// Get looks up a key in a dict Value. Returns (Null, false) for a missing
// key or a non-dict receiver.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindDict {
		return Null(), false
	}
	for _, p := range v.dict {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Null(), false
}

// Has reports whether a dict Value carries key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Set inserts or overwrites key in a dict Value, preserving first-seen
// insertion order for existing keys and appending new ones.
func (v *Value) Set(key string, val Value) {
	if v.kind != KindDict {
		*v = NewDict()
	}
	for i := range v.dict {
		if v.dict[i].Key == key {
			v.dict[i].Value = val
			return
		}
	}
	v.dict = append(v.dict, Pair{Key: key, Value: val})
}

// Delete removes key from a dict Value, if present.
func (v *Value) Delete(key string) {
	if v.kind != KindDict {
		return
	}
	for i := range v.dict {
		if v.dict[i].Key == key {
			v.dict = append(v.dict[:i], v.dict[i+1:]...)
			return
		}
	}
}

// Keys returns the dict's keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindDict {
		return nil
	}
	keys := make([]string, len(v.dict))
	for i, p := range v.dict {
		keys[i] = p.Key
	}
	return keys
}

// Len reports the number of entries for array/dict kinds, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindDict:
		return len(v.dict)
	default:
		return 0
	}
}

// Append appends an item to an array Value, converting a null receiver to
// an empty array first.
func (v *Value) Append(item Value) {
	if v.kind == KindNull {
		*v = Array()
	}
	v.arr = append(v.arr, item)
}

// Equal reports deep equality: arrays compare element by element in order;
// dict comparison is key-set equality with per-key value equality,
// independent of insertion order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// Numeric cross-kind equality (Int vs Float holding the same value)
		// is intentionally excluded: the engine's column decoding always
		// commits to one kind per field, and a mismatch here is a bug.
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f || (math.IsNaN(a.f) && math.IsNaN(b.f))
	case KindString:
		return a.s == b.s
	case KindBytes:
		return string(a.bytes) == string(b.bytes)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(a.dict) != len(b.dict) {
			return false
		}
		for _, p := range a.dict {
			bv, ok := b.Get(p.Key)
			if !ok || !Equal(p.Value, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug representation; not meant for wire serialisation.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindDict:
		return fmt.Sprintf("dict(%d)", len(v.dict))
	default:
		return "?"
	}
}
