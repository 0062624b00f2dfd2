// Package value provides a tagged-union value tree for normalized event
// payloads, plus a parser for the foreign-runtime nested-text encoding that
// item collections arrive in (see parse.go).
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindList:
		return "LIST"
	case KindMap:
		return "MAP"
	default:
		return "UNKNOWN"
	}
}

// Entry is a single key/value pair in a map Value. Entries keep insertion
// order; key order is part of the output contract.
type Entry struct {
	Key string
	Val Value
}

// Value is a tagged union over null, int, float, string, list, and map.
// Consumers must branch on Kind before reading the variant accessors.
type Value struct {
	kind    Kind
	i       int64
	f       float64
	s       string
	list    []Value
	entries []Entry
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List returns a list Value holding the given elements in order.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// Map returns a map Value holding the given entries in order.
func Map(entries ...Entry) Value { return Value{kind: KindMap, entries: entries} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IntVal returns the integer variant. Valid only when Kind is KindInt.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float variant. Valid only when Kind is KindFloat.
func (v Value) FloatVal() float64 { return v.f }

// StringVal returns the string variant. Valid only when Kind is KindString.
func (v Value) StringVal() string { return v.s }

// Elems returns the list elements. Valid only when Kind is KindList.
func (v Value) Elems() []Value { return v.list }

// Entries returns the map entries in insertion order. Valid only when Kind is KindMap.
func (v Value) Entries() []Entry { return v.entries }

// Get returns the value for key in a map Value.
// The second return is false when the key is absent or v is not a map.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.entries {
		if e.Key == key {
			return e.Val, true
		}
	}
	return Value{}, false
}

// Len returns the number of elements or entries for lists and maps, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.entries)
	default:
		return 0
	}
}

// Equal reports structural equality, including key and element order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.entries) != len(o.entries) {
			return false
		}
		for i := range v.entries {
			if v.entries[i].Key != o.entries[i].Key || !v.entries[i].Val.Equal(o.entries[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the Value as JSON, preserving map key order and list
// element order. Identical trees always produce identical bytes.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b, err := json.Marshal(v.f)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, el := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := el.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := e.Val.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: cannot marshal kind %d", v.kind)
	}
	return nil
}

// String renders the Value as compact JSON for logging and debugging.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<value:%v>", err)
	}
	return string(b)
}
