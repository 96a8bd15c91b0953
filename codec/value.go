// Copyright 2025 The Pathway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codec

import (
	"bytes"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the variant held by a [Value].
type Kind int

const (
	// KindNull is the null value.
	KindNull Kind = iota

	// KindBool is a boolean.
	KindBool

	// KindInt is a 64-bit signed integer.
	KindInt

	// KindFloat is a 64-bit float.
	KindFloat

	// KindString is a UTF-8 string.
	KindString

	// KindArray is an ordered sequence of values.
	KindArray

	// KindObject is a mapping with insertion-ordered keys.
	KindObject

	// KindTime is a timestamp extension value.
	// It encodes as an RFC 3339 string in textual codecs.
	KindTime

	// KindUUID is a unique-identifier extension value.
	// It encodes as the canonical 36-character string.
	KindUUID

	// KindBytes is a binary blob extension value.
	// It encodes as standard base64 text in textual codecs.
	KindBytes
)

// String returns the kind name used in error messages.
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object. Objects preserve insertion
// order so encoding is deterministic.
type Member struct {
	Key   string
	Value Value
}

// Value is the tagged value tree produced by decoding and consumed by
// encoding. The zero Value is null.
//
// Value is immutable by convention: accessors return copies of scalar
// payloads, and the engine never mutates a decoded tree.
type Value struct {
	kind Kind

	b   bool
	i   int64
	f   float64
	s   string
	t   time.Time
	u   uuid.UUID
	raw []byte

	arr []Value
	obj []Member
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns a sequence value.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Object returns a mapping value with the given ordered members.
func Object(members ...Member) Value { return Value{kind: KindObject, obj: members} }

// Time returns a timestamp extension value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// UUID returns a unique-identifier extension value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// Bytes returns a binary blob extension value. The slice is not copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolVal returns the boolean payload. The second result is false when the
// value is not a boolean.
func (v Value) BoolVal() (bool, bool) { return v.b, v.kind == KindBool }

// IntVal returns the integer payload.
func (v Value) IntVal() (int64, bool) { return v.i, v.kind == KindInt }

// FloatVal returns the float payload. Integers are widened so numeric
// consumers can treat both kinds uniformly.
func (v Value) FloatVal() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// StringVal returns the string payload.
func (v Value) StringVal() (string, bool) { return v.s, v.kind == KindString }

// TimeVal returns the timestamp payload.
func (v Value) TimeVal() (time.Time, bool) { return v.t, v.kind == KindTime }

// UUIDVal returns the unique-identifier payload.
func (v Value) UUIDVal() (uuid.UUID, bool) { return v.u, v.kind == KindUUID }

// BytesVal returns the binary payload.
func (v Value) BytesVal() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// Elems returns the elements of an array value, or nil.
func (v Value) Elems() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Members returns the ordered members of an object value, or nil.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Get returns the member value for key in an object. The second result is
// false when the value is not an object or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of elements or members, or zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// CanonicalString returns the textual encoding of an extension value: the
// RFC 3339 form of a timestamp, the canonical form of a UUID, or the base64
// form of a binary blob. The second result is false for non-extension kinds.
func (v Value) CanonicalString() (string, bool) {
	switch v.kind {
	case KindTime:
		return v.t.Format(time.RFC3339Nano), true
	case KindUUID:
		return v.u.String(), true
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.raw), true
	default:
		return "", false
	}
}

// Equal reports whether two trees are equivalent.
//
// Extension kinds compare equal to their canonical string encoding, so a
// tree that passed through a textual codec (which has no native timestamp or
// UUID representation) still compares equal to the original. Int and Float
// compare equal when they represent the same number.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return equalMixed(v, o) || equalMixed(o, v)
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindTime:
		return v.t.Equal(o.t)
	case KindUUID:
		return v.u == o.u
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		// Key order is not significant for equivalence.
		for _, m := range v.obj {
			ov, ok := o.Get(m.Key)
			if !ok || !m.Value.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// equalMixed handles cross-kind equivalence: an extension value against its
// canonical string, and Int against Float.
func equalMixed(a, b Value) bool {
	switch {
	case a.kind == KindString:
		if cs, ok := b.CanonicalString(); ok {
			if b.kind == KindTime {
				// Compare as instants so "Z" vs "+00:00" spellings agree.
				t, err := time.Parse(time.RFC3339Nano, a.s)
				return err == nil && t.Equal(b.t)
			}
			return a.s == cs
		}
		return false
	case a.kind == KindInt && b.kind == KindFloat:
		return float64(a.i) == b.f
	default:
		return false
	}
}
