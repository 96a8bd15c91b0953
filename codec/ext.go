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
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// The msgpack, yaml, and toml decoders unmarshal generically and apply
// the depth and field limits while converting the decoded tree. Memory
// during unmarshal is bounded by MaxBodySize, which readBody enforces as
// bytes arrive.

// decodeMsgpack decodes an application/msgpack body. Binary payloads and
// timestamps survive as first-class values instead of strings.
func decodeMsgpack(r io.Reader, limits Limits) (Value, error) {
	body, err := readBody(r, limits)
	if err != nil {
		return Value{}, err
	}
	var raw any
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		return Value{}, &SyntaxError{Offset: -1, Msg: "invalid msgpack body: " + err.Error(), Err: err}
	}
	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}
	return convertAny(raw, limits.MaxDepth, cnt)
}

// decodeYAML decodes an application/yaml body.
func decodeYAML(r io.Reader, limits Limits) (Value, error) {
	body, err := readBody(r, limits)
	if err != nil {
		return Value{}, err
	}
	var raw any
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return Value{}, &SyntaxError{Offset: -1, Msg: "invalid yaml body: " + err.Error(), Err: err}
	}
	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}
	return convertAny(raw, limits.MaxDepth, cnt)
}

// decodeTOML decodes an application/toml body. TOML documents are always
// tables, so the result is always an object.
func decodeTOML(r io.Reader, limits Limits) (Value, error) {
	body, err := readBody(r, limits)
	if err != nil {
		return Value{}, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(body, &raw); err != nil {
		return Value{}, &SyntaxError{Offset: -1, Msg: "invalid toml body: " + err.Error(), Err: err}
	}
	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}
	return convertAny(raw, limits.MaxDepth, cnt)
}

func readBody(r io.Reader, limits Limits) ([]byte, error) {
	body, err := io.ReadAll(newLimitedReader(r, limits.MaxBodySize))
	if err != nil {
		var lim *LimitError
		if errors.As(err, &lim) {
			return nil, lim
		}
		return nil, &SyntaxError{Offset: -1, Msg: "reading body: " + err.Error(), Err: err}
	}
	return body, nil
}

// convertAny maps a generically decoded document onto the value tree,
// enforcing depth and field limits as it walks. Depth counts down; the
// limits apply identically across every body format.
func convertAny(raw any, depth int, cnt *counter) (Value, error) {
	if depth < 0 {
		return Value{}, cnt.depthExceeded()
	}

	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return uintValue(uint64(v))
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return uintValue(v)
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return String(v), nil
	case []byte:
		return Bytes(v), nil
	case time.Time:
		return Time(v), nil
	case []any:
		elems := make([]Value, len(v))
		for i, e := range v {
			if err := cnt.add(); err != nil {
				return Value{}, err
			}
			ev, err := convertAny(e, depth-1, cnt)
			if err != nil {
				return Value{}, err
			}
			elems[i] = ev
		}
		return Array(elems...), nil
	case map[string]any:
		members := make([]Member, 0, len(v))
		for _, key := range sortedMapKeys(v) {
			if err := cnt.add(); err != nil {
				return Value{}, err
			}
			mv, err := convertAny(v[key], depth-1, cnt)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: key, Value: mv})
		}
		return Object(members...), nil
	case map[any]any:
		members := make([]Member, 0, len(v))
		keys := make([]string, 0, len(v))
		byKey := make(map[string]any, len(v))
		for k, mv := range v {
			ks, ok := k.(string)
			if !ok {
				return Value{}, &SyntaxError{Offset: -1, Msg: fmt.Sprintf("non-string object key %v", k)}
			}
			keys = append(keys, ks)
			byKey[ks] = mv
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := cnt.add(); err != nil {
				return Value{}, err
			}
			mv, err := convertAny(byKey[key], depth-1, cnt)
			if err != nil {
				return Value{}, err
			}
			members = append(members, Member{Key: key, Value: mv})
		}
		return Object(members...), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func uintValue(v uint64) (Value, error) {
	if v > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: unsigned integer %d overflows int64", ErrUnsupportedValue, v)
	}
	return Int(int64(v)), nil
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// EncodeMsgpack serializes a value as msgpack. Timestamps and binary blobs
// keep their native representations, so a msgpack round trip is exact where
// a JSON one falls back to canonical strings.
func EncodeMsgpack(v Value) ([]byte, error) {
	raw, err := toAny(v)
	if err != nil {
		return nil, err
	}
	out, err := msgpack.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding msgpack: %w", err)
	}
	return out, nil
}

// toAny lowers a value onto the generic Go types msgpack serializes
// natively. Object member order is lost; msgpack maps are unordered.
func toAny(v Value) (any, error) {
	switch v.Kind() {
	case KindNull:
		return nil, nil
	case KindBool:
		b, _ := v.BoolVal()
		return b, nil
	case KindInt:
		i, _ := v.IntVal()
		return i, nil
	case KindFloat:
		f, _ := v.FloatVal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, f)
		}
		return f, nil
	case KindString:
		s, _ := v.StringVal()
		return s, nil
	case KindTime:
		t, _ := v.TimeVal()
		return t, nil
	case KindUUID:
		s, _ := v.CanonicalString()
		return s, nil
	case KindBytes:
		b, _ := v.BytesVal()
		return b, nil
	case KindArray:
		elems := v.Elems()
		out := make([]any, len(elems))
		for i, e := range elems {
			ev, err := toAny(e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, v.Len())
		for _, m := range v.Members() {
			mv, err := toAny(m.Value)
			if err != nil {
				return nil, err
			}
			out[m.Key] = mv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: kind %v", ErrUnsupportedValue, v.Kind())
	}
}
