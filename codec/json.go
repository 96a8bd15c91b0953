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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Encode produces the deterministic JSON encoding of a value tree.
//
// Extension kinds encode as their canonical strings (RFC 3339 timestamp,
// canonical UUID, base64 blob), object members encode in insertion order,
// so encoding the same tree always yields identical bytes.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if err := encodeJSONFloat(buf, v.f); err != nil {
			return err
		}
	case KindString:
		encodeJSONString(buf, v.s)
	case KindTime, KindUUID, KindBytes:
		s, _ := v.CanonicalString()
		encodeJSONString(buf, s)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeJSONString(buf, m.Key)
			buf.WriteByte(':')
			if err := encodeJSON(buf, m.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: kind %v", ErrUnsupportedValue, v.Kind())
	}
	return nil
}

func encodeJSONFloat(buf *bytes.Buffer, f float64) error {
	// JSON has no representation for non-finite numbers.
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: non-finite float", ErrUnsupportedValue)
	}
	buf.Write(b)
	return nil
}

func encodeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail; reuse its escaping rules.
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// decodeJSON parses a JSON body into a value tree via the token stream,
// enforcing depth and field limits as tokens arrive. Oversized or overly
// nested input fails before the structure materializes.
func decodeJSON(r io.Reader, limits Limits) (Value, error) {
	dec := json.NewDecoder(newLimitedReader(r, limits.MaxBodySize))
	dec.UseNumber()

	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}
	v, err := decodeJSONValue(dec, limits.MaxDepth, cnt)
	if err != nil {
		return Value{}, mapJSONError(err, dec)
	}

	// A body must contain exactly one JSON value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var lim *LimitError
		if errors.As(err, &lim) {
			return Value{}, lim
		}
		return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "trailing data after JSON value"}
	}

	return v, nil
}

func decodeJSONValue(dec *json.Decoder, depth int, cnt *counter) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, &SyntaxError{Offset: -1, Msg: "unexpected end of input"}
		}
		return Value{}, err
	}
	return decodeJSONToken(dec, tok, depth, cnt)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token, depth int, cnt *counter) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '{':
			return decodeJSONObject(dec, depth-1, cnt)
		case '[':
			return decodeJSONArray(dec, depth-1, cnt)
		default:
			return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "unexpected " + t.String()}
		}
	default:
		return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("unexpected token %v", tok)}
	}
}

func decodeJSONObject(dec *json.Decoder, depth int, cnt *counter) (Value, error) {
	if depth < 0 {
		return Value{}, cnt.depthExceeded()
	}

	var members []Member
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Value{}, &SyntaxError{Offset: -1, Msg: "unterminated object"}
			}
			return Value{}, err
		}

		if d, ok := tok.(json.Delim); ok && d == '}' {
			return Object(members...), nil
		}

		key, ok := tok.(string)
		if !ok {
			return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "object key is not a string"}
		}
		if err := cnt.add(); err != nil {
			return Value{}, err
		}

		val, err := decodeJSONValue(dec, depth, cnt)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})
	}
}

func decodeJSONArray(dec *json.Decoder, depth int, cnt *counter) (Value, error) {
	if depth < 0 {
		return Value{}, cnt.depthExceeded()
	}

	var elems []Value
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Value{}, &SyntaxError{Offset: -1, Msg: "unterminated array"}
			}
			return Value{}, err
		}

		if d, ok := tok.(json.Delim); ok && d == ']' {
			return Array(elems...), nil
		}

		if err := cnt.add(); err != nil {
			return Value{}, err
		}
		val, err := decodeJSONToken(dec, tok, depth, cnt)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, val)
	}
}

// numberValue keeps integers exact and falls back to float64 for the rest.
func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, &SyntaxError{Offset: -1, Msg: "invalid number " + s, Err: err}
	}
	return Float(f), nil
}

// mapJSONError converts json package errors to the codec error taxonomy,
// passing LimitError through untouched.
func mapJSONError(err error, dec *json.Decoder) error {
	var lim *LimitError
	if errors.As(err, &lim) {
		return lim
	}
	var syn *SyntaxError
	if errors.As(err, &syn) {
		return syn
	}

	var jsonSyn *json.SyntaxError
	if errors.As(err, &jsonSyn) {
		return &SyntaxError{Offset: jsonSyn.Offset, Msg: jsonSyn.Error(), Err: err}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &SyntaxError{Offset: dec.InputOffset(), Msg: "unexpected end of input", Err: err}
	}
	return &SyntaxError{Offset: -1, Msg: err.Error(), Err: err}
}
