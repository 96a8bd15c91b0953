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
	"io"
	"mime/multipart"
	"net/url"
	"slices"
	"strings"
)

// decodeForm parses an application/x-www-form-urlencoded body into an
// object of string values. Repeated keys become arrays, preserving the
// order in which values appeared.
func decodeForm(r io.Reader, limits Limits) (Value, error) {
	body, err := io.ReadAll(newLimitedReader(r, limits.MaxBodySize))
	if err != nil {
		var lim *LimitError
		if errors.As(err, &lim) {
			return Value{}, lim
		}
		return Value{}, &SyntaxError{Offset: -1, Msg: "reading form body: " + err.Error(), Err: err}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Value{}, &SyntaxError{Offset: -1, Msg: "invalid form encoding: " + err.Error(), Err: err}
	}

	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}
	members := make([]Member, 0, len(values))
	// url.Values is a map; sort keys for deterministic member order.
	for _, key := range sortedKeys(values) {
		if err := cnt.add(); err != nil {
			return Value{}, err
		}
		vals := values[key]
		if len(vals) == 1 {
			members = append(members, Member{Key: key, Value: String(vals[0])})
			continue
		}
		elems := make([]Value, len(vals))
		for i, v := range vals {
			elems[i] = String(v)
		}
		members = append(members, Member{Key: key, Value: Array(elems...)})
	}

	return Object(members...), nil
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// decodeMultipart parses a multipart/form-data body part by part. The field
// count limit is enforced per part and the size limit across the whole body,
// so an adversarial stream fails before it is buffered.
//
// Text parts decode as strings; file parts decode as objects
// {filename, content_type, data} with the payload as a binary blob.
func decodeMultipart(r io.Reader, boundary string, limits Limits) (Value, error) {
	if boundary == "" {
		return Value{}, &SyntaxError{Offset: -1, Msg: "multipart body without boundary"}
	}

	mr := multipart.NewReader(newLimitedReader(r, limits.MaxBodySize), boundary)
	cnt := &counter{max: limits.MaxFields, maxDepth: limits.MaxDepth}

	var members []Member
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var lim *LimitError
			if errors.As(err, &lim) {
				return Value{}, lim
			}
			return Value{}, &SyntaxError{Offset: -1, Msg: "invalid multipart body: " + err.Error(), Err: err}
		}

		if err := cnt.add(); err != nil {
			return Value{}, err
		}

		data, err := io.ReadAll(part)
		if err != nil {
			var lim *LimitError
			if errors.As(err, &lim) {
				return Value{}, lim
			}
			return Value{}, &SyntaxError{Offset: -1, Msg: "reading multipart part: " + err.Error(), Err: err}
		}

		name := part.FormName()
		if name == "" {
			return Value{}, &SyntaxError{Offset: -1, Msg: "multipart part without field name"}
		}

		var val Value
		if filename := part.FileName(); filename != "" {
			val = Object(
				Member{Key: "filename", Value: String(filename)},
				Member{Key: "content_type", Value: String(part.Header.Get("Content-Type"))},
				Member{Key: "data", Value: Bytes(data)},
			)
		} else {
			val = String(string(data))
		}

		members = appendFormMember(members, name, val)
	}

	return Object(members...), nil
}

// appendFormMember adds a value under name, promoting repeated fields to an
// array in arrival order.
func appendFormMember(members []Member, name string, val Value) []Member {
	for i, m := range members {
		if m.Key != name {
			continue
		}
		if m.Value.Kind() == KindArray {
			members[i].Value = Array(append(m.Value.Elems(), val)...)
		} else {
			members[i].Value = Array(m.Value, val)
		}
		return members
	}
	return append(members, Member{Key: name, Value: val})
}

// parseContentType splits a Content-Type header into its media type and the
// boundary parameter, tolerating parameters in any order.
func parseContentType(contentType string) (mediaType, boundary string) {
	parts := strings.Split(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if rest, ok := strings.CutPrefix(p, "boundary="); ok {
			boundary = strings.Trim(rest, `"`)
		}
	}
	return mediaType, boundary
}
