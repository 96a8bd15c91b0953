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

// Package codec decodes request bodies into a format-independent value tree
// and serializes value trees back out.
//
// Decoding enforces resource limits (body size, nesting depth, field count)
// while streaming, before any unbounded structure is materialized, so
// adversarial payloads fail fast instead of exhausting memory. Encoding is
// deterministic: the same value tree always yields the same bytes.
package codec

import (
	"fmt"
	"io"
)

// Media types understood by [Decode].
const (
	MediaJSON      = "application/json"
	MediaForm      = "application/x-www-form-urlencoded"
	MediaMultipart = "multipart/form-data"
	MediaMsgpack   = "application/msgpack"
	MediaYAML      = "application/yaml"
	MediaTOML      = "application/toml"
)

// Decode parses a request body according to its Content-Type header value.
// The media type match is case-insensitive and ignores parameters other
// than the multipart boundary. An unrecognized media type yields
// [ErrUnsupportedContentType].
func Decode(r io.Reader, contentType string, limits Limits) (Value, error) {
	limits = limits.normalized()
	mediaType, boundary := parseContentType(contentType)
	switch mediaType {
	case MediaJSON:
		return decodeJSON(r, limits)
	case MediaForm:
		return decodeForm(r, limits)
	case MediaMultipart:
		return decodeMultipart(r, boundary, limits)
	case MediaMsgpack, "application/x-msgpack":
		return decodeMsgpack(r, limits)
	case MediaYAML, "application/x-yaml", "text/yaml":
		return decodeYAML(r, limits)
	case MediaTOML:
		return decodeTOML(r, limits)
	default:
		return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mediaType)
	}
}
