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
)

// Static errors for decode operations.
var (
	// ErrSyntax is the sentinel wrapped by every [SyntaxError].
	ErrSyntax = errors.New("malformed body")

	// ErrLimitExceeded is the sentinel wrapped by every [LimitError].
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrUnsupportedContentType indicates the content type has no decoder.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrUnsupportedValue indicates a decoded value has no Value representation.
	ErrUnsupportedValue = errors.New("unsupported value")
)

// SyntaxError reports malformed input. Offset is the byte position where
// the decoder gave up, when the underlying parser reports one (-1 otherwise).
type SyntaxError struct {
	Err    error
	Msg    string
	Offset int64
}

// Error returns a formatted error message.
func (e *SyntaxError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("malformed body at offset %d: %s", e.Offset, e.Msg)
	}
	return "malformed body: " + e.Msg
}

// Unwrap returns [ErrSyntax] plus the parser error for errors.Is/As.
func (e *SyntaxError) Unwrap() []error { return []error{ErrSyntax, e.Err} }

// HTTPStatus maps syntax errors to 400 Bad Request.
func (e *SyntaxError) HTTPStatus() int { return 400 }

// Code returns a stable machine-readable code.
func (e *SyntaxError) Code() string { return "malformed_body" }

// LimitKind names the configured limit a [LimitError] refers to.
type LimitKind string

const (
	// LimitBodySize is the maximum body byte size.
	LimitBodySize LimitKind = "body_size"
	// LimitDepth is the maximum nesting depth.
	LimitDepth LimitKind = "depth"
	// LimitFields is the maximum field or element count.
	LimitFields LimitKind = "fields"
)

// LimitError reports input that exceeds a configured decode limit. Limits
// are enforced while streaming, before the full structure materializes, so
// the offending input is never held in memory.
type LimitError struct {
	Limit LimitKind
	Max   int64
}

// Error returns a formatted error message.
func (e *LimitError) Error() string {
	return fmt.Sprintf("body exceeds maximum %s (%d)", e.Limit, e.Max)
}

// Unwrap returns [ErrLimitExceeded] for errors.Is compatibility.
func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// HTTPStatus maps limit errors to 400 Bad Request.
func (e *LimitError) HTTPStatus() int { return 400 }

// Code returns a stable machine-readable code.
func (e *LimitError) Code() string { return "limit_exceeded" }
