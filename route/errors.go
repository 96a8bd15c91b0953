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

package route

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registration and matching.
var (
	// ErrSealed is returned by Add after Seal has been called.
	ErrSealed = errors.New("route: registry is sealed")

	// ErrNotFound is returned by Match when no registered pattern covers
	// the path.
	ErrNotFound = errors.New("route: not found")
)

// MalformedPatternError reports a pattern that cannot be registered:
// a parameter without a type annotation, an unknown type, a duplicate
// parameter name, or a wildcard in a non-terminal position.
type MalformedPatternError struct {
	Pattern string
	Reason  string
}

func (e *MalformedPatternError) Error() string {
	return fmt.Sprintf("route: malformed pattern %q: %s", e.Pattern, e.Reason)
}

// ConflictError reports a registration that is indistinguishable from, or
// ambiguous with, an existing route. Conflicts are rejected at registration
// so matching never has to resolve ambiguity at request time.
type ConflictError struct {
	Method   string
	Pattern  string
	Existing string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("route: %s %s conflicts with %s: %s", e.Method, e.Pattern, e.Existing, e.Reason)
}

// MethodNotAllowedError is returned by Match when the path is registered but
// not for the requested method. Allow lists the methods that do match,
// sorted, ready for an Allow response header.
type MethodNotAllowedError struct {
	Method string
	Allow  []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("route: method %s not allowed (allow: %s)", e.Method, strings.Join(e.Allow, ", "))
}
