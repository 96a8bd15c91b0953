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

// Package route resolves (method, path) pairs against registered path
// patterns.
//
// Patterns are sequences of literal segments and typed parameters written
// as {name:type}, e.g. /items/{item_id:int} or /files/{rest:path}. The
// registry is built single-threaded and sealed before serving; after Seal
// lookups are lock-free and cost is proportional to the path segment count,
// independent of how many routes are registered.
package route

import (
	"fmt"
	"strings"
)

// ParamType is the declared type of a dynamic path segment. The matcher
// captures raw strings regardless of type; the annotation drives conflict
// detection at registration and type coercion downstream.
type ParamType uint8

const (
	TypeStr ParamType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeUUID
	// TypePath is the catch-all type. A {name:path} segment consumes the
	// rest of the path, slashes included, and must be the last segment.
	TypePath
)

var paramTypeNames = map[string]ParamType{
	"str":   TypeStr,
	"int":   TypeInt,
	"float": TypeFloat,
	"bool":  TypeBool,
	"uuid":  TypeUUID,
	"path":  TypePath,
}

func (t ParamType) String() string {
	switch t {
	case TypeStr:
		return "str"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeUUID:
		return "uuid"
	case TypePath:
		return "path"
	default:
		return fmt.Sprintf("ParamType(%d)", t)
	}
}

// SegmentKind discriminates the three pattern segment shapes.
type SegmentKind uint8

const (
	SegmentLiteral SegmentKind = iota
	SegmentParam
	SegmentWildcard
)

// Segment is one element of a parsed pattern.
type Segment struct {
	Kind SegmentKind
	// Literal text for SegmentLiteral; parameter name otherwise.
	Value string
	// Type for SegmentParam. SegmentWildcard is always TypePath.
	Type ParamType
}

// Route is an immutable registered route. Handler is an opaque identifier
// owned by the caller; the registry never inspects it.
type Route struct {
	Method   string
	Pattern  string
	Segments []Segment
	Handler  any
}

// ParamNames returns the parameter names in pattern order.
func (r *Route) ParamNames() []string {
	var names []string
	for _, s := range r.Segments {
		if s.Kind != SegmentLiteral {
			names = append(names, s.Value)
		}
	}
	return names
}

// ParamTypeOf reports the declared type of the named path parameter.
func (r *Route) ParamTypeOf(name string) (ParamType, bool) {
	for _, s := range r.Segments {
		if s.Kind != SegmentLiteral && s.Value == name {
			if s.Kind == SegmentWildcard {
				return TypePath, true
			}
			return s.Type, true
		}
	}
	return 0, false
}

// parsePattern splits a pattern into segments, validating parameter syntax.
// Every parameter needs an explicit type annotation and a wildcard may only
// appear as the final segment.
func parsePattern(pattern string) ([]Segment, error) {
	if pattern == "" || pattern[0] != '/' {
		return nil, &MalformedPatternError{Pattern: pattern, Reason: "must begin with '/'"}
	}
	if pattern == "/" {
		return nil, nil
	}

	parts := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	segments := make([]Segment, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for i, part := range parts {
		if part == "" {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: "empty segment"}
		}

		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("stray brace in segment %q", part)}
			}
			segments = append(segments, Segment{Kind: SegmentLiteral, Value: part})
			continue
		}

		if !strings.HasSuffix(part, "}") {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("unterminated parameter %q", part)}
		}

		name, typeName, ok := strings.Cut(part[1:len(part)-1], ":")
		if !ok {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("parameter %q lacks a type annotation", part)}
		}
		if !validParamName(name) {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("invalid parameter name %q", name)}
		}
		typ, known := paramTypeNames[typeName]
		if !known {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("unknown parameter type %q", typeName)}
		}
		if _, dup := seen[name]; dup {
			return nil, &MalformedPatternError{Pattern: pattern, Reason: fmt.Sprintf("duplicate parameter name %q", name)}
		}
		seen[name] = struct{}{}

		if typ == TypePath {
			if i != len(parts)-1 {
				return nil, &MalformedPatternError{Pattern: pattern, Reason: "wildcard segment must be terminal"}
			}
			segments = append(segments, Segment{Kind: SegmentWildcard, Value: name, Type: TypePath})
			continue
		}

		segments = append(segments, Segment{Kind: SegmentParam, Value: name, Type: typ})
	}

	return segments, nil
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
