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

// Package param declares and enforces request parameter specifications.
//
// A [Spec] describes one parameter: where it comes from, its type, whether
// it is required, its default, and its constraints. Specs are compiled once
// at registration, where inconsistent declarations (a length bound on an
// integer, a schema on a scalar) are rejected outright. Per-request
// validation then evaluates every compiled spec independently and reports
// all violations together, never just the first.
package param

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pathwaykit/pathway/codec"
)

// Source is where a parameter value is read from.
type Source uint8

const (
	SourcePath Source = iota
	SourceQuery
	SourceHeader
	SourceCookie
	SourceBody
)

func (s Source) String() string {
	switch s {
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	case SourceBody:
		return "body"
	default:
		return fmt.Sprintf("Source(%d)", s)
	}
}

// Kind is the declared parameter type.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindUUID
	// KindObject accepts a nested structure from the request body,
	// optionally validated against a JSON Schema.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	case KindUUID:
		return "uuid"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (k Kind) numeric() bool { return k == KindInt || k == KindFloat }

// Constraints restricts the values a parameter accepts. Which fields are
// meaningful depends on the kind; Compile rejects mismatches.
type Constraints struct {
	// Numeric bounds. Gt/Lt are strict, Ge/Le inclusive.
	Gt *float64
	Ge *float64
	Lt *float64
	Le *float64

	// String length bounds, counted in runes.
	MinLen *int
	MaxLen *int

	// Pattern the full string must match (anchoring is the caller's
	// choice, as in most validation DSLs).
	Pattern string

	// Enum is the closed set of accepted string renderings.
	Enum []string

	// Schema is a JSON Schema document applied to object parameters.
	Schema string
}

// Spec declares a single parameter. Immutable once compiled.
type Spec struct {
	Name        string
	In          Source
	Kind        Kind
	Required    bool
	Default     *codec.Value
	Constraints Constraints
}

// Compiled is a validated, ready-to-evaluate spec. Produced by [Spec.Compile]
// during registration; shared read-only across requests afterwards.
type Compiled struct {
	Spec

	pattern *regexp.Regexp
	schema  *jsonschema.Schema
	enum    map[string]struct{}
}

// Compile checks that the declaration is internally consistent and prepares
// the derived matchers. Declarations that can never hold (length bounds on
// numbers, bounds on strings, a schema on a scalar) fail here so that a bad
// spec rejects startup instead of surfacing per request.
func (s Spec) Compile() (*Compiled, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("param: spec without a name")
	}
	c := &Compiled{Spec: s}
	cons := s.Constraints

	hasBounds := cons.Gt != nil || cons.Ge != nil || cons.Lt != nil || cons.Le != nil
	hasLength := cons.MinLen != nil || cons.MaxLen != nil

	if hasBounds && !s.Kind.numeric() {
		return nil, fmt.Errorf("param %q: numeric bounds on %s type", s.Name, s.Kind)
	}
	if hasLength && s.Kind != KindString {
		return nil, fmt.Errorf("param %q: length constraint on %s type", s.Name, s.Kind)
	}
	if cons.Pattern != "" && s.Kind != KindString {
		return nil, fmt.Errorf("param %q: pattern constraint on %s type", s.Name, s.Kind)
	}
	if len(cons.Enum) > 0 && s.Kind != KindString && s.Kind != KindInt {
		return nil, fmt.Errorf("param %q: enum constraint on %s type", s.Name, s.Kind)
	}
	if cons.Schema != "" && s.Kind != KindObject {
		return nil, fmt.Errorf("param %q: schema constraint on %s type", s.Name, s.Kind)
	}
	if s.Kind == KindObject && s.In != SourceBody {
		return nil, fmt.Errorf("param %q: object parameters must be body-sourced", s.Name)
	}
	if cons.MinLen != nil && *cons.MinLen < 0 {
		return nil, fmt.Errorf("param %q: negative minimum length", s.Name)
	}
	if cons.MinLen != nil && cons.MaxLen != nil && *cons.MinLen > *cons.MaxLen {
		return nil, fmt.Errorf("param %q: minimum length exceeds maximum", s.Name)
	}

	if cons.Pattern != "" {
		re, err := regexp.Compile(cons.Pattern)
		if err != nil {
			return nil, fmt.Errorf("param %q: invalid pattern: %w", s.Name, err)
		}
		c.pattern = re
	}

	if len(cons.Enum) > 0 {
		c.enum = make(map[string]struct{}, len(cons.Enum))
		for _, e := range cons.Enum {
			c.enum[e] = struct{}{}
		}
	}

	if cons.Schema != "" {
		schema, err := compileSchema(s.Name, cons.Schema)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", s.Name, err)
		}
		c.schema = schema
	}

	if s.Default != nil {
		if err := checkDefaultKind(s.Kind, *s.Default); err != nil {
			return nil, fmt.Errorf("param %q: %w", s.Name, err)
		}
		if s.Required {
			return nil, fmt.Errorf("param %q: required parameter cannot carry a default", s.Name)
		}
	}

	return c, nil
}

func checkDefaultKind(kind Kind, def codec.Value) error {
	ok := false
	switch kind {
	case KindString:
		_, ok = def.StringVal()
	case KindInt:
		_, ok = def.IntVal()
	case KindFloat:
		_, ok = def.FloatVal()
	case KindBool:
		_, ok = def.BoolVal()
	case KindUUID:
		_, ok = def.UUIDVal()
	case KindObject:
		ok = def.Kind() == codec.KindObject
	}
	if !ok {
		return fmt.Errorf("default value kind %s does not match declared type %s", def.Kind(), kind)
	}
	return nil
}

// CompileAll compiles a spec list and checks name uniqueness.
func CompileAll(specs []Spec) ([]*Compiled, error) {
	compiled := make([]*Compiled, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("param: duplicate parameter name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		c, err := s.Compile()
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

// compileSchema compiles a JSON Schema document with format and content
// assertions enabled.
func compileSchema(name, schemaJSON string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()
	compiler.AssertContent()

	url := "param://" + name + "/schema.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return schema, nil
}
