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

package param

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/pathwaykit/pathway/codec"
)

// Request carries the raw per-request sources validation reads from. Body
// is the codec's decode result; HasBody distinguishes "no body" from an
// empty object.
type Request struct {
	Path    ValueGetter
	Query   ValueGetter
	Header  ValueGetter
	Cookie  ValueGetter
	Body    codec.Value
	HasBody bool
}

func (r Request) getter(s Source) ValueGetter {
	switch s {
	case SourcePath:
		return r.Path
	case SourceQuery:
		return r.Query
	case SourceHeader:
		return r.Header
	case SourceCookie:
		return r.Cookie
	default:
		return nil
	}
}

// Validate evaluates every compiled spec against req in a single pass and
// returns either the full typed parameter set or the aggregate of every
// violation found. Parameters are independent: a failure on one never
// stops evaluation of the rest, so two missing required parameters yield
// two errors.
//
// The context is checked between parameters so an abandoned request stops
// consuming CPU promptly.
func Validate(ctx context.Context, specs []*Compiled, req Request) (map[string]codec.Value, error) {
	result := make(map[string]codec.Value, len(specs))
	var errs Errors

	for _, c := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		validateOne(c, req, result, &errs)
	}

	if !errs.Empty() {
		return nil, &errs
	}
	return result, nil
}

func validateOne(c *Compiled, req Request, result map[string]codec.Value, errs *Errors) {
	var (
		value codec.Value
		err   error
		found bool
	)

	if c.In == SourceBody {
		if req.HasBody {
			value, found = req.Body.Get(c.Name)
		}
		if found {
			value, err = coerceBody(c.Kind, value)
		}
	} else {
		g := req.getter(c.In)
		var raw string
		if g != nil {
			raw, found = g.Get(c.Name)
		}
		if found {
			// An empty string that was sent is a present value, not a
			// missing one. It still has to coerce and satisfy constraints.
			value, err = coerce(c.Kind, raw)
		}
	}

	if !found {
		if c.Default != nil {
			result[c.Name] = *c.Default
			return
		}
		if c.Required {
			errs.Add(c.Name, c.In, CodeMissing, "required parameter is missing")
		}
		return
	}

	if err != nil {
		errs.Add(c.Name, c.In, CodeType, err.Error())
		return
	}

	before := len(errs.Fields)
	applyConstraints(c, value, errs)
	if len(errs.Fields) == before {
		result[c.Name] = value
	}
}

// applyConstraints records every violated constraint in the fixed order
// bounds, length, pattern, enum, schema. It never stops at the first hit.
func applyConstraints(c *Compiled, v codec.Value, errs *Errors) {
	cons := c.Constraints

	if n, ok := v.FloatVal(); ok && c.Kind.numeric() {
		if cons.Gt != nil && !(n > *cons.Gt) {
			errs.Add(c.Name, c.In, CodeGt, "must be greater than "+formatBound(*cons.Gt))
		}
		if cons.Ge != nil && !(n >= *cons.Ge) {
			errs.Add(c.Name, c.In, CodeGe, "must be greater than or equal to "+formatBound(*cons.Ge))
		}
		if cons.Lt != nil && !(n < *cons.Lt) {
			errs.Add(c.Name, c.In, CodeLt, "must be less than "+formatBound(*cons.Lt))
		}
		if cons.Le != nil && !(n <= *cons.Le) {
			errs.Add(c.Name, c.In, CodeLe, "must be less than or equal to "+formatBound(*cons.Le))
		}
	}

	if s, ok := v.StringVal(); ok {
		length := utf8.RuneCountInString(s)
		if cons.MinLen != nil && length < *cons.MinLen {
			errs.Add(c.Name, c.In, CodeMinLength, fmt.Sprintf("must be at least %d characters", *cons.MinLen))
		}
		if cons.MaxLen != nil && length > *cons.MaxLen {
			errs.Add(c.Name, c.In, CodeMaxLength, fmt.Sprintf("exceeds maximum length of %d characters", *cons.MaxLen))
		}
		if c.pattern != nil && !c.pattern.MatchString(s) {
			errs.Add(c.Name, c.In, CodePattern, fmt.Sprintf("does not match pattern %q", cons.Pattern))
		}
	}

	if c.enum != nil {
		if rendering, ok := enumRendering(v); ok {
			if _, member := c.enum[rendering]; !member {
				errs.Add(c.Name, c.In, CodeEnum, "must be one of the allowed values")
			}
		}
	}

	if c.schema != nil {
		validateSchema(c, v, errs)
	}
}

func enumRendering(v codec.Value) (string, bool) {
	if s, ok := v.StringVal(); ok {
		return s, true
	}
	if i, ok := v.IntVal(); ok {
		return strconv.FormatInt(i, 10), true
	}
	return "", false
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
