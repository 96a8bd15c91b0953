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
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pathwaykit/pathway/codec"
)

// validateSchema applies a compiled JSON Schema to an object parameter and
// flattens the error tree into field errors, one per leaf cause.
func validateSchema(c *Compiled, v codec.Value, errs *Errors) {
	instance := schemaInstance(v)
	err := c.schema.Validate(instance)
	if err == nil {
		return
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		errs.Add(c.Name, c.In, CodeSchema, err.Error())
		return
	}
	collectSchemaErrors(c, verr, errs)
}

func collectSchemaErrors(c *Compiled, verr *jsonschema.ValidationError, errs *Errors) {
	if verr == nil {
		return
	}
	if len(verr.Causes) == 0 {
		name := c.Name
		if loc := strings.Join(verr.InstanceLocation, "."); loc != "" {
			name = name + "." + loc
		}
		errs.Add(name, c.In, CodeSchema, verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collectSchemaErrors(c, cause, errs)
	}
}

// schemaInstance lowers a value tree onto the generic shapes the schema
// library evaluates. Integers become json.Number so integer-ness survives;
// extension kinds become their canonical strings, matching how they travel
// over JSON.
func schemaInstance(v codec.Value) any {
	switch v.Kind() {
	case codec.KindNull:
		return nil
	case codec.KindBool:
		b, _ := v.BoolVal()
		return b
	case codec.KindInt:
		i, _ := v.IntVal()
		return json.Number(strconv.FormatInt(i, 10))
	case codec.KindFloat:
		f, _ := v.FloatVal()
		return f
	case codec.KindString:
		s, _ := v.StringVal()
		return s
	case codec.KindArray:
		elems := v.Elems()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = schemaInstance(e)
		}
		return out
	case codec.KindObject:
		out := make(map[string]any, v.Len())
		for _, m := range v.Members() {
			out[m.Key] = schemaInstance(m.Value)
		}
		return out
	default:
		s, _ := v.CanonicalString()
		return s
	}
}
