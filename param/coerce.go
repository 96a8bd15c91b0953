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
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/pathwaykit/pathway/codec"
)

// coerce converts a raw source string to the declared kind. Numbers are
// strict; booleans accept the usual generous spellings.
func coerce(kind Kind, raw string) (codec.Value, error) {
	switch kind {
	case KindString:
		return codec.String(raw), nil

	case KindInt:
		i, err := cast.ToInt64E(strings.TrimSpace(raw))
		if err != nil {
			return codec.Value{}, fmt.Errorf("%q is not a valid integer", raw)
		}
		return codec.Int(i), nil

	case KindFloat:
		f, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			return codec.Value{}, fmt.Errorf("%q is not a valid number", raw)
		}
		return codec.Float(f), nil

	case KindBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "1", "yes", "on":
			return codec.Bool(true), nil
		case "false", "0", "no", "off":
			return codec.Bool(false), nil
		default:
			return codec.Value{}, fmt.Errorf("%q is not a valid boolean", raw)
		}

	case KindUUID:
		u, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return codec.Value{}, fmt.Errorf("%q is not a valid UUID", raw)
		}
		return codec.UUID(u), nil

	case KindObject:
		return codec.Value{}, fmt.Errorf("object values cannot be read from a string source")

	default:
		return codec.Value{}, fmt.Errorf("unsupported kind %s", kind)
	}
}

// coerceBody adapts an already-decoded body member to the declared kind.
// Body values arrive typed from the codec, so this checks compatibility and
// upgrades textual spellings of extension kinds.
func coerceBody(kind Kind, v codec.Value) (codec.Value, error) {
	switch kind {
	case KindString:
		if _, ok := v.StringVal(); ok {
			return v, nil
		}
	case KindInt:
		if _, ok := v.IntVal(); ok {
			return v, nil
		}
	case KindFloat:
		if _, ok := v.FloatVal(); ok {
			return v, nil
		}
	case KindBool:
		if _, ok := v.BoolVal(); ok {
			return v, nil
		}
	case KindUUID:
		if _, ok := v.UUIDVal(); ok {
			return v, nil
		}
		if s, ok := v.StringVal(); ok {
			if u, err := uuid.Parse(s); err == nil {
				return codec.UUID(u), nil
			}
		}
	case KindObject:
		if v.Kind() == codec.KindObject {
			return v, nil
		}
	}
	return codec.Value{}, fmt.Errorf("expected %s, got %s", kind, v.Kind())
}
