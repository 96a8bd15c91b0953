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
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwaykit/pathway/codec"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func compileAll(t *testing.T, specs ...Spec) []*Compiled {
	t.Helper()
	compiled, err := CompileAll(specs)
	require.NoError(t, err)
	return compiled
}

func queryRequest(rawQuery string) Request {
	values, _ := url.ParseQuery(rawQuery)
	return Request{Query: QueryGetter(values)}
}

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var verr *Errors
	require.ErrorAs(t, err, &verr)
	return verr.Fields
}

func TestCompileConsistency(t *testing.T) {
	t.Parallel()

	t.Run("rejected declarations", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			spec Spec
		}{
			{"length on integer", Spec{Name: "n", Kind: KindInt, Constraints: Constraints{MaxLen: iptr(5)}}},
			{"bounds on string", Spec{Name: "s", Kind: KindString, Constraints: Constraints{Gt: fptr(0)}}},
			{"pattern on bool", Spec{Name: "b", Kind: KindBool, Constraints: Constraints{Pattern: "^x$"}}},
			{"schema on scalar", Spec{Name: "s", Kind: KindString, Constraints: Constraints{Schema: `{}`}}},
			{"object outside body", Spec{Name: "o", In: SourceQuery, Kind: KindObject}},
			{"invalid regexp", Spec{Name: "s", Kind: KindString, Constraints: Constraints{Pattern: "("}}},
			{"min above max length", Spec{Name: "s", Kind: KindString, Constraints: Constraints{MinLen: iptr(9), MaxLen: iptr(3)}}},
			{"default kind mismatch", Spec{Name: "n", Kind: KindInt, Default: valueptr(codec.String("x"))}},
			{"required with default", Spec{Name: "n", Kind: KindInt, Required: true, Default: valueptr(codec.Int(1))}},
			{"unnamed", Spec{Kind: KindString}},
		}
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := tt.spec.Compile()
				assert.Error(t, err)
			})
		}
	})

	t.Run("duplicate names rejected", func(t *testing.T) {
		t.Parallel()
		_, err := CompileAll([]Spec{
			{Name: "q", In: SourceQuery, Kind: KindString},
			{Name: "q", In: SourceHeader, Kind: KindString},
		})
		assert.Error(t, err)
	})
}

func valueptr(v codec.Value) *codec.Value { return &v }

func TestValidateMissingAggregation(t *testing.T) {
	t.Parallel()

	specs := compileAll(t,
		Spec{Name: "a", In: SourceQuery, Kind: KindString, Required: true},
		Spec{Name: "b", In: SourceQuery, Kind: KindInt, Required: true},
	)

	_, err := Validate(context.Background(), specs, queryRequest(""))
	fields := fieldErrors(t, err)
	require.Len(t, fields, 2, "both missing parameters are reported, not just the first")
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, CodeMissing, fields[0].Code)
	assert.Equal(t, "b", fields[1].Name)
	assert.Equal(t, CodeMissing, fields[1].Code)
}

func TestValidateNumericBounds(t *testing.T) {
	t.Parallel()

	specs := compileAll(t, Spec{
		Name: "item_id", In: SourceQuery, Kind: KindInt, Required: true,
		Constraints: Constraints{Gt: fptr(0), Le: fptr(1000)},
	})

	t.Run("boundary acceptance", func(t *testing.T) {
		t.Parallel()
		for _, raw := range []string{"1", "1000"} {
			result, err := Validate(context.Background(), specs, queryRequest("item_id="+raw))
			require.NoError(t, err, "value %s", raw)
			_, ok := result["item_id"].IntVal()
			assert.True(t, ok)
		}
	})

	t.Run("boundary rejection", func(t *testing.T) {
		t.Parallel()
		_, err := Validate(context.Background(), specs, queryRequest("item_id=0"))
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeGt, fields[0].Code)
		assert.Equal(t, "must be greater than 0", fields[0].Message)

		_, err = Validate(context.Background(), specs, queryRequest("item_id=1001"))
		fields = fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeLe, fields[0].Code)
	})

	t.Run("exclusive vs inclusive", func(t *testing.T) {
		t.Parallel()
		geSpecs := compileAll(t, Spec{
			Name: "n", In: SourceQuery, Kind: KindFloat, Required: true,
			Constraints: Constraints{Ge: fptr(0.5), Lt: fptr(2)},
		})

		_, err := Validate(context.Background(), geSpecs, queryRequest("n=0.5"))
		assert.NoError(t, err, "ge is inclusive")

		_, err = Validate(context.Background(), geSpecs, queryRequest("n=2"))
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeLt, fields[0].Code, "lt is strict")
	})
}

func TestValidateCoercion(t *testing.T) {
	t.Parallel()

	t.Run("wrong type is reported, not dropped", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "n", In: SourceQuery, Kind: KindInt, Required: true})
		_, err := Validate(context.Background(), specs, queryRequest("n=abc"))
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeType, fields[0].Code)
	})

	t.Run("generous booleans", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "flag", In: SourceQuery, Kind: KindBool, Required: true})
		for raw, want := range map[string]bool{"true": true, "1": true, "YES": true, "on": true, "false": false, "0": false, "no": false, "OFF": false} {
			result, err := Validate(context.Background(), specs, queryRequest("flag="+raw))
			require.NoError(t, err, "spelling %q", raw)
			got, _ := result["flag"].BoolVal()
			assert.Equal(t, want, got, "spelling %q", raw)
		}
		_, err := Validate(context.Background(), specs, queryRequest("flag=maybe"))
		assert.Error(t, err)
	})

	t.Run("uuid", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "id", In: SourceQuery, Kind: KindUUID, Required: true})
		result, err := Validate(context.Background(), specs, queryRequest("id=3f0a8c1e-9d2b-4f6a-8e5d-1b2c3d4e5f60"))
		require.NoError(t, err)
		_, ok := result["id"].UUIDVal()
		assert.True(t, ok)

		_, err = Validate(context.Background(), specs, queryRequest("id=not-a-uuid"))
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeType, fields[0].Code)
	})
}

func TestValidateEmptyStringIsPresent(t *testing.T) {
	t.Parallel()

	specs := compileAll(t, Spec{Name: "q", In: SourceQuery, Kind: KindString})

	t.Run("sent empty", func(t *testing.T) {
		t.Parallel()
		result, err := Validate(context.Background(), specs, queryRequest("q="))
		require.NoError(t, err)
		s, ok := result["q"].StringVal()
		require.True(t, ok, "empty string is a present value")
		assert.Equal(t, "", s)
	})

	t.Run("not sent", func(t *testing.T) {
		t.Parallel()
		result, err := Validate(context.Background(), specs, queryRequest(""))
		require.NoError(t, err)
		_, ok := result["q"]
		assert.False(t, ok, "absent optional parameter is simply omitted")
	})

	t.Run("empty still violates min length", func(t *testing.T) {
		t.Parallel()
		bounded := compileAll(t, Spec{
			Name: "q", In: SourceQuery, Kind: KindString,
			Constraints: Constraints{MinLen: iptr(1)},
		})
		_, err := Validate(context.Background(), bounded, queryRequest("q="))
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeMinLength, fields[0].Code)
	})
}

func TestValidateConstraintOrderAndAggregation(t *testing.T) {
	t.Parallel()

	// One value violating length and pattern at once: both are recorded,
	// in the fixed evaluation order.
	specs := compileAll(t, Spec{
		Name: "code", In: SourceQuery, Kind: KindString, Required: true,
		Constraints: Constraints{MaxLen: iptr(3), Pattern: "^[a-z]+$"},
	})

	_, err := Validate(context.Background(), specs, queryRequest("code=ABCDEF"))
	fields := fieldErrors(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, CodeMaxLength, fields[0].Code)
	assert.Equal(t, CodePattern, fields[1].Code)
}

func TestValidateEnum(t *testing.T) {
	t.Parallel()

	specs := compileAll(t, Spec{
		Name: "sort", In: SourceQuery, Kind: KindString, Required: true,
		Constraints: Constraints{Enum: []string{"asc", "desc"}},
	})

	_, err := Validate(context.Background(), specs, queryRequest("sort=asc"))
	assert.NoError(t, err)

	_, err = Validate(context.Background(), specs, queryRequest("sort=sideways"))
	fields := fieldErrors(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, CodeEnum, fields[0].Code)
}

func TestValidateDefaults(t *testing.T) {
	t.Parallel()

	specs := compileAll(t,
		Spec{Name: "limit", In: SourceQuery, Kind: KindInt, Default: valueptr(codec.Int(20))},
		Spec{Name: "q", In: SourceQuery, Kind: KindString, Required: true},
	)

	result, err := Validate(context.Background(), specs, queryRequest("q=hello"))
	require.NoError(t, err)
	limit, ok := result["limit"].IntVal()
	require.True(t, ok)
	assert.Equal(t, int64(20), limit)

	// An explicit value overrides the default.
	result, err = Validate(context.Background(), specs, queryRequest("q=hello&limit=5"))
	require.NoError(t, err)
	limit, _ = result["limit"].IntVal()
	assert.Equal(t, int64(5), limit)
}

func TestValidateBodyParams(t *testing.T) {
	t.Parallel()

	body := codec.Object(
		codec.Member{Key: "name", Value: codec.String("widget")},
		codec.Member{Key: "count", Value: codec.Int(3)},
		codec.Member{Key: "meta", Value: codec.Object(codec.Member{Key: "tier", Value: codec.String("gold")})},
	)

	t.Run("typed body members", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t,
			Spec{Name: "name", In: SourceBody, Kind: KindString, Required: true},
			Spec{Name: "count", In: SourceBody, Kind: KindInt, Required: true},
		)
		result, err := Validate(context.Background(), specs, Request{Body: body, HasBody: true})
		require.NoError(t, err)
		n, _ := result["count"].IntVal()
		assert.Equal(t, int64(3), n)
	})

	t.Run("body kind mismatch", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "name", In: SourceBody, Kind: KindInt, Required: true})
		_, err := Validate(context.Background(), specs, Request{Body: body, HasBody: true})
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeType, fields[0].Code)
	})

	t.Run("missing body member", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "owner", In: SourceBody, Kind: KindString, Required: true})
		_, err := Validate(context.Background(), specs, Request{Body: body, HasBody: true})
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeMissing, fields[0].Code)
	})

	t.Run("no body at all", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{Name: "name", In: SourceBody, Kind: KindString, Required: true})
		_, err := Validate(context.Background(), specs, Request{})
		fields := fieldErrors(t, err)
		require.Len(t, fields, 1)
		assert.Equal(t, CodeMissing, fields[0].Code)
	})

	t.Run("object with schema", func(t *testing.T) {
		t.Parallel()
		specs := compileAll(t, Spec{
			Name: "meta", In: SourceBody, Kind: KindObject, Required: true,
			Constraints: Constraints{Schema: `{
				"type": "object",
				"properties": {"tier": {"type": "string", "enum": ["gold", "silver"]}},
				"required": ["tier"]
			}`},
		})

		_, err := Validate(context.Background(), specs, Request{Body: body, HasBody: true})
		assert.NoError(t, err)

		bad := codec.Object(codec.Member{Key: "meta", Value: codec.Object(
			codec.Member{Key: "tier", Value: codec.String("bronze")},
		)})
		_, err = Validate(context.Background(), specs, Request{Body: bad, HasBody: true})
		fields := fieldErrors(t, err)
		require.NotEmpty(t, fields)
		assert.Equal(t, CodeSchema, fields[0].Code)
		assert.Contains(t, fields[0].Name, "meta")
	})
}

func TestValidateCancellation(t *testing.T) {
	t.Parallel()

	specs := compileAll(t, Spec{Name: "q", In: SourceQuery, Kind: KindString})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Validate(ctx, specs, queryRequest("q=x"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidateUnknownFieldsIgnored(t *testing.T) {
	t.Parallel()

	specs := compileAll(t, Spec{Name: "q", In: SourceQuery, Kind: KindString, Required: true})
	result, err := Validate(context.Background(), specs, queryRequest("q=hello&unexpected=1&extra=2"))
	require.NoError(t, err)
	assert.Len(t, result, 1)
}
