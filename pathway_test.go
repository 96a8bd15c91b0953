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

package pathway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwaykit/pathway/codec"
	"github.com/pathwaykit/pathway/param"
	"github.com/pathwaykit/pathway/secure"
)

func fptr(f float64) *float64 { return &f }
func iptr(i int) *int         { return &i }

func itemsEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	t.Cleanup(e.Close)

	require.NoError(t, e.Register(Endpoint{
		Method:  "GET",
		Pattern: "/items/{item_id:int}",
		Handler: "get_item",
		Params: []param.Spec{
			{Name: "item_id", In: param.SourcePath, Kind: param.KindInt, Required: true,
				Constraints: param.Constraints{Gt: fptr(0), Le: fptr(1000)}},
			{Name: "q", In: param.SourceQuery, Kind: param.KindString,
				Constraints: param.Constraints{MaxLen: iptr(50)}},
		},
	}))
	require.NoError(t, e.Register(Endpoint{
		Method:  "POST",
		Pattern: "/items",
		Handler: "create_item",
		Params: []param.Spec{
			{Name: "name", In: param.SourceBody, Kind: param.KindString, Required: true},
			{Name: "count", In: param.SourceBody, Kind: param.KindInt, Default: valueptr(codec.Int(1))},
		},
	}))
	e.Seal()
	return e
}

func valueptr(v codec.Value) *codec.Value { return &v }

func get(path, rawQuery string) *Request {
	return &Request{Method: "GET", Path: path, RawQuery: rawQuery, Header: http.Header{}}
}

func TestExecuteEndToEnd(t *testing.T) {
	t.Parallel()
	e := itemsEngine(t)

	t.Run("resolves and types parameters", func(t *testing.T) {
		t.Parallel()
		result, fail := e.Execute(context.Background(), get("/items/42", "q=hello"))
		require.Nil(t, fail)
		assert.Equal(t, "get_item", result.Handler)
		assert.Equal(t, "/items/{item_id:int}", result.Pattern)

		id, ok := result.Params["item_id"].IntVal()
		require.True(t, ok, "path capture arrives as a typed integer")
		assert.Equal(t, int64(42), id)
		q, _ := result.Params["q"].StringVal()
		assert.Equal(t, "hello", q)
	})

	t.Run("bound violation yields one 422 error", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), get("/items/0", ""))
		require.NotNil(t, fail)
		assert.Equal(t, 422, fail.Status)
		require.Len(t, fail.Errors, 1)
		assert.Equal(t, "item_id", fail.Errors[0].Name)
		assert.Equal(t, param.CodeGt, fail.Errors[0].Code)
		assert.Equal(t, "must be greater than 0", fail.Errors[0].Message)
	})

	t.Run("length violation yields one 422 error", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("x", 60)
		_, fail := e.Execute(context.Background(), get("/items/42", "q="+long))
		require.NotNil(t, fail)
		assert.Equal(t, 422, fail.Status)
		require.Len(t, fail.Errors, 1)
		assert.Equal(t, "q", fail.Errors[0].Name)
		assert.Equal(t, param.CodeMaxLength, fail.Errors[0].Code)
	})

	t.Run("violations aggregate across parameters", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("x", 60)
		_, fail := e.Execute(context.Background(), get("/items/0", "q="+long))
		require.NotNil(t, fail)
		assert.Equal(t, 422, fail.Status)
		assert.Len(t, fail.Errors, 2)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), get("/missing", ""))
		require.NotNil(t, fail)
		assert.Equal(t, 404, fail.Status)
	})

	t.Run("method not allowed carries allow header", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), &Request{Method: "DELETE", Path: "/items", Header: http.Header{}})
		require.NotNil(t, fail)
		assert.Equal(t, 405, fail.Status)
		assert.Equal(t, "POST", fail.AllowHeader())
	})

	t.Run("malformed query string gets its own code", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), get("/items/42", "q=%zz"))
		require.NotNil(t, fail)
		assert.Equal(t, 400, fail.Status)
		assert.Equal(t, "invalid_query", fail.Code)
	})
}

func TestExecuteBody(t *testing.T) {
	t.Parallel()
	e := itemsEngine(t)

	post := func(body, contentType string) *Request {
		return &Request{
			Method:      "POST",
			Path:        "/items",
			Header:      http.Header{},
			Body:        strings.NewReader(body),
			ContentType: contentType,
		}
	}

	t.Run("json body with default", func(t *testing.T) {
		t.Parallel()
		result, fail := e.Execute(context.Background(), post(`{"name":"widget"}`, "application/json"))
		require.Nil(t, fail)
		name, _ := result.Params["name"].StringVal()
		assert.Equal(t, "widget", name)
		count, _ := result.Params["count"].IntVal()
		assert.Equal(t, int64(1), count, "absent body member takes the default")
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), post(`{"name":`, "application/json"))
		require.NotNil(t, fail)
		assert.Equal(t, 400, fail.Status)
		assert.Equal(t, "invalid_body", fail.Code)
	})

	t.Run("oversized body is 400", func(t *testing.T) {
		t.Parallel()
		small := itemsEngine(t, WithMaxBodySize(16))
		_, fail := small.Execute(context.Background(), post(`{"name":"`+strings.Repeat("x", 100)+`"}`, "application/json"))
		require.NotNil(t, fail)
		assert.Equal(t, 400, fail.Status)
	})

	t.Run("unsupported content type is 415", func(t *testing.T) {
		t.Parallel()
		_, fail := e.Execute(context.Background(), post(`<item/>`, "application/xml"))
		require.NotNil(t, fail)
		assert.Equal(t, 415, fail.Status)
	})

	t.Run("form body", func(t *testing.T) {
		t.Parallel()
		result, fail := e.Execute(context.Background(), post("name=widget&count=3", "application/x-www-form-urlencoded"))
		require.Nil(t, fail)
		name, _ := result.Params["name"].StringVal()
		assert.Equal(t, "widget", name)
	})
}

func TestExecuteAuth(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	verifier := func(_ context.Context, token string) (*secure.Identity, error) {
		calls.Add(1)
		if token != "good" {
			return nil, secure.ErrInvalidToken
		}
		return &secure.Identity{Subject: "alice", Scopes: []string{"items:read"}}, nil
	}

	e := New(WithVerifier(verifier))
	t.Cleanup(e.Close)
	require.NoError(t, e.Register(Endpoint{
		Method:      "GET",
		Pattern:     "/private/{id:int}",
		Handler:     "private",
		RequireAuth: true,
		Scopes:      []string{"items:read"},
	}))
	require.NoError(t, e.Register(Endpoint{
		Method:      "GET",
		Pattern:     "/admin",
		Handler:     "admin",
		RequireAuth: true,
		Scopes:      []string{"admin"},
	}))
	e.Seal()

	withAuth := func(path, header string) *Request {
		h := http.Header{}
		if header != "" {
			h.Set("Authorization", header)
		}
		return &Request{Method: "GET", Path: path, Header: h}
	}

	t.Run("verified identity flows into the result", func(t *testing.T) {
		result, fail := e.Execute(context.Background(), withAuth("/private/7", "Bearer good"))
		require.Nil(t, fail)
		require.NotNil(t, result.Identity)
		assert.Equal(t, "alice", result.Identity.Subject)
	})

	t.Run("cached across requests", func(t *testing.T) {
		before := calls.Load()
		for n := 0; n < 5; n++ {
			_, fail := e.Execute(context.Background(), withAuth("/private/7", "Bearer good"))
			require.Nil(t, fail)
		}
		assert.Equal(t, before, calls.Load(), "verifier is not consulted on cache hits")
	})

	t.Run("missing credential is 401", func(t *testing.T) {
		_, fail := e.Execute(context.Background(), withAuth("/private/7", ""))
		require.NotNil(t, fail)
		assert.Equal(t, 401, fail.Status)
	})

	t.Run("invalid token is 401", func(t *testing.T) {
		_, fail := e.Execute(context.Background(), withAuth("/private/7", "Bearer bad"))
		require.NotNil(t, fail)
		assert.Equal(t, 401, fail.Status)
	})

	t.Run("missing scope is 403", func(t *testing.T) {
		_, fail := e.Execute(context.Background(), withAuth("/admin", "Bearer good"))
		require.NotNil(t, fail)
		assert.Equal(t, 403, fail.Status)
	})

	t.Run("auth without verifier rejected at registration", func(t *testing.T) {
		bare := New()
		t.Cleanup(bare.Close)
		err := bare.Register(Endpoint{Method: "GET", Pattern: "/x", RequireAuth: true})
		assert.Error(t, err)
	})
}

func TestExecuteCancellation(t *testing.T) {
	t.Parallel()
	e := itemsEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, fail := e.Execute(ctx, get("/items/42", ""))
	assert.Nil(t, result, "cancelled requests never return partial results")
	require.NotNil(t, fail)
	assert.Equal(t, 499, fail.Status)
}

func TestRegisterChecks(t *testing.T) {
	t.Parallel()

	t.Run("path spec type must match annotation", func(t *testing.T) {
		t.Parallel()
		e := New()
		t.Cleanup(e.Close)
		err := e.Register(Endpoint{
			Method:  "GET",
			Pattern: "/items/{item_id:int}",
			Params:  []param.Spec{{Name: "item_id", In: param.SourcePath, Kind: param.KindString, Required: true}},
		})
		assert.Error(t, err)
	})

	t.Run("path spec must exist in pattern", func(t *testing.T) {
		t.Parallel()
		e := New()
		t.Cleanup(e.Close)
		err := e.Register(Endpoint{
			Method:  "GET",
			Pattern: "/items/{item_id:int}",
			Params:  []param.Spec{{Name: "other", In: param.SourcePath, Kind: param.KindInt, Required: true}},
		})
		assert.Error(t, err)
	})

	t.Run("register after seal is rejected", func(t *testing.T) {
		t.Parallel()
		e := New()
		t.Cleanup(e.Close)
		e.Seal()
		err := e.Register(Endpoint{Method: "GET", Pattern: "/late"})
		assert.Error(t, err)
	})

	t.Run("undeclared path params are synthesized from annotations", func(t *testing.T) {
		t.Parallel()
		e := New()
		t.Cleanup(e.Close)
		require.NoError(t, e.Register(Endpoint{Method: "GET", Pattern: "/things/{id:uuid}", Handler: "thing"}))
		e.Seal()

		result, fail := e.Execute(context.Background(), get("/things/3f0a8c1e-9d2b-4f6a-8e5d-1b2c3d4e5f60", ""))
		require.Nil(t, fail)
		_, ok := result.Params["id"].UUIDVal()
		assert.True(t, ok)

		_, fail = e.Execute(context.Background(), get("/things/not-a-uuid", ""))
		require.NotNil(t, fail)
		assert.Equal(t, 422, fail.Status)
	})
}

func TestProblemRendering(t *testing.T) {
	t.Parallel()
	e := itemsEngine(t, WithProblemBaseURL("https://api.example.com/problems"))

	_, fail := e.Execute(context.Background(), get("/items/0", ""))
	require.NotNil(t, fail)

	problem := e.Problem(fail, "/items/0")
	raw, err := json.Marshal(problem)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "https://api.example.com/problems/validation_error", doc["type"])
	assert.Equal(t, "Validation Error", doc["title"])
	assert.EqualValues(t, 422, doc["status"])
	assert.Equal(t, "/items/0", doc["instance"])
	assert.NotEmpty(t, doc["errors"])
}

func TestMetricsRecorder(t *testing.T) {
	t.Parallel()

	recorder, err := NewRecorder()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = recorder.Shutdown(ctx)
	})

	e := itemsEngine(t, WithMetrics(recorder))
	_, fail := e.Execute(context.Background(), get("/items/42", ""))
	require.Nil(t, fail)
	_, fail = e.Execute(context.Background(), get("/items/0", ""))
	require.NotNil(t, fail)

	assert.NotNil(t, recorder.Handler())
}
