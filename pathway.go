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

// Package pathway is the request-processing core of an HTTP service layer.
//
// It resolves (method, path) pairs against registered endpoints, extracts
// and validates parameters from path, query, header, cookie, and body
// sources, decodes bodies under strict resource limits, and verifies
// bearer credentials through a bounded cache. It does no network I/O of
// its own: a transport hands it the request pieces and receives either a
// typed parameter set plus handler identifier, or a structured failure
// ready to render as an RFC 9457 problem response.
//
// Endpoints are registered during single-threaded setup and the engine is
// then sealed; execution afterwards is lock-free over the route structure
// and safe for any number of concurrent requests.
package pathway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pathwaykit/pathway/codec"
	"github.com/pathwaykit/pathway/param"
	"github.com/pathwaykit/pathway/route"
	"github.com/pathwaykit/pathway/secure"
)

// Endpoint declares one route: its pattern, parameter specs, and an opaque
// handler identifier the engine hands back on a successful match.
type Endpoint struct {
	Method  string
	Pattern string
	Handler any
	Params  []param.Spec

	// RequireAuth demands a verified bearer credential before validation
	// runs. Scopes additionally names scopes the identity must carry.
	RequireAuth bool
	Scopes      []string
}

// endpoint is the sealed, compiled form attached to the route.
type endpoint struct {
	handler     any
	specs       []*param.Compiled
	hasBodySpec bool
	requireAuth bool
	scopes      []string
}

// Request is the per-request input handed over by the transport layer. The
// engine consumes the body through the reader; it never reads more than the
// configured body limit.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	Header      http.Header
	Cookies     map[string]string
	Body        io.Reader
	ContentType string
}

// Result is a successful execution: the matched endpoint's handler
// identifier, the fully validated parameter set, and the verified identity
// when the endpoint required one.
type Result struct {
	Handler  any
	Pattern  string
	Params   map[string]codec.Value
	Identity *secure.Identity
}

// Engine matches, decodes, validates, and authenticates requests.
type Engine struct {
	builder     *route.Builder
	registry    *route.Registry
	limits      codec.Limits
	cacheConfig secure.CacheConfig
	cache       *secure.TokenCache
	verifier    secure.Verifier
	logger      *slog.Logger
	metrics     *Recorder
	problemBase string
	sealed      bool
}

// New creates an engine. Register endpoints, then Seal before serving.
func New(opts ...Option) *Engine {
	e := &Engine{
		builder: route.NewBuilder(),
		limits:  codec.DefaultLimits(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds an endpoint. It fails when the pattern is malformed or
// conflicts with an existing route, when the parameter specs are
// inconsistent, or when path-sourced specs disagree with the pattern's
// type annotations. All of these reject at startup so requests never see a
// half-valid endpoint.
func (e *Engine) Register(ep Endpoint) error {
	if e.sealed {
		return route.ErrSealed
	}
	if ep.RequireAuth && e.verifier == nil {
		return fmt.Errorf("pathway: endpoint %s %s requires auth but no verifier is configured", ep.Method, ep.Pattern)
	}

	specs := ep.Params
	r, err := e.builder.Add(ep.Method, ep.Pattern, nil)
	if err != nil {
		return err
	}

	specs, err = completePathSpecs(r, specs)
	if err != nil {
		return err
	}
	compiled, err := param.CompileAll(specs)
	if err != nil {
		return err
	}

	sealed := &endpoint{
		handler:     ep.Handler,
		specs:       compiled,
		requireAuth: ep.RequireAuth,
		scopes:      ep.Scopes,
	}
	for _, c := range compiled {
		if c.In == param.SourceBody {
			sealed.hasBodySpec = true
			break
		}
	}
	r.Handler = sealed

	e.logger.Debug("endpoint registered",
		slog.String("method", r.Method),
		slog.String("pattern", r.Pattern),
		slog.Int("params", len(compiled)),
		slog.Bool("auth", ep.RequireAuth),
	)
	return nil
}

// completePathSpecs cross-checks path-sourced specs against the pattern and
// synthesizes a spec for every annotated path parameter the caller did not
// declare. Pattern annotations and spec kinds must agree.
func completePathSpecs(r *route.Route, specs []param.Spec) ([]param.Spec, error) {
	declared := make(map[string]bool)
	for _, s := range specs {
		if s.In != param.SourcePath {
			continue
		}
		typ, ok := r.ParamTypeOf(s.Name)
		if !ok {
			return nil, fmt.Errorf("pathway: path parameter %q is not in pattern %s", s.Name, r.Pattern)
		}
		if want := kindForType(typ); want != s.Kind {
			return nil, fmt.Errorf("pathway: path parameter %q declared %s but pattern %s annotates %s",
				s.Name, s.Kind, r.Pattern, typ)
		}
		if !s.Required || s.Default != nil {
			return nil, fmt.Errorf("pathway: path parameter %q must be required and cannot default", s.Name)
		}
		declared[s.Name] = true
	}

	for _, name := range r.ParamNames() {
		if declared[name] {
			continue
		}
		typ, _ := r.ParamTypeOf(name)
		specs = append(specs, param.Spec{
			Name:     name,
			In:       param.SourcePath,
			Kind:     kindForType(typ),
			Required: true,
		})
	}
	return specs, nil
}

func kindForType(t route.ParamType) param.Kind {
	switch t {
	case route.TypeInt:
		return param.KindInt
	case route.TypeFloat:
		return param.KindFloat
	case route.TypeBool:
		return param.KindBool
	case route.TypeUUID:
		return param.KindUUID
	default:
		// str and path captures are strings.
		return param.KindString
	}
}

// Seal freezes the route set and starts the token cache. Execute before
// Seal is a programming error and fails every request; Register after Seal
// fails with ErrSealed.
func (e *Engine) Seal() {
	if e.sealed {
		return
	}
	e.registry = e.builder.Seal()
	if e.verifier != nil {
		e.cache = secure.NewTokenCache(e.cacheConfig)
	}
	e.sealed = true
	e.logger.Info("engine sealed", slog.Int("routes", len(e.registry.Routes())))
}

// Close stops background work owned by the engine.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Execute runs the full pipeline for one request: match, authenticate,
// decode, validate. It returns exactly one of a Result or a Failure. The
// context is honored between stages: an abandoned request is dropped at
// the next stage boundary and ctx.Err is returned as a Failure with
// status 499 (client closed request).
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, *Failure) {
	start := time.Now()
	result, failure := e.execute(ctx, req)

	outcome := "ok"
	if failure != nil {
		outcome = failure.Code
	}
	e.metrics.recordExecution(ctx, req.Method, outcome, time.Since(start))
	return result, failure
}

func (e *Engine) execute(ctx context.Context, req *Request) (*Result, *Failure) {
	if !e.sealed {
		return nil, &Failure{Status: 500, Code: "not_sealed", Title: "Engine Not Sealed", Detail: "Execute called before Seal"}
	}
	if fail := cancelled(ctx); fail != nil {
		return nil, fail
	}

	match, err := e.registry.Match(req.Method, req.Path)
	if err != nil {
		var mna *route.MethodNotAllowedError
		switch {
		case errors.As(err, &mna):
			return nil, methodNotAllowedFailure(req.Method, mna.Allow)
		default:
			return nil, notFoundFailure(req.Path)
		}
	}
	ep, ok := match.Route.Handler.(*endpoint)
	if !ok {
		// A Register call failed after the route was inserted; the caller
		// ignored that error instead of aborting startup.
		return nil, &Failure{Status: 500, Code: "internal", Title: "Internal Error", Detail: "endpoint was not fully registered"}
	}

	var identity *secure.Identity
	if ep.requireAuth {
		identity, err = e.cache.VerifyBearer(ctx, req.Header.Get("Authorization"), e.verifier)
		if err != nil {
			e.metrics.recordAuthFailure(ctx)
			return nil, authFailure(err)
		}
		for _, scope := range ep.scopes {
			if !identity.HasScope(scope) {
				e.metrics.recordAuthFailure(ctx)
				return nil, forbiddenFailure(scope)
			}
		}
	}

	if fail := cancelled(ctx); fail != nil {
		return nil, fail
	}

	var body codec.Value
	hasBody := false
	if ep.hasBodySpec && req.Body != nil && req.ContentType != "" {
		body, err = codec.Decode(req.Body, req.ContentType, e.limits)
		if err != nil {
			e.metrics.recordDecodeFailure(ctx)
			e.logger.Debug("body decode rejected", slog.String("path", req.Path), slog.Any("error", err))
			return nil, decodeFailure(req.ContentType, err)
		}
		hasBody = true
	}

	if fail := cancelled(ctx); fail != nil {
		return nil, fail
	}

	query, err := url.ParseQuery(req.RawQuery)
	if err != nil {
		return nil, invalidQueryFailure("malformed query string: " + err.Error())
	}

	pathParams := make(map[string]string, len(match.Params))
	for _, p := range match.Params {
		pathParams[p.Name] = p.Value
	}

	values, err := param.Validate(ctx, ep.specs, param.Request{
		Path:    param.MapGetter(pathParams),
		Query:   param.QueryGetter(query),
		Header:  param.HeaderGetter(req.Header),
		Cookie:  param.MapGetter(req.Cookies),
		Body:    body,
		HasBody: hasBody,
	})
	if err != nil {
		var verr *param.Errors
		if errors.As(err, &verr) {
			e.metrics.recordValidationFailure(ctx, len(verr.Fields))
			e.logger.Debug("validation rejected",
				slog.String("pattern", match.Route.Pattern),
				slog.Int("violations", len(verr.Fields)),
			)
			return nil, validationFailure(verr)
		}
		if fail := cancelled(ctx); fail != nil {
			return nil, fail
		}
		return nil, &Failure{Status: 500, Code: "internal", Title: "Internal Error", Detail: err.Error()}
	}

	return &Result{
		Handler:  ep.handler,
		Pattern:  match.Route.Pattern,
		Params:   values,
		Identity: identity,
	}, nil
}

// Problem renders a failure with this engine's problem type base URL.
func (e *Engine) Problem(f *Failure, instance string) ProblemDetail {
	return f.Problem(e.problemBase, instance)
}

func cancelled(ctx context.Context) *Failure {
	if err := ctx.Err(); err != nil {
		return &Failure{Status: 499, Code: "cancelled", Title: "Request Cancelled", Detail: err.Error()}
	}
	return nil
}

func decodeFailure(contentType string, err error) *Failure {
	if errors.Is(err, codec.ErrUnsupportedContentType) {
		return unsupportedMediaFailure(contentType)
	}
	var lim *codec.LimitError
	if errors.As(err, &lim) {
		return badBodyFailure(lim.Error())
	}
	return badBodyFailure(err.Error())
}

func authFailure(err error) *Failure {
	var mce *secure.MalformedCredentialError
	if errors.As(err, &mce) {
		return unauthorizedFailure(mce.Reason)
	}
	if errors.Is(err, secure.ErrInvalidToken) {
		return unauthorizedFailure("token verification failed")
	}
	return unauthorizedFailure("credential could not be verified")
}
