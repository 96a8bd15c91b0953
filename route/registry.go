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
	"strings"
)

// Param is one captured path parameter, raw and uncoerced.
type Param struct {
	Name  string
	Value string
}

// Match is a successful resolution.
type Match struct {
	Route  *Route
	Params []Param
}

// Builder accumulates routes during the single-threaded setup phase.
// Add after Seal fails with ErrSealed; the two-phase lifecycle is what makes
// sealed lookups safe without locks.
type Builder struct {
	root   node
	static map[string]*node // full-path index for patterns with no parameters
	routes []*Route
	sealed bool
}

// NewBuilder returns an empty route set builder.
func NewBuilder() *Builder {
	return &Builder{static: make(map[string]*node, 16)}
}

// Add registers a pattern for a method. The method is normalized to upper
// case. Callers may attach their own endpoint record to the returned
// Route's Handler before Seal.
func (b *Builder) Add(method, pattern string, handler any) (*Route, error) {
	if b.sealed {
		return nil, ErrSealed
	}

	segments, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}

	r := &Route{
		Method:   strings.ToUpper(strings.TrimSpace(method)),
		Pattern:  pattern,
		Segments: segments,
		Handler:  handler,
	}
	if r.Method == "" {
		return nil, &MalformedPatternError{Pattern: pattern, Reason: "empty method"}
	}

	if err := b.root.insert(r); err != nil {
		return nil, err
	}
	if isStatic(segments) {
		b.indexStatic(pattern, r)
	}

	b.routes = append(b.routes, r)
	return r, nil
}

func isStatic(segments []Segment) bool {
	for _, s := range segments {
		if s.Kind != SegmentLiteral {
			return false
		}
	}
	return true
}

// indexStatic records a fully literal pattern under its exact path so Match
// can skip the tree walk. The tree already holds the same route; the index
// is a fast path, not a separate source of truth.
func (b *Builder) indexStatic(pattern string, r *Route) {
	n := b.static[pattern]
	if n == nil {
		n = &node{routes: make(map[string]*Route, 2)}
		b.static[pattern] = n
	}
	n.routes[r.Method] = r
}

// Seal freezes the route set and returns the immutable registry. The
// builder refuses further mutation afterwards.
func (b *Builder) Seal() *Registry {
	b.sealed = true
	return &Registry{root: &b.root, static: b.static, routes: b.routes}
}

// Registry is a sealed, immutable route set. Safe for concurrent use
// without synchronization.
type Registry struct {
	root   *node
	static map[string]*node
	routes []*Route
}

// Routes returns all registered routes in registration order.
func (reg *Registry) Routes() []*Route {
	return reg.routes
}

// Match resolves a concrete (method, path) pair.
//
// Outcomes:
//   - a *Match with the route and raw path parameter captures
//   - ErrNotFound when no pattern covers the path
//   - *MethodNotAllowedError when the path is covered but not for this
//     method, carrying the sorted union of methods across every shape
//     covering the path
//
// Shapes are tried most specific first, per method: a literal route
// registered for one method does not hide a dynamic or wildcard route
// registered for another. Match is a pure function of its inputs: the
// same pair always yields the same outcome.
func (reg *Registry) Match(method, path string) (*Match, error) {
	method = strings.ToUpper(method)

	// The full-path index resolves only when it serves the method;
	// otherwise a broader shape may still cover the path.
	if n := reg.static[path]; n != nil {
		if r := n.routes[method]; r != nil {
			return &Match{Route: r}, nil
		}
	}

	candidates := reg.root.matchAll(path)
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	for _, c := range candidates {
		if r := c.routes[method]; r != nil {
			return &Match{Route: r, Params: c.params}, nil
		}
	}
	return nil, &MethodNotAllowedError{Method: method, Allow: mergeAllow(candidates)}
}
