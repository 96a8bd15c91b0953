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

import "slices"

// edge is a per-segment literal child. A linear scan over a small slice
// beats map hashing for typical fan-out.
type edge struct {
	label string
	node  *node
}

// paramEdge is the single dynamic child a node may have. Two patterns whose
// dynamic segments at the same position disagree on name or type are
// ambiguous and rejected at registration.
type paramEdge struct {
	name    string
	typ     ParamType
	pattern string // first pattern that created this edge, for error text
	node    *node
}

// wildcardEdge terminates matching and captures the remaining path. It is
// always terminal, so it carries routes directly instead of a child node.
type wildcardEdge struct {
	name    string
	pattern string
	routes  map[string]*Route
}

// node is one level of the prefix tree. Matching tries edges first, then
// param, then wildcard; this order is the precedence rule (literal beats
// dynamic beats wildcard).
type node struct {
	edges    []edge
	param    *paramEdge
	wildcard *wildcardEdge
	routes   map[string]*Route // terminal routes by method
}

func (n *node) findChild(segment string) *node {
	for i := range n.edges {
		if n.edges[i].label == segment {
			return n.edges[i].node
		}
	}
	return nil
}

func (n *node) findOrCreateChild(segment string) *node {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := &node{}
	n.edges = append(n.edges, edge{label: segment, node: child})
	return child
}

// insert places r into the tree, detecting shape conflicts and dynamic
// ambiguity as it walks.
func (n *node) insert(r *Route) error {
	current := n
	for _, seg := range r.Segments {
		switch seg.Kind {
		case SegmentLiteral:
			current = current.findOrCreateChild(seg.Value)

		case SegmentParam:
			if current.param == nil {
				current.param = &paramEdge{name: seg.Value, typ: seg.Type, pattern: r.Pattern, node: &node{}}
			} else if current.param.name != seg.Value || current.param.typ != seg.Type {
				return &ConflictError{
					Method:   r.Method,
					Pattern:  r.Pattern,
					Existing: current.param.pattern,
					Reason:   "dynamic segments at the same position must agree on name and type",
				}
			}
			current = current.param.node

		case SegmentWildcard:
			if current.wildcard == nil {
				current.wildcard = &wildcardEdge{name: seg.Value, pattern: r.Pattern, routes: make(map[string]*Route, 2)}
			} else if current.wildcard.name != seg.Value {
				return &ConflictError{
					Method:   r.Method,
					Pattern:  r.Pattern,
					Existing: current.wildcard.pattern,
					Reason:   "wildcard segments at the same position must agree on name",
				}
			}
			if existing := current.wildcard.routes[r.Method]; existing != nil {
				return &ConflictError{
					Method:   r.Method,
					Pattern:  r.Pattern,
					Existing: existing.Pattern,
					Reason:   "identical pattern shape already registered",
				}
			}
			current.wildcard.routes[r.Method] = r
			return nil
		}
	}

	if current.routes == nil {
		current.routes = make(map[string]*Route, 2)
	}
	if existing := current.routes[r.Method]; existing != nil {
		return &ConflictError{
			Method:   r.Method,
			Pattern:  r.Pattern,
			Existing: existing.Pattern,
			Reason:   "identical pattern shape already registered",
		}
	}
	current.routes[r.Method] = r
	return nil
}

// candidate is one terminal route set that covers a path, with the
// parameters captured along its branch.
type candidate struct {
	routes map[string]*Route
	params []Param
}

// matchAll gathers every terminal route set covering path, most specific
// shape first. The caller picks the first candidate that serves the
// request method; a route registered for one method therefore never
// shadows a less specific shape registered for another, and a 405 can
// merge the Allow sets of every shape covering the path.
//
// A trailing slash is significant: /items/42/ resolves no plain terminal,
// though a wildcard still captures a remainder that ends in a slash. An
// empty interior segment is never captured by a dynamic edge.
func (n *node) matchAll(path string) []candidate {
	if path == "" || path == "/" {
		if len(n.routes) == 0 {
			return nil
		}
		return []candidate{{routes: n.routes}}
	}
	start := 0
	if path[0] == '/' {
		start = 1
	}
	trailing := path[len(path)-1] == '/'
	return n.collect(path, start, trailing, nil, nil)
}

// collect walks depth first, trying the literal edge, then the dynamic
// edge, then the wildcard at each level. Visit order is the precedence
// order, so out is sorted most specific first.
func (n *node) collect(path string, start int, trailing bool, params []Param, out []candidate) []candidate {
	if start >= len(path) {
		if !trailing && len(n.routes) > 0 {
			out = append(out, candidate{routes: n.routes, params: slices.Clone(params)})
		}
		return out
	}

	end := start
	for end < len(path) && path[end] != '/' {
		end++
	}
	segment := path[start:end]

	if next := n.findChild(segment); next != nil {
		out = next.collect(path, end+1, trailing, params, out)
	}
	if n.param != nil && segment != "" {
		params = append(params, Param{Name: n.param.name, Value: segment})
		out = n.param.node.collect(path, end+1, trailing, params, out)
		params = params[:len(params)-1]
	}
	if n.wildcard != nil {
		captured := append(slices.Clone(params), Param{Name: n.wildcard.name, Value: path[start:]})
		out = append(out, candidate{routes: n.wildcard.routes, params: captured})
	}
	return out
}

// mergeAllow returns the sorted union of the methods served by candidates.
func mergeAllow(candidates []candidate) []string {
	set := make(map[string]struct{}, 4)
	for _, c := range candidates {
		for m := range c.routes {
			set[m] = struct{}{}
		}
	}
	allow := make([]string, 0, len(set))
	for m := range set {
		allow = append(allow, m)
	}
	slices.Sort(allow)
	return allow
}
