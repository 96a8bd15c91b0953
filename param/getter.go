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
	"net/http"
	"net/url"
)

// ValueGetter reads raw string values from one request source. Has reports
// presence independently of value: an empty string that was sent is
// present, a name that never appeared is not. That distinction is load
// bearing for optional-parameter semantics.
type ValueGetter interface {
	Get(name string) (string, bool)
	GetAll(name string) []string
	Has(name string) bool
}

// QueryGetter reads from parsed query values.
type QueryGetter url.Values

func (g QueryGetter) Get(name string) (string, bool) {
	vs, ok := g[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (g QueryGetter) GetAll(name string) []string { return g[name] }

func (g QueryGetter) Has(name string) bool {
	_, ok := g[name]
	return ok
}

// HeaderGetter reads from request headers using canonical MIME key lookup.
type HeaderGetter http.Header

func (g HeaderGetter) Get(name string) (string, bool) {
	vs := http.Header(g).Values(name)
	if len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (g HeaderGetter) GetAll(name string) []string { return http.Header(g).Values(name) }

func (g HeaderGetter) Has(name string) bool { return len(http.Header(g).Values(name)) > 0 }

// MapGetter reads from a plain single-valued map, used for cookies and path
// captures.
type MapGetter map[string]string

func (g MapGetter) Get(name string) (string, bool) {
	v, ok := g[name]
	return v, ok
}

func (g MapGetter) GetAll(name string) []string {
	if v, ok := g[name]; ok {
		return []string{v}
	}
	return nil
}

func (g MapGetter) Has(name string) bool {
	_, ok := g[name]
	return ok
}
