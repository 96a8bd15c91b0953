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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pathwaykit/pathway/param"
)

// ProblemContentType is the media type for rendered failures, per RFC 9457.
const ProblemContentType = "application/problem+json"

// Failure is a structured request rejection. Every per-request error path
// produces one; they are expected outcomes, mapped to a response, never
// treated as exceptional.
type Failure struct {
	// Status is the HTTP status the transport should respond with.
	Status int `json:"status"`

	// Code is a stable machine-readable failure class.
	Code string `json:"code"`

	// Title is a short human-readable summary of the class.
	Title string `json:"title"`

	// Detail describes this occurrence.
	Detail string `json:"detail,omitempty"`

	// Allow carries the permitted methods for 405 responses.
	Allow []string `json:"allow,omitempty"`

	// Errors carries the per-parameter violations for 422 responses.
	Errors []param.FieldError `json:"errors,omitempty"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pathway: %d %s: %s", f.Status, f.Code, f.Title)
}

// AllowHeader renders the Allow response header value for 405 failures.
func (f *Failure) AllowHeader() string {
	return strings.Join(f.Allow, ", ")
}

// Problem renders the failure as an RFC 9457 problem detail document.
// instance is the request path, recorded as the problem instance; baseURL
// prefixes the code to form the problem type URI and may be empty, in
// which case the type is "about:blank".
func (f *Failure) Problem(baseURL, instance string) ProblemDetail {
	typ := "about:blank"
	if baseURL != "" {
		typ = strings.TrimSuffix(baseURL, "/") + "/" + f.Code
	}

	extensions := map[string]any{"code": f.Code}
	if len(f.Allow) > 0 {
		extensions["allow"] = f.Allow
	}
	if len(f.Errors) > 0 {
		extensions["errors"] = f.Errors
	}

	return ProblemDetail{
		Type:       typ,
		Title:      f.Title,
		Status:     f.Status,
		Detail:     f.Detail,
		Instance:   instance,
		Extensions: extensions,
	}
}

// ProblemDetail is an RFC 9457 problem detail document. Extensions are
// marshaled inline alongside the standard members.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

// MarshalJSON merges extension members inline, protecting the reserved
// standard member names.
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extensions {
		switch k {
		case "type", "title", "status", "detail", "instance":
		default:
			m[k] = v
		}
	}
	return json.Marshal(m)
}

func notFoundFailure(path string) *Failure {
	return &Failure{
		Status: 404,
		Code:   "not_found",
		Title:  "Not Found",
		Detail: fmt.Sprintf("no route matches %s", path),
	}
}

func methodNotAllowedFailure(method string, allow []string) *Failure {
	return &Failure{
		Status: 405,
		Code:   "method_not_allowed",
		Title:  "Method Not Allowed",
		Detail: fmt.Sprintf("method %s is not allowed for this path", method),
		Allow:  allow,
	}
}

func badBodyFailure(detail string) *Failure {
	return &Failure{
		Status: 400,
		Code:   "invalid_body",
		Title:  "Invalid Request Body",
		Detail: detail,
	}
}

func invalidQueryFailure(detail string) *Failure {
	return &Failure{
		Status: 400,
		Code:   "invalid_query",
		Title:  "Invalid Query String",
		Detail: detail,
	}
}

func unsupportedMediaFailure(contentType string) *Failure {
	return &Failure{
		Status: 415,
		Code:   "unsupported_media_type",
		Title:  "Unsupported Media Type",
		Detail: fmt.Sprintf("content type %q is not supported", contentType),
	}
}

func unauthorizedFailure(detail string) *Failure {
	return &Failure{
		Status: 401,
		Code:   "unauthorized",
		Title:  "Unauthorized",
		Detail: detail,
	}
}

func forbiddenFailure(scope string) *Failure {
	return &Failure{
		Status: 403,
		Code:   "forbidden",
		Title:  "Forbidden",
		Detail: fmt.Sprintf("missing required scope %q", scope),
	}
}

func validationFailure(errs *param.Errors) *Failure {
	return &Failure{
		Status: 422,
		Code:   "validation_error",
		Title:  "Validation Error",
		Detail: fmt.Sprintf("%d parameter(s) failed validation", len(errs.Fields)),
		Errors: errs.Fields,
	}
}
