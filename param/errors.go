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
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the sentinel for request validation failures.
// Use errors.Is(err, ErrValidation) to detect them.
var ErrValidation = errors.New("param: validation failed")

// Violation codes carried by [FieldError.Code]. Stable across releases;
// clients may switch on them.
const (
	CodeMissing   = "missing"
	CodeType      = "type"
	CodeGt        = "gt"
	CodeGe        = "ge"
	CodeLt        = "lt"
	CodeLe        = "le"
	CodeMinLength = "min_length"
	CodeMaxLength = "max_length"
	CodePattern   = "pattern"
	CodeEnum      = "enum"
	CodeSchema    = "schema"
)

// FieldError is a single violation on a single parameter. A request can
// carry many; they are collected in [Errors], never reported one at a time.
type FieldError struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Name, e.Source, e.Message)
}

// Unwrap returns [ErrValidation] for errors.Is compatibility.
func (e FieldError) Unwrap() error { return ErrValidation }

// HTTPStatus implements the status-carrying error contract.
func (e FieldError) HTTPStatus() int { return 422 }

// Errors aggregates every violation found in a single validation pass.
type Errors struct {
	Fields []FieldError `json:"errors"`
}

func (v *Errors) Error() string {
	if len(v.Fields) == 0 {
		return "param: no validation errors"
	}
	if len(v.Fields) == 1 {
		return v.Fields[0].Error()
	}
	msgs := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(v.Fields), strings.Join(msgs, "; "))
}

// Unwrap returns [ErrValidation] for errors.Is compatibility.
func (v *Errors) Unwrap() error { return ErrValidation }

// HTTPStatus implements the status-carrying error contract.
func (v *Errors) HTTPStatus() int { return 422 }

// Code identifies the aggregate failure class.
func (v *Errors) Code() string { return "validation_error" }

// Add appends a violation.
func (v *Errors) Add(name string, source Source, code, message string) {
	v.Fields = append(v.Fields, FieldError{
		Name:    name,
		Source:  source.String(),
		Code:    code,
		Message: message,
	})
}

// Empty reports whether no violations were recorded.
func (v *Errors) Empty() bool { return len(v.Fields) == 0 }
