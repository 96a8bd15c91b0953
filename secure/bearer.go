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

package secure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidToken is the sentinel a [Verifier] returns (possibly wrapped)
// when the credential is well formed but not valid: unknown, revoked, or
// expired. Only this failure class is cached negatively; any other verifier
// error is treated as transient and never cached.
var ErrInvalidToken = errors.New("secure: invalid token")

// MalformedCredentialError reports an authorization header value that does
// not carry a recognizable bearer credential.
type MalformedCredentialError struct {
	Reason string
}

func (e *MalformedCredentialError) Error() string {
	return fmt.Sprintf("secure: malformed credential: %s", e.Reason)
}

// HTTPStatus implements the status-carrying error contract.
func (e *MalformedCredentialError) HTTPStatus() int { return 401 }

// Code identifies the failure class.
func (e *MalformedCredentialError) Code() string { return "malformed_credential" }

// Identity is a successful verification result.
type Identity struct {
	Subject string
	Scopes  []string
	// ValidUntil bounds how long the identity may be trusted. Zero means
	// the verifier imposed no bound of its own.
	ValidUntil time.Time
}

// HasScope reports whether the identity carries the named scope.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier performs the actual credential check against an identity
// provider. It is the one outward call this package makes; retries and
// timeouts are the caller's policy, applied inside the verifier.
type Verifier func(ctx context.Context, token string) (*Identity, error)

// ParseBearer extracts the credential from an Authorization header value.
// The scheme comparison is case-insensitive per RFC 7235.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", &MalformedCredentialError{Reason: "empty authorization header"}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", &MalformedCredentialError{Reason: "authorization scheme is not Bearer"}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", &MalformedCredentialError{Reason: "empty bearer token"}
	}
	return token, nil
}
