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
	"log/slog"
	"time"

	"github.com/pathwaykit/pathway/secure"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithMaxBodySize caps request body bytes.
func WithMaxBodySize(n int64) Option {
	return func(e *Engine) { e.limits.MaxBodySize = n }
}

// WithMaxDepth caps body nesting depth.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.limits.MaxDepth = n }
}

// WithMaxFields caps total body fields and elements, including multipart
// part count.
func WithMaxFields(n int) Option {
	return func(e *Engine) { e.limits.MaxFields = n }
}

// WithVerifier supplies the credential verifier invoked for routes that
// require authentication. Routes with RequireAuth fail registration when no
// verifier is configured.
func WithVerifier(v secure.Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithPositiveTokenTTL bounds reuse of successful token verifications.
func WithPositiveTokenTTL(d time.Duration) Option {
	return func(e *Engine) { e.cacheConfig.PositiveTTL = d }
}

// WithNegativeTokenTTL bounds reuse of invalid-token verdicts.
func WithNegativeTokenTTL(d time.Duration) Option {
	return func(e *Engine) { e.cacheConfig.NegativeTTL = d }
}

// WithMaxTokenEntries caps the token cache; LRU eviction applies beyond it.
func WithMaxTokenEntries(n int) Option {
	return func(e *Engine) { e.cacheConfig.MaxEntries = n }
}

// WithLogger sets the structured logger. The engine logs registration and
// seal events; per-request rejections are logged at debug level only, since
// they are expected outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches a metrics recorder. Without one the engine records
// nothing.
func WithMetrics(r *Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithProblemBaseURL sets the URI prefix for RFC 9457 problem type fields.
func WithProblemBaseURL(base string) Option {
	return func(e *Engine) { e.problemBase = base }
}
