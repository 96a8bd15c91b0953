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

package codec

import "io"

// Default decode limits. They bound worst-case memory and CPU from
// adversarial input and are enforced while streaming, never after the fact.
const (
	// DefaultMaxBodySize is the default maximum body size (10 MiB).
	DefaultMaxBodySize = 10 << 20

	// DefaultMaxDepth is the default maximum nesting depth.
	DefaultMaxDepth = 32

	// DefaultMaxFields is the default maximum total field/element count.
	DefaultMaxFields = 1000
)

// Limits configures decode resource bounds. A zero field means the
// corresponding default applies.
type Limits struct {
	MaxBodySize int64 // maximum body bytes
	MaxDepth    int   // maximum nesting depth
	MaxFields   int   // maximum total object members + array elements
}

// DefaultLimits returns the default decode limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBodySize: DefaultMaxBodySize,
		MaxDepth:    DefaultMaxDepth,
		MaxFields:   DefaultMaxFields,
	}
}

// normalized fills zero fields with defaults.
func (l Limits) normalized() Limits {
	if l.MaxBodySize == 0 {
		l.MaxBodySize = DefaultMaxBodySize
	}
	if l.MaxDepth == 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxFields == 0 {
		l.MaxFields = DefaultMaxFields
	}
	return l
}

// limitedReader wraps r and fails with a [LimitError] once more than max
// bytes have been read. Unlike io.LimitReader it distinguishes "input ended"
// from "input too large": decoding never silently truncates.
type limitedReader struct {
	r   io.Reader
	n   int64
	max int64
}

func newLimitedReader(r io.Reader, max int64) *limitedReader {
	return &limitedReader{r: r, max: max}
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	lr.n += int64(n)
	if lr.n > lr.max {
		return n, &LimitError{Limit: LimitBodySize, Max: lr.max}
	}
	return n, err
}

// counter tracks the total number of fields and elements seen during a
// decode. Shared by all decoders so aggregate limits hold across formats.
type counter struct {
	n        int
	max      int
	maxDepth int
}

func (c *counter) depthExceeded() error {
	return &LimitError{Limit: LimitDepth, Max: int64(c.maxDepth)}
}

func (c *counter) add() error {
	c.n++
	if c.n > c.max {
		return &LimitError{Limit: LimitFields, Max: int64(c.max)}
	}
	return nil
}
