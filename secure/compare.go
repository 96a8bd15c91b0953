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

// Package secure provides the security-sensitive request primitives:
// timing-safe secret comparison and bearer-token verification backed by a
// bounded, TTL-aware cache.
package secure

// ConstantTimeEquals reports whether a and b are byte-identical. Its
// running time depends only on the longer input's length, never on the
// position of the first differing byte and never on whether the lengths
// are equal, so it is safe for comparing secrets such as API keys.
//
// A length mismatch is folded into the accumulator rather than returned
// early; the loop always walks the longer input.
func ConstantTimeEquals(a, b []byte) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	var diff byte
	if len(a) != len(b) {
		diff = 1
	}
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		diff |= av ^ bv
	}
	return diff == 0
}
