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
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache configuration defaults.
const (
	DefaultPositiveTTL   = 5 * time.Minute
	DefaultNegativeTTL   = 30 * time.Second
	DefaultMaxEntries    = 10_000
	DefaultSweepInterval = time.Minute
)

// CacheConfig tunes the token cache. Zero fields take the defaults above.
type CacheConfig struct {
	// PositiveTTL bounds how long a successful verification is reused.
	// The effective TTL is additionally clamped to the identity's own
	// ValidUntil, so a short-lived token never outlives itself in cache.
	PositiveTTL time.Duration

	// NegativeTTL bounds how long an invalid-token verdict is reused.
	// Kept short so revocation checks are not masked for long, while
	// still absorbing bursts of repeated invalid attempts.
	NegativeTTL time.Duration

	// MaxEntries caps the cache; the least recently used entry is
	// evicted beyond it.
	MaxEntries int

	// SweepInterval is how often the background sweep drops expired
	// entries. Expired entries are also dropped lazily on lookup, so the
	// sweep only bounds memory, never correctness.
	SweepInterval time.Duration
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.PositiveTTL == 0 {
		c.PositiveTTL = DefaultPositiveTTL
	}
	if c.NegativeTTL == 0 {
		c.NegativeTTL = DefaultNegativeTTL
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// cacheEntry is one verification verdict keyed by token fingerprint.
// A nil identity with a non-nil err is a cached negative.
type cacheEntry struct {
	key       string
	identity  *Identity
	err       error
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TokenCache memoizes bearer-token verification verdicts. Lookups are O(1)
// via a hash map; a doubly linked list keeps LRU order for eviction when
// the entry cap is reached. Concurrent misses for the same token are
// deduplicated so the verifier runs once per fingerprint at a time.
type TokenCache struct {
	cfg      CacheConfig
	items    map[string]*list.Element
	eviction *list.List
	group    singleflight.Group
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
}

// NewTokenCache creates a token cache and starts its background sweep.
// Call Close to stop the sweep.
func NewTokenCache(cfg CacheConfig) *TokenCache {
	c := &TokenCache{
		cfg:      cfg.withDefaults(),
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		done:     make(chan struct{}),
	}
	if c.cfg.SweepInterval > 0 {
		go c.sweep()
	}
	return c
}

// Fingerprint returns the cache key for a token. Tokens are never stored
// verbatim; only their SHA-256 is kept.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyBearer parses an Authorization header value and verifies the
// credential through the cache. See [TokenCache.Verify].
func (c *TokenCache) VerifyBearer(ctx context.Context, header string, verify Verifier) (*Identity, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return nil, err
	}
	return c.Verify(ctx, token, verify)
}

// Verify returns the cached verdict for token when present and unexpired;
// otherwise it invokes verify once (deduplicating concurrent callers),
// stores the verdict, and returns it.
//
// Successful verdicts live for the positive TTL clamped to the identity's
// ValidUntil. ErrInvalidToken verdicts live for the negative TTL. Any
// other verifier error is returned uncached so transient provider outages
// do not poison the cache.
func (c *TokenCache) Verify(ctx context.Context, token string, verify Verifier) (*Identity, error) {
	fp := Fingerprint(token)

	if id, err, ok := c.lookup(fp); ok {
		return id, err
	}

	v, err, _ := c.group.Do(fp, func() (any, error) {
		// A concurrent caller may have populated the entry between the
		// miss and the flight starting.
		if id, err, ok := c.lookup(fp); ok {
			return id, err
		}

		id, err := verify(ctx, token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.store(fp, nil, err, c.cfg.NegativeTTL)
			}
			return nil, err
		}

		ttl := c.cfg.PositiveTTL
		if !id.ValidUntil.IsZero() {
			if remaining := time.Until(id.ValidUntil); remaining < ttl {
				ttl = remaining
			}
		}
		if ttl <= 0 {
			// The verifier vouched for an already-expired identity.
			return nil, ErrInvalidToken
		}
		c.store(fp, id, nil, ttl)
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

// lookup returns the unexpired verdict for fp. Expired entries are removed
// on the spot.
func (c *TokenCache) lookup(fp string) (*Identity, error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[fp]
	if !ok {
		return nil, nil, false
	}
	e := elem.Value.(*cacheEntry)
	if e.expired(time.Now()) {
		c.removeElement(elem)
		return nil, nil, false
	}
	c.eviction.MoveToFront(elem)
	return e.identity, e.err, true
}

func (c *TokenCache) store(fp string, id *Identity, verdict error, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	expiresAt := time.Now().Add(ttl)

	if elem, ok := c.items[fp]; ok {
		e := elem.Value.(*cacheEntry)
		e.identity = id
		e.err = verdict
		e.expiresAt = expiresAt
		c.eviction.MoveToFront(elem)
		return
	}

	if len(c.items) >= c.cfg.MaxEntries {
		c.evictOldest()
	}

	elem := c.eviction.PushFront(&cacheEntry{key: fp, identity: id, err: verdict, expiresAt: expiresAt})
	c.items[fp] = elem
}

// Invalidate drops the verdict for a token, forcing the next Verify to hit
// the verifier.
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[Fingerprint(token)]; ok {
		c.removeElement(elem)
	}
}

// Len returns the current entry count.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the background sweep. Idempotent.
func (c *TokenCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *TokenCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *TokenCache) removeElement(elem *list.Element) {
	e := elem.Value.(*cacheEntry)
	c.eviction.Remove(elem)
	delete(c.items, e.key)
}

// sweep periodically drops expired entries so idle caches do not pin
// memory until the next lookup.
func (c *TokenCache) sweep() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for elem := c.eviction.Back(); elem != nil; {
				prev := elem.Prev()
				if elem.Value.(*cacheEntry).expired(now) {
					c.removeElement(elem)
				}
				elem = prev
			}
			c.mu.Unlock()
		}
	}
}
