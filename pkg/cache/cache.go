// Package cache stores downgraded module sources keyed by their content.
//
// A module whose source, target and tool version are unchanged since the last
// build reuses the cached output instead of being parsed and rewritten again.
// Backends:
//   - [NullCache]: never stores anything (--no-cache, tests)
//   - [FileCache]: one JSON file per entry under the user cache directory
//   - [MemoryCache]: bounded in-process LRU, used for watch-free batch runs
//     and as the test double for shared backends
//   - [RedisCache]: shared cache for CI fleets building the same sources
//
// Keys come from a [Keyer], so the key layout can be namespaced per project
// with [NewScopedKeyer] on shared backends.
package cache

import (
	"context"
	"time"
)

// TTLTransform bounds how long a downgraded module stays cached. Keys are
// content-addressed, so expiry only reclaims space.
const TTLTransform = 30 * 24 * time.Hour

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and true, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backend's resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// TransformKey identifies the downgrade of source for a target descriptor.
	TransformKey(source []byte, opts TransformKeyOpts) string
}

// TransformKeyOpts holds everything besides the source text that changes
// the downgrade output.
type TransformKeyOpts struct {
	Target  string // canonical target descriptor, e.g. "es5+arrow-functions"
	Version string // tool version; a new release invalidates old entries
}

// DefaultKeyer produces unprefixed content-addressed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// TransformKey returns "transform:<sha256>" over the source hash and opts.
func (DefaultKeyer) TransformKey(source []byte, opts TransformKeyOpts) string {
	return hashKey("transform", Hash(source), opts.Target, opts.Version)
}
