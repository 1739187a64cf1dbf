// Package instrument wraps named units of work with call logging,
// wall-clock timing, and content-addressed memoization.
//
// The three concerns compose as middleware around a Unit. Logging and
// timing wrap memoization from the outside, so a cache hit still emits
// the "calling" and "cached result" events but no elapsed time, since
// the underlying work never ran.
package instrument

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Unit is a unit of work subject to instrumentation.
type Unit func() (any, error)

// Middleware wraps a Unit with a cross-cutting concern.
type Middleware func(Unit) Unit

// Chain applies middleware to a unit. The first middleware listed becomes
// the outermost wrapper.
func Chain(u Unit, mw ...Middleware) Unit {
	for i := len(mw) - 1; i >= 0; i-- {
		u = mw[i](u)
	}
	return u
}

// Logging emits a "calling" event before the unit runs.
func Logging(log *slog.Logger, name string) Middleware {
	return func(next Unit) Unit {
		return func() (any, error) {
			log.Info("calling unit", "unit", name)
			return next()
		}
	}
}

// Timing emits the unit's wall-clock duration after it runs.
func Timing(log *slog.Logger, name string) Middleware {
	return func(next Unit) Unit {
		return func() (any, error) {
			start := time.Now()
			result, err := next()
			log.Info("unit executed", "unit", name, "elapsed", time.Since(start))
			return result, err
		}
	}
}

// Memo short-circuits the unit when the cache already holds a result for
// key. Errors are not cached; a failed unit runs again on the next call.
func Memo(cache *Cache, log *slog.Logger, name, key string) Middleware {
	return func(next Unit) Unit {
		return func() (any, error) {
			if v, ok := cache.Get(key); ok {
				log.Info("returning cached result", "unit", name, "cached", true)
				return v, nil
			}
			result, err := next()
			if err != nil {
				return nil, err
			}
			cache.Set(key, result)
			return result, nil
		}
	}
}

// Key builds a deterministic, content-based cache key from the unit name
// and its arguments: the unit name plus the md5 digest of a canonical
// string form of the arguments. Two calls with equal argument values
// produce the same key regardless of object identity.
func Key(name string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = canonical(a)
	}
	sum := md5.Sum([]byte(strings.Join(parts, "\x1f")))
	return name + ":" + hex.EncodeToString(sum[:])
}

// canonical renders an argument value in a stable form. Maps need an
// explicit key sort since Go randomizes iteration order; everything the
// pipeline passes is either a scalar, a string, or a date-keyed rate map.
func canonical(arg any) string {
	switch v := arg.(type) {
	case map[string]float64:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%s=%v", k, v[k])
		}
		b.WriteByte('}')
		return b.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Cache is a process-lifetime memoization store. It is unbounded by
// design: entries are never evicted, which is acceptable for the session
// scale it serves and is a documented limitation rather than a bug.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewCache creates an empty memoization cache. Each Instrumentor owns its
// cache, so independent pipelines (and tests) do not share state.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Get retrieves a memoized value.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	return v, ok
}

// Set stores a memoized value.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
}

// Len reports the number of memoized entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush drops all memoized entries.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]any)
	c.mu.Unlock()
}

// Instrumentor bundles a logger and a memo cache and applies the standard
// composition (logging around memoization around timing) to units of work.
type Instrumentor struct {
	log   *slog.Logger
	cache *Cache
}

// New creates an Instrumentor with a fresh cache.
func New(log *slog.Logger) *Instrumentor {
	return &Instrumentor{log: log, cache: NewCache()}
}

// Cache exposes the underlying memo cache.
func (in *Instrumentor) Cache() *Cache { return in.cache }

// WithCache returns an Instrumentor sharing this one's logger but backed
// by the given cache, so memoization can span several pipelines.
func (in *Instrumentor) WithCache(cache *Cache) *Instrumentor {
	return &Instrumentor{log: in.log, cache: cache}
}

// Do runs fn as a named unit keyed by args through the standard
// middleware stack.
func (in *Instrumentor) Do(name string, fn Unit, args ...any) (any, error) {
	key := Key(name, args...)
	wrapped := Chain(fn,
		Logging(in.log, name),
		Memo(in.cache, in.log, name, key),
		Timing(in.log, name),
	)
	return wrapped()
}
