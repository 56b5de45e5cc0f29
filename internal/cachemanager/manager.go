// Package cachemanager caches rendered widget content (embedded note
// sections, code block output) so refolding the same target after an edit
// elsewhere does not render it again.
package cachemanager

import (
	"context"
	"strings"
	"time"
)

// CacheManager stores values under string keys with a per-entry ttl.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	// DeletePrefix drops every key starting with prefix, which is how all
	// renders of one file are invalidated at once.
	DeletePrefix(ctx context.Context, prefix string) int
	Flush(ctx context.Context) error
}

// Key joins parts into a cache key. The first part should identify the
// source file so DeletePrefix(Key(file)) invalidates everything from it.
func Key[K ~string](parts ...string) K {
	return K(strings.Join(parts, keySep))
}

const keySep = "\x1f"

// FilePrefix is the DeletePrefix argument covering every key whose first
// part is file.
func FilePrefix(file string) string {
	return file + keySep
}
