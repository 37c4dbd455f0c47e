// Package cache provides a small key/value cache abstraction with per-entry TTL.
// This is part of the platform layer and contains no business logic.
//
// Two implementations are provided: an in-process TTL map for single-instance
// deployments and a Redis-backed store for multi-instance deployments where
// entries must be shared across processes.
package cache

import (
	"context"
	"time"
)

// Cache stores string values under string keys with a per-entry TTL.
// Entries are replaced atomically; there is no partial mutation.
type Cache interface {
	// Get returns the value for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool)

	// Set stores value under key, replacing any existing entry.
	// A non-positive ttl stores the entry without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration)

	// Delete removes the entry for key if present.
	Delete(ctx context.Context, key string)
}
