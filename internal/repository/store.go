package repository

import (
	"context"
	"time"
)

// Store persists per-client request timestamps (Unix milliseconds, oldest first).
// Implementations must be concurrency-safe. A Store on its own gives no atomicity
// across a Get/Set pair; callers that need it either serialize access themselves
// or use a store that also implements WindowRecorder.
type Store interface {
	// Get returns the recorded timestamps for key, or nil when none exist.
	Get(ctx context.Context, key string) ([]int64, error)

	// Set replaces the timestamps for key. ttl bounds how long an untouched
	// entry may be retained; zero means no expiry.
	Set(ctx context.Context, key string, timestamps []int64, ttl time.Duration) error

	// Delete drops every timestamp recorded for key.
	Delete(ctx context.Context, key string) error
}

// WindowRecorder is implemented by stores that can prune, count and append in one
// atomic step, which is what a multi-instance deployment needs for a global quota.
type WindowRecorder interface {
	// Record drops timestamps at or before now-windowMs, and appends now when fewer
	// than limit remain. It reports whether now was appended, the oldest retained
	// timestamp, and the count after the operation.
	Record(ctx context.Context, key string, now, windowMs, limit int64) (allowed bool, oldest int64, count int64, err error)
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
