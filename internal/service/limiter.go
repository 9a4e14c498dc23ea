package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"mediagate/internal/repository"
)

// UnknownClient is used when no identifier can be derived from the request.
const UnknownClient = "unknown"

// Policy describes a sliding window rate limit.
type Policy struct {
	WindowMs    int64 // window size, milliseconds
	MaxRequests int64 // requests allowed per window
}

// DefaultPolicy allows 10 requests per minute per client.
var DefaultPolicy = Policy{WindowMs: 60_000, MaxRequests: 10}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int64 // set when !Allowed
	Limit             int64
	Remaining         int64
	ResetAt           time.Time // when the oldest counted request leaves the window
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.now = now }
}

// Limiter bounds the request rate of each client independently using a
// sliding window of request timestamps.
type Limiter struct {
	store  repository.Store
	policy Policy
	now    func() time.Time

	// serializes Get/Set for stores that can't record atomically
	mu sync.Mutex
}

// NewLimiter constructs a Limiter.
func NewLimiter(s repository.Store, p Policy, opts ...LimiterOption) *Limiter {
	l := &Limiter{store: s, policy: p, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// CheckAndRecord evaluates clientID's window and, when under quota, records
// the current request in it.
func (l *Limiter) CheckAndRecord(ctx context.Context, clientID string) (Decision, error) {
	key := normalizeClient(clientID)
	now := l.now().UnixMilli()

	if wr, ok := l.store.(repository.WindowRecorder); ok {
		allowed, oldest, count, err := wr.Record(ctx, key, now, l.policy.WindowMs, l.policy.MaxRequests)
		if err != nil {
			return Decision{}, fmt.Errorf("record %s: %w", key, err)
		}
		return l.decide(allowed, oldest, count, now), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	recent, err := l.window(ctx, key, now)
	if err != nil {
		return Decision{}, err
	}
	if int64(len(recent)) >= l.policy.MaxRequests {
		return l.decide(false, recent[0], int64(len(recent)), now), nil
	}
	recent = append(recent, now)
	if err := l.store.Set(ctx, key, recent, time.Duration(l.policy.WindowMs)*time.Millisecond); err != nil {
		return Decision{}, fmt.Errorf("store %s: %w", key, err)
	}
	return l.decide(true, recent[0], int64(len(recent)), now), nil
}

// Peek reports clientID's current standing without recording a request.
func (l *Limiter) Peek(ctx context.Context, clientID string) (Decision, error) {
	now := l.now().UnixMilli()
	recent, err := l.window(ctx, normalizeClient(clientID), now)
	if err != nil {
		return Decision{}, err
	}
	oldest := now
	if len(recent) > 0 {
		oldest = recent[0]
	}
	return l.decide(int64(len(recent)) < l.policy.MaxRequests, oldest, int64(len(recent)), now), nil
}

// Reset clears clientID's window.
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	return l.store.Delete(ctx, normalizeClient(clientID))
}

// window returns the timestamps still inside the window ending at now.
func (l *Limiter) window(ctx context.Context, key string, now int64) ([]int64, error) {
	all, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	recent := all[:0:0]
	for _, ts := range all {
		if now-ts < l.policy.WindowMs {
			recent = append(recent, ts)
		}
	}
	return recent, nil
}

func (l *Limiter) decide(allowed bool, oldest, count, now int64) Decision {
	resetMs := oldest + l.policy.WindowMs
	d := Decision{
		Allowed:   allowed,
		Limit:     l.policy.MaxRequests,
		Remaining: l.policy.MaxRequests - count,
		ResetAt:   time.UnixMilli(resetMs),
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		d.RetryAfterSeconds = ceilSeconds(resetMs - now)
	}
	return d
}

// ceilSeconds rounds a millisecond duration up to whole seconds, never negative.
func ceilSeconds(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}

func normalizeClient(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return UnknownClient
	}
	return id
}
