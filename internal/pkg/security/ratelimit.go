package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "webhook:ratelimit:"

// RateLimitResult reports the outcome of one rate-limit check together with
// the metadata the provider receives on rejection.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter bounds webhook deliveries per client IP over a fixed window.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (RateLimitResult, error)
}

// RedisRateLimiter counts deliveries in Redis so the limit holds across
// replicas. INCR is atomic; the first hit in a window sets the expiry.
type RedisRateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, max int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, max: max, window: window}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := rateLimitKeyPrefix + key

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			return RateLimitResult{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := r.client.PTTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		ttl = r.window
	}

	res := RateLimitResult{
		Allowed:   count <= int64(r.max),
		Remaining: r.max - int(count),
		ResetAt:   time.Now().Add(ttl),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	return res, nil
}

// MemoryRateLimiter is the in-process fallback used in development and tests,
// where a shared Redis is not available. Expired windows are dropped lazily.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	max     int
	window  time.Duration
	now     func() time.Time
}

type memoryBucket struct {
	count   int
	resetAt time.Time
}

func NewMemoryRateLimiter(max int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		buckets: make(map[string]*memoryBucket),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &memoryBucket{resetAt: now.Add(m.window)}
		m.buckets[key] = b
	}
	b.count++

	remaining := m.max - b.count
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{
		Allowed:   b.count <= m.max,
		Remaining: remaining,
		ResetAt:   b.resetAt,
	}, nil
}
