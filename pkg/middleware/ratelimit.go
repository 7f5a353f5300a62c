package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
// When it may not, retryAfter is how long the client should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// idleLimiterTTL is how long an unused per-client limiter is kept in memory.
const idleLimiterTTL = 10 * time.Minute

// MemoryLimiter is a per-key token bucket held in process memory.
// Each key may burst up to requests and then refills evenly across window.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*memoryEntry
	limit    rate.Limit
	burst    int
	interval time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter allowing requests per window for each key.
func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	if requests < 1 {
		requests = 1
	}
	interval := window / time.Duration(requests)
	return &MemoryLimiter{
		limiters: make(map[string]*memoryEntry),
		limit:    rate.Every(interval),
		burst:    requests,
		interval: interval,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.collectLocked(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &memoryEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		return true, 0, nil
	}
	return false, l.interval, nil
}

// collectLocked drops limiters that have been idle for idleLimiterTTL.
func (l *MemoryLimiter) collectLocked(now time.Time) {
	if now.Sub(l.lastGC) < idleLimiterTTL {
		return
	}
	l.lastGC = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= idleLimiterTTL {
			delete(l.limiters, key)
		}
	}
}

// RedisLimiter is a fixed-window counter shared by every engine instance
// using the same Redis.
type RedisLimiter struct {
	client   redis.Cmdable
	prefix   string
	requests int64
	window   time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter allowing requests per window for each key.
// Keys are stored under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string, requests int, window time.Duration) *RedisLimiter {
	if requests < 1 {
		requests = 1
	}
	return &RedisLimiter{
		client:   client,
		prefix:   prefix,
		requests: int64(requests),
		window:   window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	if count <= l.requests {
		return true, 0, nil
	}

	ttl, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl < 0 {
		// Counter lost its expiry; start a fresh window.
		_ = l.client.PExpire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return false, ttl, nil
}

// RateLimit returns middleware that rejects requests over the limit with 429.
// Requests are keyed by client address. A limiter error lets the request
// through so a Redis outage does not lock users out.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := limiter.Allow(r.Context(), r.Method+" "+r.URL.Path+" "+ClientIP(r))
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				next(w, r)
				return
			}
			if !allowed {
				writeTooManyRequests(w, retryAfter, logger)
				return
			}
			next(w, r)
		}
	}
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter time.Duration, logger *zap.Logger) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "Too many requests, try again later",
	}); err != nil {
		logger.Error("Failed to write rate limit response", zap.Error(err))
	}
}
