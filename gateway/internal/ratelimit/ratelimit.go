// Package ratelimit applies a per-client sliding window backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/common/logging"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
	"github.com/leadgate/leadgate/gateway/internal/middleware"
)

const keyPrefix = "leadgate:ratelimit:"

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// slidingWindow trims entries older than the window, then admits the call
// only while the set holds fewer than limit members.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, ttl)
	return 1
end
return 0
`)

type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	seq    atomic.Uint64
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Allow records one call for key and reports whether it fits in the window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now().UnixNano()
	windowStart := now - r.window.Nanoseconds()
	ttl := int64(r.window/time.Second) + 1
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(r.seq.Add(1), 10)

	result, err := slidingWindow.Run(ctx, r.client, []string{keyPrefix + key},
		now, windowStart, r.limit, ttl, member).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(key).Inc()
	}
	return allowed, nil
}

// NoOpRateLimiter always allows requests.
type NoOpRateLimiter struct{}

func (NoOpRateLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}

// Middleware limits requests per authenticated client id, falling back to the
// client IP. Limiter errors fail open.
func Middleware(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := httputil.GetClientIP(r)
			if app := middleware.ApplicationFromContext(r.Context()); app != nil {
				key = app.ClientID
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
				allowed = true
			}
			if !allowed {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
