package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"carbid/pkg/logger"
)

// RedisRateLimiter enforces a fixed-window request limit per client using a
// redis counter with a TTL. The first request in a window creates the key and
// sets its expiry; subsequent requests only increment.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *logger.Logger
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, log *logger.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Allow reports whether the client identified by key may proceed. Redis
// unavailability fails open: the request is admitted and the error logged.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("rate_limit_%s", key)

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.log.Warn("Rate limit check failed, admitting request", "key", key, "error", err)
		return true
	}

	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.log.Warn("Failed to set rate limit TTL", "key", key, "error", err)
		}
	}

	return count <= int64(rl.limit)
}

func ClientRateLimit(limiter *RedisRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !limiter.Allow(r.Context(), key) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", requestIDFrom(r),
					"client", key,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too Many Requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if userID := r.URL.Query().Get("userId"); userID != "" {
		return "user_" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
