package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: int64(limit), window: window}
}

// MutationRateLimit caps roster mutations per user (per IP when
// unauthenticated) inside a sliding redis window. Keeps one user from
// spamming join/leave while slots are contested.
func (r *RateLimiter) MutationRateLimit() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.redis == nil {
			return e.Next()
		}

		ident := e.RealIP()
		if e.Auth != nil {
			ident = fmt.Sprintf("user:%s", e.Auth.Id)
		}
		key := fmt.Sprintf("ratelimit:mutation:%s", ident)
		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			// redis down: let the request through, the lock layer still guards correctness
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > r.limit {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many roster changes, slow down", nil)
		}

		return e.Next()
	}
}
