package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a fixed window counter per client IP kept in Redis.
type RateLimiter struct {
	rdb         redis.Cmdable
	maxRequests int64
	window      time.Duration
	log         logrus.FieldLogger
}

func NewRateLimiter(rdb redis.Cmdable, maxRequests int, window time.Duration, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{
		rdb:         rdb,
		maxRequests: int64(maxRequests),
		window:      window,
		log:         log.WithField("component", "rate_limiter"),
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)
		key := fmt.Sprintf("rate_limit:site:%s", ip)

		allowed, err := rl.allow(r.Context(), key)
		if err != nil {
			utils.RespondInternal(w, rl.log, err, "Internal Error")
			return
		}
		if !allowed {
			rl.log.WithField("ip", ip).Warn("rate limit exceeded")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			utils.RespondAppError(w, rl.log, &apperr.Error{
				Kind:    apperr.KindRateLimited,
				Message: "Too many requests, try again later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	current, err := rl.rdb.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return false, err
	}

	if current >= rl.maxRequests {
		return false, nil
	}

	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}

	return count <= rl.maxRequests, nil
}
