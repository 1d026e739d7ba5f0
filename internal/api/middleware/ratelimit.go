package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/edgegraph/chatd/internal/api/response"
	"github.com/edgegraph/chatd/internal/repository/redis"
	"github.com/rs/zerolog/log"
)

// RateLimitMiddleware throttles callers by remote IP
type RateLimitMiddleware struct {
	limiter *redis.RateLimiter
}

// NewRateLimitMiddleware creates a rate limit middleware
func NewRateLimitMiddleware(limiter *redis.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies the per-IP limit. A limiter failure fails open.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}

		status, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
		w.Header().Set("X-RateLimit-Reset", status.ResetAt.UTC().Format("2006-01-02T15:04:05Z"))

		if !status.Allowed {
			response.Errorf(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
