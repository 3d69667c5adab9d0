package middleware

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/utils"
)

// RateLimiter is a single token bucket shared by every request it guards.
// Webhook senders are not authenticated per caller, so there is no per-key
// bucket.
type RateLimiter struct {
	limiter *rate.Limiter
	limit   rate.Limit
	metrics observability.MetricsRecorder
	logger  *zap.Logger
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given
// burst. perSecond <= 0 disables limiting.
func NewRateLimiter(perSecond float64, burst int, metrics observability.MetricsRecorder, logger *zap.Logger) *RateLimiter {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	rl := &RateLimiter{
		metrics: metrics,
		logger:  logger,
	}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		rl.limit = rate.Limit(perSecond)
		rl.limiter = rate.NewLimiter(rl.limit, burst)
	}
	return rl
}

// Middleware answers 429 with Retry-After once the bucket is empty
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			route := routePattern(r)
			rl.metrics.RecordRateLimited(route)
			rl.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("route", route))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rl.limit)))
			_ = utils.WriteTooManyRequests(w, "Too many requests. Please try again later.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds is the time for one token to refill, at least one second
func retryAfterSeconds(limit rate.Limit) int {
	secs := int(math.Ceil(1.0 / float64(limit)))
	if secs < 1 {
		secs = 1
	}
	return secs
}
