package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/kv"
	"github.com/aiasylum/sanctuary/pkg/logging"
)

// RateLimiter enforces a fixed-window per-IP request limit using counters in
// the shared key-value store, so limits hold across gateway instances.
type RateLimiter struct {
	store  kv.Store
	logger *logging.ColoredLogger
	limit  int
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(store kv.Store, logger *logging.ColoredLogger, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{store: store, logger: logger, limit: limit, window: window}
}

// Allow reports whether a request from ip against endpoint fits in the
// current window, and how long until the window rolls over.
func (rl *RateLimiter) Allow(ctx context.Context, endpoint, ip string) (bool, time.Duration, error) {
	windowSecs := int64(rl.window.Seconds())
	now := time.Now().Unix()
	slot := now / windowSecs
	key := fmt.Sprintf("rl:%s:%s:%d", endpoint, ip, slot)

	count, err := rl.store.Incr(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		// First hit in this window; let the counter die with the window.
		if err := rl.store.Expire(ctx, key, rl.window+time.Second); err != nil {
			rl.logger.ComponentWarn(logging.ComponentGateway, "failed to expire rate limit key",
				zap.String("key", key), zap.Error(err))
		}
	}

	retryAfter := time.Duration((slot+1)*windowSecs-now) * time.Second
	return count <= int64(rl.limit), retryAfter, nil
}

// rateLimited wraps next with the gateway's limiter. The limiter failing is
// not the client's fault, so store errors fail open.
func (g *Gateway) rateLimited(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.limiter == nil {
			next(w, r)
			return
		}

		ip := httputil.ClientIP(r)
		allowed, retryAfter, err := g.limiter.Allow(r.Context(), endpoint, ip)
		if err != nil {
			g.logger.ComponentWarn(logging.ComponentGateway, "rate limiter unavailable, allowing request",
				zap.String("endpoint", endpoint), zap.Error(err))
			next(w, r)
			return
		}
		if !allowed {
			g.logger.ComponentWarn(logging.ComponentGateway, "rate limit exceeded",
				zap.String("endpoint", endpoint), zap.String("ip", ip))
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			httputil.WriteError(w, http.StatusTooManyRequests, "rate_limited",
				"Too many requests. Please slow down.")
			return
		}
		next(w, r)
	}
}
