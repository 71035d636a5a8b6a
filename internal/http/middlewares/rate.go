package middlewares

import (
	"net/http"
	"strconv"

	"github.com/dropDatabas3/notesauth/internal/http/errors"
	"github.com/dropDatabas3/notesauth/internal/observability/logger"
	"github.com/dropDatabas3/notesauth/internal/rate"
)

// WithRateLimit limits requests per client IP as resolved by ips. A nil
// limiter disables it; a limiter error lets the request through.
func WithRateLimit(l rate.Limiter, ips *ClientIP) Middleware {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), ips.Of(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				errors.WriteError(w, r, errors.ErrRateLimited)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
