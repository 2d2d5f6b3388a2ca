package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// Burst throttles each client IP to perMinute requests. It sits in front of
// the daily chat quota and only guards against request floods. A
// non-positive limit disables it.
func Burst(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests. Slow down."}` + "\n"))
		}),
	)
}
