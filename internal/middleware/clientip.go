package middleware

import (
	"net/http"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ClientIP rewrites RemoteAddr from X-Forwarded-For / X-Real-IP only when
// the service sits behind a trusted proxy. Otherwise the peer address is
// kept so Burst cannot be bypassed with forged headers.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	if trustProxy {
		return chiMiddleware.RealIP
	}
	return func(next http.Handler) http.Handler {
		return next
	}
}
