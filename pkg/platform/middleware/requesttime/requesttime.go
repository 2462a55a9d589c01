// Package requesttime captures one "now" per request so every timestamp
// written while serving it agrees.
package requesttime

import (
	"net/http"

	"github.com/jonboulle/clockwork"

	"giveroute/pkg/requestcontext"
)

// Middleware stamps the request context with the real clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(clockwork.NewRealClock())(next)
}

// WithClock stamps the request context with clock.Now().
func WithClock(clock clockwork.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
