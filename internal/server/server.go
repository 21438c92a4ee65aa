// package server contains the routing and OAuth callback pieces for the
// temporary localhost server used during authentication.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/coaster/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with
// additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is the interface for request handlers that own their routes.
type Handler interface {
	http.Handler
	Routes() []string // path patterns this handler serves
}

// Router registers handlers, applies middleware, and serves HTTP.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Logging returns [Middleware] that assigns each request an ID and logs
// it with method, path, and elapsed time.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.GenerateID()
			w.Header().Set("X-Request-ID", id)

			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				"request_id", id,
				"method", r.Method, "path", r.URL.Path,
				"elapsed", time.Since(start))
		})
	}
}
