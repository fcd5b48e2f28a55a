package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/metrics"
)

// Logging logs each request on entry and exit and records it in httpMetrics.
// Either argument may be nil.
func Logging(logg *logger.Logger, httpMetrics *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	info := func(*http.Request, map[string]any, string) {}
	if logg != nil {
		info = func(r *http.Request, fields map[string]any, msg string) {
			logg.Info(logg.WithFields(r.Context(), fields), msg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			info(r, map[string]any{"method": r.Method, "path": r.URL.Path}, "request.start")

			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)

			took := time.Since(began)
			status := rw.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			httpMetrics.Observe(r.Method, route, status, took)

			info(r, map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      status,
				"duration_ms": took.Milliseconds(),
				"bytes":       rw.BytesWritten(),
			}, "request.complete")
		})
	}
}
