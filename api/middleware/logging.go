package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// quietPrefixes are polled by health checkers and scrapers; only failures are logged.
var quietPrefixes = []string{"/health/", "/metrics"}

// Logging writes one access entry per request. Admin writes also log the
// declared upload size so slow media transfers can be told apart from slow
// database work.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if r.ContentLength > 0 {
				ctx = logg.WithField(ctx, "request_bytes", r.ContentLength)
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusOrOK()
			if status < http.StatusInternalServerError && isQuiet(r.URL.Path) {
				return
			}
			ctx = logg.WithFields(ctx, map[string]any{
				"route":          routePattern(r),
				"status":         status,
				"response_bytes": rec.bytes,
				"duration_ms":    time.Since(start).Milliseconds(),
			})
			switch {
			case status >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.failed")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
