package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Metrics records request duration by route pattern so ids do not explode
// label cardinality.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.Observe(r.Method, routePattern(r), strconv.Itoa(rec.statusOrOK()), time.Since(start))
		})
	}
}
