package middleware

import (
	"net/http"
	"strconv"

	"gamemaker-server/metrics"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Metrics counts requests by method and response status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if m != nil {
				m.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			}
		})
	}
}
