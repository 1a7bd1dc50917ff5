package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/keiba-ai/internal/metrics"
)

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func routeName(r *http.Request) string {
	if cr := mux.CurrentRoute(r); cr != nil {
		if tpl, err := cr.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// instrument logs each request and records its metrics.
func instrument(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			route := routeName(r)
			metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(sw.status), elapsed.Seconds())

			entry := log.WithFields(logrus.Fields{
				"method":  r.Method,
				"route":   route,
				"path":    r.URL.Path,
				"status":  sw.status,
				"latency": elapsed,
				"remote":  r.RemoteAddr,
			})
			switch {
			case sw.status >= 500:
				entry.Error("request failed")
			case sw.status >= 400:
				entry.Warn("client error")
			default:
				entry.Info("request completed")
			}
		})
	}
}
