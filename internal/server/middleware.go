package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"purchasedesk/internal/metrics"

	"github.com/sirupsen/logrus"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		elapsed := time.Since(started)
		metrics.ObserveHTTPRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rw.statusCode), elapsed.Seconds())

		entry := s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": elapsed.Milliseconds(),
		})
		if rw.statusCode >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Info("http request")
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Only strip if path is not root and has trailing slash
		if path != "/" && strings.HasSuffix(path, "/") {
			newURL := *r.URL
			newURL.Path = strings.TrimSuffix(path, "/")

			// GET can follow a redirect, other methods would lose their body.
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
				return
			}
			r.URL = &newURL
		}

		next.ServeHTTP(w, r)
	})
}

// routeLabel collapses ids in the path so metrics stay low cardinality.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "request":
			parts[i] = ":id"
		case "images":
			parts[i] = ":imageID"
		case "offers":
			if i == 1 {
				parts[i] = ":offerID"
			}
		}
	}
	return "/" + strings.Join(parts, "/")
}
