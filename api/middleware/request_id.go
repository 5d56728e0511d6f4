package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

const (
	requestIDHeader  = "X-Request-Id"
	cloudTraceHeader = "X-Cloud-Trace-Context"
)

// RequestID tags the request with an id taken from X-Request-Id, the Cloud
// Run trace header, or a fresh uuid, and echoes it on the response.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := requestIDFrom(r)
			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestIDFrom(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(requestIDHeader)); id != "" && len(id) <= 128 {
		return id
	}
	// TRACE_ID/SPAN_ID;o=OPTIONS
	if trace := r.Header.Get(cloudTraceHeader); trace != "" {
		if id, _, _ := strings.Cut(trace, "/"); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
