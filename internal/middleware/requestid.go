// Package middleware provides HTTP middleware for Titan.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/titanchat/titan/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID assigns every request an ID, taken from the X-Request-ID
// header when the client supplies a plausible one and freshly generated
// otherwise. The ID rides in the context for log correlation and is
// echoed on the response so clients can cancel in-flight exchanges by ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !usableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// usableRequestID rejects empty, oversized or non-printable client IDs
// rather than letting them reach logs and cancel bookkeeping.
func usableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
