package middleware

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
)

const DeviceKeyHeader = "X-Device-Key"

// RequireDeviceKey guards the SMS ingest endpoint. The forwarding device is
// a phone, not an operator, so it authenticates with a static shared key
// instead of a JWT.
func RequireDeviceKey(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(DeviceKeyHeader)
			if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
				logger.Warn("device key rejected",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprintf(w, `{"code": %d, "message": "invalid device key"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
