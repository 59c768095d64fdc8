package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies read by ValidJSON.
const maxBodyBytes = 1 << 20

// ValidJSON rejects requests whose body is present but is not valid JSON,
// before they reach any route. Empty bodies pass through.
func ValidJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)

				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")

				return
			}

			if err != nil {
				logger.Debug("failed to read request body",
					zap.String("path", r.URL.Path), zap.String("method", r.Method), zap.Error(err))
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")

				return
			}

			if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
				logger.Debug("rejected malformed json body",
					zap.String("path", r.URL.Path), zap.String("method", r.Method))
				writeJSONError(w, http.StatusBadRequest, "Invalid JSON format")

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
