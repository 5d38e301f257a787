package cron

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// authenticateRequest verifies the cron request carries the shared secret,
// either in the X-Cron-Secret header or as a bearer token.
func authenticateRequest(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	if r.Header.Get("X-Cron-Secret") == secret {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+secret
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, logger *zap.Logger, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, logger *zap.Logger, statusCode int, message string) {
	respondJSON(w, logger, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
