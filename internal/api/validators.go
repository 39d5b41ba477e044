package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// parseLimit parses the limit query parameter with bounds
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			limit = parsed
		}
	}
	return limit
}

// parseID parses an integer ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	return strconv.ParseInt(req.PathValue(param), 10, 64)
}

// parsePlayerID parses a player UUID from the URL path
func parsePlayerID(req *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(req.PathValue(param))
}
