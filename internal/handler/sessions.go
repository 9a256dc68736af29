package handler

import (
	"net/http"
	"strconv"

	"parkscan/internal/logger"
	"parkscan/internal/service"
)

const defaultSessionLimit = 50

// RecentSessionsHandler handles GET /api/sessions?limit=N.
func RecentSessionsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journal := manager.GetJournal()
		if journal == nil {
			http.Error(w, "Session journal disabled", http.StatusNotFound)
			return
		}

		limit := atoiDefault(r.URL.Query().Get("limit"), defaultSessionLimit)
		sessions, err := journal.GetRecent(limit)
		if err != nil {
			logger.Error("Error querying sessions: %v", err)
			http.Error(w, "Unable to read sessions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sessions, logger)
	}
}

// SessionStatsHandler handles GET /api/sessions/stats.
func SessionStatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journal := manager.GetJournal()
		if journal == nil {
			http.Error(w, "Session journal disabled", http.StatusNotFound)
			return
		}

		stats, err := journal.GetStats()
		if err != nil {
			logger.Error("Error computing session stats: %v", err)
			http.Error(w, "Unable to read session stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// atoiDefault converts s to int or returns def when conversion fails or the value is <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
