package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"parkscan/internal/logger"
	"parkscan/internal/service"
	"parkscan/internal/ui"
)

const statusTimeout = time.Second

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	State          string   `json:"state"`
	SessionID      string   `json:"session_id,omitempty"`
	DecodeAttempts int      `json:"decode_attempts"`
	Panel          ui.State `json:"panel"`
}

// StartScanHandler handles POST /api/scan. A session already in progress
// yields 409.
func StartScanHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		started, err := manager.StartScan(r.Context())
		if err != nil {
			logger.Error("Failed to start scan: %v", err)
			http.Error(w, "Scanner unavailable", http.StatusServiceUnavailable)
			return
		}
		if !started {
			writeState(w, r, manager, http.StatusConflict, logger)
			return
		}
		writeState(w, r, manager, http.StatusAccepted, logger)
	}
}

// CancelScanHandler handles POST /api/scan/cancel.
func CancelScanHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		cancelled, err := manager.CancelScan(r.Context())
		if err != nil {
			logger.Error("Failed to cancel scan: %v", err)
			http.Error(w, "Scanner unavailable", http.StatusServiceUnavailable)
			return
		}
		if !cancelled {
			writeState(w, r, manager, http.StatusConflict, logger)
			return
		}
		writeState(w, r, manager, http.StatusOK, logger)
	}
}

// StateHandler handles GET /api/state.
func StateHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeState(w, r, manager, http.StatusOK, logger)
	}
}

func writeState(w http.ResponseWriter, r *http.Request, manager *service.Manager, code int, logger *logger.Logger) {
	resp := StateResponse{
		State: manager.State().String(),
		Panel: manager.Panel(),
	}
	// Session details are best-effort; a stopped loop still reports the panel.
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	if st, err := manager.Status(ctx); err == nil {
		resp.State = st.State.String()
		resp.SessionID = st.SessionID
		resp.DecodeAttempts = st.Attempts
	}
	writeJSON(w, code, resp, logger)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
