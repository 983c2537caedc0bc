package api

import (
	"encoding/json"
	"net/http"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/bridge"
)

// handleGetConfig serves the effective runtime settings.
func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Settings())
}

// handlePutConfig validates, persists and applies new runtime settings.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var settings bridge.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeBadRequest(w, "invalid settings body: "+err.Error())
		return
	}
	if err := s.manager.UpdateSettings(settings); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "update", Target: "settings", Origin: "http",
		Details: map[string]any{
			"poll_interval_ms": settings.PollIntervalMs,
			"retention_days":   settings.RetentionDays,
		},
	})
	writeJSON(w, http.StatusOK, s.manager.Settings())
}
