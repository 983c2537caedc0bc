package api

import (
	"net/http"
	"time"

	"github.com/voltbridge/voltbridge/internal/bridge"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/poller"
)

// pollerFor resolves the target device for a request. The device_id query
// parameter selects explicitly; with a single configured device it is
// implicit. Writes the error response itself when resolution fails.
func (s *Server) pollerFor(w http.ResponseWriter, r *http.Request) (*poller.Poller, bool) {
	id := r.URL.Query().Get("device_id")
	if id == "" {
		devices := s.manager.Devices()
		if len(devices) != 1 {
			writeBadRequest(w, "device_id is required when more than one device is configured")
			return nil, false
		}
		id = devices[0].ID
	}
	p, ok := s.manager.Poller(id)
	if !ok {
		writeNotFound(w, "unknown device: "+id)
		return nil, false
	}
	return p, true
}

// deviceStatus is the per-device slice of the status document.
type deviceStatus struct {
	DeviceID       string        `json:"device_id"`
	Health         poller.Health `json:"health"`
	Identity       *pdu.Identity `json:"identity,omitempty"`
	Snapshot       *pdu.Snapshot `json:"snapshot,omitempty"`
	DataAgeSeconds *float64      `json:"data_age_seconds,omitempty"`
	HasManagement  bool          `json:"has_management"`
}

func (s *Server) statusFor(p *poller.Poller) deviceStatus {
	st := deviceStatus{
		DeviceID:      p.DeviceID(),
		Health:        p.Health(),
		Snapshot:      p.Snapshot(),
		HasManagement: p.HasManagement(),
	}
	if id, ok := p.Identity(); ok {
		st.Identity = &id
	}
	if st.Snapshot != nil {
		age := time.Since(st.Snapshot.Timestamp).Seconds()
		st.DataAgeSeconds = &age
	}
	return st
}

// handleStatus serves one device's status when a target resolves, or the
// whole fleet keyed by device id otherwise.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("device_id"); id != "" {
		p, ok := s.manager.Poller(id)
		if !ok {
			writeNotFound(w, "unknown device: "+id)
			return
		}
		writeJSON(w, http.StatusOK, s.statusFor(p))
		return
	}

	pollers := s.manager.Pollers()
	if len(pollers) == 1 {
		for _, p := range pollers {
			writeJSON(w, http.StatusOK, s.statusFor(p))
			return
		}
	}

	out := make(map[string]deviceStatus, len(pollers))
	for id, p := range pollers {
		out[id] = s.statusFor(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "ts": time.Now().UTC()})
}

// handleHealth serves the aggregate health report: 200 when everything is
// fine, 503 when degraded. Never behind the session gate.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.manager.Health()
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Version: s.version, HealthReport: report})
}

type healthResponse struct {
	Version string `json:"version,omitempty"`
	bridge.HealthReport
}
