package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/bridge"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/poller"
)

// handleListDevices serves the registry sorted by id.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Devices())
}

// handleAddDevice registers a device and starts polling it immediately.
func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var dev bridge.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid device body: "+err.Error())
		return
	}
	if err := s.manager.AddDevice(dev); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "create", Target: "device", TargetID: dev.ID,
		DeviceID: dev.ID, Origin: "http",
		Details: map[string]any{"transport": dev.Transport, "host": dev.Host},
	})
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice replaces a device definition. The id in the path wins
// over any id in the body.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")
	var dev bridge.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid device body: "+err.Error())
		return
	}
	if err := s.manager.UpdateDevice(id, dev); err != nil {
		writeDomainError(w, err)
		return
	}
	dev.ID = id
	s.recordAudit(audit.Entry{
		Action: "update", Target: "device", TargetID: id,
		DeviceID: id, Origin: "http",
	})
	writeJSON(w, http.StatusOK, dev)
}

// handleRemoveDevice stops a device and deletes its registry entry and
// per-device files.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device_id")
	if err := s.manager.RemoveDevice(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "delete", Target: "device", TargetID: id,
		DeviceID: id, Origin: "http",
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// discoveredDevice is one row of a discovery probe response.
type discoveredDevice struct {
	DeviceID  string        `json:"device_id"`
	Transport string        `json:"transport"`
	State     poller.State  `json:"state"`
	Identity  *pdu.Identity `json:"identity,omitempty"`
}

// handleDiscover probes every configured device and reports what answered.
// Subnet scanning for unconfigured PDUs lives in the external wizard; this
// endpoint covers the configured fleet.
func (s *Server) handleDiscover(w http.ResponseWriter, _ *http.Request) {
	var found []discoveredDevice
	for _, dev := range s.manager.Devices() {
		p, ok := s.manager.Poller(dev.ID)
		if !ok {
			continue
		}
		h := p.Health()
		row := discoveredDevice{
			DeviceID:  dev.ID,
			Transport: h.Transport,
			State:     h.State,
		}
		if id, ok := p.Identity(); ok {
			row.Identity = &id
		}
		found = append(found, row)
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": found})
}
