package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

// outletParam parses the {outlet} path segment. Writes the 400 itself on a
// non-numeric value.
func outletParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "outlet"))
	if err != nil || n < 1 {
		writeBadRequest(w, "outlet must be a positive number")
		return 0, false
	}
	return n, true
}

// handleOutletCommand queues one outlet action on the device FIFO and waits
// for the result.
func (s *Server) handleOutletCommand(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	outlet, ok := outletParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid command body: "+err.Error())
		return
	}
	cmd, err := pdu.ParseCommand(body.Action)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := p.CommandOutlet(r.Context(), outlet, cmd, "http"); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "command", Target: "outlet", TargetID: strconv.Itoa(outlet),
		DeviceID: p.DeviceID(), Origin: "http",
		Details: map[string]any{"command": string(cmd)},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSetOutletName stores a local outlet name override. An empty name
// clears the override.
func (s *Server) handleSetOutletName(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	outlet, ok := outletParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid name body: "+err.Error())
		return
	}
	if err := p.SetOutletName(outlet, body.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "rename", Target: "outlet", TargetID: strconv.Itoa(outlet),
		DeviceID: p.DeviceID(), Origin: "http",
		Details: map[string]any{"name": body.Name},
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleOutletNames serves the override map keyed by outlet number.
func (s *Server) handleOutletNames(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	names := p.OutletNames()
	out := make(map[string]string, len(names))
	for outlet, name := range names {
		out[strconv.Itoa(outlet)] = name
	}
	writeJSON(w, http.StatusOK, out)
}
