package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/automation"
)

// handleListRules serves the target device's rule definitions.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	rules := p.Engine().Rules()
	if rules == nil {
		rules = []automation.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleAddRule validates and persists a new rule.
func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var rule automation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid rule body: "+err.Error())
		return
	}
	if err := p.Engine().AddRule(rule); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "create", Target: "rule", TargetID: rule.Name,
		DeviceID: p.DeviceID(), Origin: "http",
	})
	writeJSON(w, http.StatusCreated, rule)
}

// handleUpdateRule replaces a rule, resetting its runtime state.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var rule automation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid rule body: "+err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if err := p.Engine().UpdateRule(name, rule); err != nil {
		writeDomainError(w, err)
		return
	}
	rule.Name = name
	s.recordAudit(audit.Entry{
		Action: "update", Target: "rule", TargetID: name,
		DeviceID: p.DeviceID(), Origin: "http",
	})
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule removes a rule by name.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if err := p.Engine().DeleteRule(name); err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "delete", Target: "rule", TargetID: name,
		DeviceID: p.DeviceID(), Origin: "http",
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleToggleRule flips a rule's enabled flag.
func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	enabled, err := p.Engine().ToggleRule(name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.recordAudit(audit.Entry{
		Action: "toggle", Target: "rule", TargetID: name,
		DeviceID: p.DeviceID(), Origin: "http",
		Details: map[string]any{"enabled": enabled},
	})
	writeJSON(w, http.StatusOK, map[string]any{"enabled": enabled})
}

// handleEvents serves the bounded automation event history, oldest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	events := p.Engine().Events()
	if events == nil {
		events = []automation.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
