package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltbridge/voltbridge/internal/history"
)

// reportsEnabled writes the 503 itself when the history store is off.
func (s *Server) reportsEnabled(w http.ResponseWriter) bool {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "history store disabled")
		return false
	}
	return true
}

// handleListReports serves report summaries, newest first. Without a
// device_id the whole fleet's reports are returned.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if !s.reportsEnabled(w) {
		return
	}
	reports, err := s.history.ListReports(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	if reports == nil {
		reports = []history.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleLatestReport serves the most recent report for the target device.
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if !s.reportsEnabled(w) {
		return
	}
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	report, err := s.history.LatestReport(r.Context(), p.DeviceID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetReport serves one report by id.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if !s.reportsEnabled(w) {
		return
	}
	report, err := s.history.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
