package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/voltbridge/voltbridge/internal/audit"
)

// auditTimeout bounds the insert so a wedged database cannot stall a
// handler that already answered its caller.
const auditTimeout = 5 * time.Second

// recordAudit writes one trail entry. A nil repository (audit disabled)
// and insert failures are both silent to the caller; the mutation itself
// already succeeded.
func (s *Server) recordAudit(e audit.Entry) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("audit record failed", "action", e.Action, "target", e.Target, "error", err)
	}
}

// handleAuditLog serves the mutation trail, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "audit log unavailable")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Target:   q.Get("target"),
		DeviceID: q.Get("device_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive number")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must not be negative")
			return
		}
		filter.Offset = n
	}

	page, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "querying audit log: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}
