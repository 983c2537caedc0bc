package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/auth"
)

// handleLogin checks the shared web password and sets the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Security.WebPassword == "" {
		writeJSON(w, http.StatusOK, map[string]any{"auth_required": false})
		return
	}

	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid login body: "+err.Error())
		return
	}
	if !auth.CheckPassword(s.cfg.Security.WebPassword, body.Password) {
		s.logger.Warn("failed login attempt", "remote", r.RemoteAddr)
		writeUnauthorized(w, "wrong password")
		return
	}

	token, expiry, err := s.sessions.Issue()
	if err != nil {
		writeInternalError(w, "issuing session: "+err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.recordAudit(audit.Entry{
		Action: "login", Target: "session", Origin: "http",
		Details: map[string]any{"remote": r.RemoteAddr},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_required": true,
		"expires_at":    expiry.UTC().Format(time.RFC3339),
	})
}

// handleLogout clears the session cookie. Tokens are stateless, so logout is
// purely client-side.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAuthStatus reports whether auth is configured and whether the caller
// holds a valid session.
func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	required := s.cfg.Security.WebPassword != ""
	authenticated := !required
	if required {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			authenticated = s.sessions.Verify(cookie.Value) == nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auth_required": required,
		"authenticated": authenticated,
	})
}
