package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.sessionGateMiddleware)

	wsPath := s.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/health", s.handleHealth)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/auth/status", s.handleAuthStatus)

		r.Route("/pdus", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleAddDevice)
			r.Post("/discover", s.handleDiscover)
			r.Put("/{device_id}", s.handleUpdateDevice)
			r.Delete("/{device_id}", s.handleRemoveDevice)
		})

		r.Get("/config", s.handleGetConfig)
		r.Put("/config", s.handlePutConfig)

		r.Post("/outlets/{outlet}/command", s.handleOutletCommand)
		r.Put("/outlets/{outlet}/name", s.handleSetOutletName)
		r.Get("/outlet-names", s.handleOutletNames)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleAddRule)
			r.Put("/{name}", s.handleUpdateRule)
			r.Delete("/{name}", s.handleDeleteRule)
			r.Put("/{name}/toggle", s.handleToggleRule)
		})
		r.Get("/events", s.handleEvents)
		r.Get("/audit", s.handleAuditLog)

		r.Get("/history/banks", s.handleHistoryBanks)
		r.Get("/history/banks.csv", s.handleHistoryBanksCSV)
		r.Get("/history/outlets", s.handleHistoryOutlets)
		r.Get("/history/outlets.csv", s.handleHistoryOutletsCSV)

		r.Get("/reports", s.handleListReports)
		r.Get("/reports/latest", s.handleLatestReport)
		r.Get("/reports/{id}", s.handleGetReport)

		r.Route("/management", func(r chi.Router) {
			r.Get("/thresholds", s.handleGetThresholds)
			r.Put("/thresholds", s.handleSetThreshold)
			r.Get("/outlets", s.handleGetOutletConfig)
			r.Put("/outlets/{outlet}", s.handleSetOutletConfig)
			r.Get("/network", s.handleGetNetwork)
			r.Put("/network", s.handleSetNetwork)
			r.Get("/ats", s.handleGetATS)
			r.Put("/ats", s.handleSetATS)
			r.Get("/security", s.handleSecurityCheck)
			r.Post("/security/password", s.handleChangePassword)
			r.Get("/users", s.handleGetUsers)
			r.Get("/notifications", s.handleGetNotifications)
			r.Put("/notifications/traps", s.handleSetTrapReceiver)
			r.Put("/notifications/emails", s.handleSetEmailRecipient)
			r.Put("/notifications/syslog", s.handleSetSyslogServer)
			r.Get("/eventlog", s.handleEventLog)
			r.Get("/energywise", s.handleGetEnergyWise)
			r.Put("/energywise", s.handleSetEnergyWise)
		})
	})

	return r
}
