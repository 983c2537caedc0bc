package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/transport"
)

// The management handlers expose the serial console surface. Every one of
// them runs through Poller.Management, so on an SNMP-only device they all
// answer 503 without touching the transport.

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var device transport.Thresholds
	var banks map[int]transport.Thresholds
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		if device, err = mgmt.GetDeviceThresholds(ctx); err != nil {
			return err
		}
		banks, err = mgmt.GetBankThresholds(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device": device, "banks": banks})
}

// handleSetThreshold writes one load alarm level. Bank 0 targets the device
// level.
func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var body struct {
		Bank  int     `json:"bank"`
		Level string  `json:"level"`
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid threshold body: "+err.Error())
		return
	}
	level := transport.ThresholdLevel(body.Level)
	switch level {
	case transport.ThresholdOverload, transport.ThresholdNearOverload, transport.ThresholdLowLoad:
	default:
		writeBadRequest(w, "level must be overload, nearover or lowload")
		return
	}

	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		if body.Bank == 0 {
			return mgmt.SetDeviceThreshold(ctx, level, body.Value)
		}
		return mgmt.SetBankThreshold(ctx, body.Bank, level, body.Value)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetOutletConfig(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg map[int]transport.OutletConfig
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		cfg, err = mgmt.GetOutletConfig(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetOutletConfig(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	outlet, ok := outletParam(w, r)
	if !ok {
		return
	}
	var cfg transport.OutletConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid outlet config body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetOutletConfig(ctx, outlet, cfg)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg transport.NetworkConfig
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		cfg, err = mgmt.GetNetworkConfig(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetNetwork(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg transport.NetworkConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid network body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetNetworkConfig(ctx, cfg)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetATS(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg pdu.ATSConfig
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		cfg, err = mgmt.GetATSConfig(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSetATS accepts any subset of the transfer switch settings and
// applies them in order. The preferred source write works on SNMP too.
func (s *Server) handleSetATS(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var body struct {
		PreferredSource *string  `json:"preferred_source,omitempty"`
		Sensitivity     *string  `json:"voltage_sensitivity,omitempty"`
		UpperLimit      *float64 `json:"voltage_upper_limit,omitempty"`
		LowerLimit      *float64 `json:"voltage_lower_limit,omitempty"`
		ColdstartDelay  *int     `json:"coldstart_delay,omitempty"`
		ColdstartState  *string  `json:"coldstart_state,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid ats body: "+err.Error())
		return
	}

	if body.PreferredSource != nil {
		src := pdu.Source(*body.PreferredSource)
		if src != pdu.SourceA && src != pdu.SourceB {
			writeBadRequest(w, "preferred_source must be A or B")
			return
		}
		err := p.Do(r.Context(), func(ctx context.Context, tr transport.Transport) error {
			return tr.SetPreferredSource(ctx, src)
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if body.Sensitivity != nil || body.UpperLimit != nil || body.LowerLimit != nil ||
		body.ColdstartDelay != nil || body.ColdstartState != nil {
		err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
			if body.Sensitivity != nil {
				if err := mgmt.SetVoltageSensitivity(ctx, *body.Sensitivity); err != nil {
					return err
				}
			}
			if body.UpperLimit != nil || body.LowerLimit != nil {
				if err := mgmt.SetTransferVoltage(ctx, body.UpperLimit, body.LowerLimit); err != nil {
					return err
				}
			}
			if body.ColdstartDelay != nil || body.ColdstartState != nil {
				state := ""
				if body.ColdstartState != nil {
					state = *body.ColdstartState
				}
				if err := mgmt.SetColdstart(ctx, body.ColdstartDelay, state); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleSecurityCheck reports whether the console still answers to factory
// credentials.
func (s *Server) handleSecurityCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var usingDefaults bool
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		usingDefaults, err = mgmt.CheckDefaultCredentials(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"default_credentials": usingDefaults})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var body struct {
		Account     string `json:"account"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid password body: "+err.Error())
		return
	}
	if body.Account == "" || body.NewPassword == "" {
		writeBadRequest(w, "account and new_password are required")
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.ChangePassword(ctx, body.Account, body.NewPassword)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var users map[string]transport.UserAccount
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		users, err = mgmt.GetUsers(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var n transport.Notifications
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		n, err = mgmt.GetNotifications(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleSetTrapReceiver(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var receiver transport.TrapReceiver
	if err := json.NewDecoder(r.Body).Decode(&receiver); err != nil {
		writeBadRequest(w, "invalid trap receiver body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetTrapReceiver(ctx, receiver)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSetEmailRecipient(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var recipient transport.EmailRecipient
	if err := json.NewDecoder(r.Body).Decode(&recipient); err != nil {
		writeBadRequest(w, "invalid email recipient body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetEmailRecipient(ctx, recipient)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSetSyslogServer(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var server transport.SyslogServer
	if err := json.NewDecoder(r.Body).Decode(&server); err != nil {
		writeBadRequest(w, "invalid syslog server body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetSyslogServer(ctx, server)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEventLog(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var entries []transport.EventLogEntry
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		entries, err = mgmt.GetEventLog(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []transport.EventLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEnergyWise(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg transport.EnergyWiseConfig
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		var err error
		cfg, err = mgmt.GetEnergyWise(ctx)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetEnergyWise(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pollerFor(w, r)
	if !ok {
		return
	}
	var cfg transport.EnergyWiseConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid energywise body: "+err.Error())
		return
	}
	err := p.Management(r.Context(), func(ctx context.Context, mgmt transport.Management) error {
		return mgmt.SetEnergyWise(ctx, cfg)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
