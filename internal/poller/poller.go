package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/automation"
	"github.com/voltbridge/voltbridge/internal/history"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/infrastructure/mqtt"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/transport"
)

var (
	// ErrStopped is returned for requests made after the poller shut down.
	ErrStopped = errors.New("poller: stopped")

	// ErrManagementUnsupported means the active transport has no console
	// management surface. The HTTP layer maps it to 503.
	ErrManagementUnsupported = errors.New("poller: operation requires serial transport")
)

// Publisher is the slice of the MQTT client the poller needs. Declared here
// so tests can substitute a recorder.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishString(topic string, payload string, qos byte, retained bool) error
	IsConnected() bool
}

// Telemetry mirrors successful snapshots into an external time-series
// sink. Implementations must not block; the influxdb client batches
// internally.
type Telemetry interface {
	WriteSnapshot(deviceID string, snap *pdu.Snapshot)
}

// Config wires one device's poller.
type Config struct {
	DeviceID string

	// Transport is the primary transport. Secondary, when set, is swapped
	// in after a sustained outage on the primary.
	Transport transport.Transport
	Secondary transport.Transport

	Publisher Publisher
	Topics    mqtt.Topics

	// History is optional; nil disables sample recording.
	History *history.Store

	// Telemetry is optional; nil disables the external time-series pipe.
	Telemetry Telemetry

	// Engine is optional; nil disables rule evaluation.
	Engine *automation.Engine

	// Names is optional; nil disables outlet name overrides.
	Names *NameStore

	// Interval is the cycle period. Defaults to one second.
	Interval time.Duration

	Logger *logging.Logger

	// OnLost fires once when the device transitions to StateLost, for the
	// bridge's rediscovery scan.
	OnLost func(deviceID string)

	// OnIdentified fires once, after the first successful identity read,
	// so the bridge can publish discovery documents for the device.
	OnIdentified func(deviceID string, id pdu.Identity)
}

// request is one unit of serialized transport work. Outlet commands carry
// outlet/cmd/origin so the loop can publish the command response; console
// and configuration work arrives as a bare fn.
type request struct {
	outlet int
	cmd    pdu.Command
	origin string
	fn     func(context.Context, transport.Transport) error
	reply  chan error
}

// CommandResponse is the JSON document published after every outlet
// command, successful or not.
type CommandResponse struct {
	Success   bool      `json:"success"`
	Command   string    `json:"command"`
	Outlet    int       `json:"outlet"`
	Origin    string    `json:"origin,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Poller drives one device. Create with New, then Start; Stop blocks until
// the loop exits and the offline marker is published.
type Poller struct {
	cfg    Config
	logger *logging.Logger

	transports []transport.Transport
	requests   chan request

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Loop-owned state. The loop goroutine mutates these; mu guards the
	// fields that outside readers (HTTP, bridge health) also touch.
	mu             sync.RWMutex
	active         int
	connected      bool
	identified     bool
	identity       pdu.Identity
	outletBanks    map[int]int
	outletLimits   map[int]float64
	nameOverrides  map[int]string
	lastSnapshot   *pdu.Snapshot
	health         *healthTracker
	prevUptime     *int64
	lastAutoStatus []byte
	announced      bool
}

// New validates the config and loads persisted outlet name overrides.
func New(cfg Config) (*Poller, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("poller: device id required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("poller: transport required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("poller: publisher required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	p := &Poller{
		cfg:           cfg,
		logger:        cfg.Logger.With("component", "poller", "device_id", cfg.DeviceID),
		transports:    []transport.Transport{cfg.Transport},
		requests:      make(chan request, 16),
		done:          make(chan struct{}),
		nameOverrides: map[int]string{},
		health:        newHealthTracker(cfg.Secondary != nil),
	}
	if cfg.Secondary != nil {
		p.transports = append(p.transports, cfg.Secondary)
	}
	if cfg.Names != nil {
		names, err := cfg.Names.Load(cfg.DeviceID)
		if err != nil {
			return nil, err
		}
		for outlet, name := range names {
			p.nameOverrides[outlet] = name
		}
	}
	return p, nil
}

// DeviceID returns the device this poller drives.
func (p *Poller) DeviceID() string { return p.cfg.DeviceID }

// Engine returns the device's rule engine, nil when automation is off.
func (p *Poller) Engine() *automation.Engine { return p.cfg.Engine }

// Start launches the loop goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop shuts the loop down, publishes the retained offline marker and
// closes the transports. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown.
		p.cfg.Publisher.PublishString(
			p.cfg.Topics.DeviceBridgeStatus(p.cfg.DeviceID), "offline", 1, true)

		for _, tr := range p.transports {
			if err := tr.Close(); err != nil {
				p.logger.Warn("transport close failed", "transport", tr.Name(), "error", err)
			}
		}
	})
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.drainRequests()

	//nolint:errcheck // The client queues while disconnected.
	p.cfg.Publisher.PublishString(
		p.cfg.Topics.DeviceBridgeStatus(p.cfg.DeviceID), "online", 1, true)

	// The ticker holds at most one pending tick, which gives exactly the
	// one catch-up cycle allowed after a slow poll or a long command.
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case req := <-p.requests:
			p.handleRequest(ctx, req)
		case now := <-ticker.C:
			p.cycle(ctx, now)
		}
	}
}

// ─── Cycle ───────────────────────────────────────────────────────────────

func (p *Poller) cycle(ctx context.Context, now time.Time) {
	cctx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()

	tr := p.activeTransport()

	if !p.connected {
		if err := tr.Connect(cctx); err != nil {
			p.noteFailure(ctx, fmt.Errorf("connect: %w", err))
			return
		}
		p.setConnected(true)
	}
	if !p.identified {
		if err := p.identify(cctx, tr); err != nil {
			p.noteFailure(ctx, fmt.Errorf("identify: %w", err))
			return
		}
	}

	snap, err := tr.Poll(cctx)
	if err != nil {
		switch transport.KindOf(err) {
		case transport.KindUnreachable, transport.KindAuthentication:
			p.setConnected(false)
		}
		p.noteFailure(ctx, err)
		return
	}

	p.noteSuccess(ctx, tr, snap, now)
}

func (p *Poller) noteSuccess(ctx context.Context, tr transport.Transport, snap *pdu.Snapshot, now time.Time) {
	p.mu.Lock()
	if p.health.success(now) {
		p.logger.Info("device recovered", "transport", tr.Name())
	}

	rebooted := p.prevUptime != nil && snap.UptimeHundredths != nil &&
		*snap.UptimeHundredths < *p.prevUptime
	if snap.UptimeHundredths != nil {
		uptime := *snap.UptimeHundredths
		p.prevUptime = &uptime
	}
	if rebooted {
		p.identified = false
	}
	p.lastSnapshot = snap
	p.mu.Unlock()

	if rebooted {
		p.logger.Warn("device reboot detected, re-reading identity")
		if err := p.identify(ctx, tr); err != nil {
			p.logger.Warn("re-identify after reboot failed", "error", err)
		}
	}

	if p.cfg.History != nil {
		p.cfg.History.Record(p.cfg.DeviceID, snap)
	}
	if p.cfg.Telemetry != nil {
		p.cfg.Telemetry.WriteSnapshot(p.cfg.DeviceID, snap)
	}

	p.publishSnapshot(snap)
	p.evaluateRules(ctx, snap, now)
}

func (p *Poller) noteFailure(ctx context.Context, err error) {
	p.mu.Lock()
	event := p.health.failure(err)
	failures := p.health.failures
	p.mu.Unlock()

	switch event {
	case healthWarn:
		p.logger.Warn("device poll failing",
			"consecutive_failures", failures,
			"kind", string(transport.KindOf(err)),
			"error", err)
	case healthSwap:
		p.swapTransport(err)
	case healthLost:
		p.logger.Error("device lost", "error", err)
		if p.cfg.OnLost != nil {
			p.cfg.OnLost(p.cfg.DeviceID)
		}
	}
}

// swapTransport closes the failed transport and promotes the other one.
// The next cycle reconnects and re-identifies on the new transport.
func (p *Poller) swapTransport(cause error) {
	old := p.activeTransport()
	if err := old.Close(); err != nil {
		p.logger.Debug("closing failed transport", "error", err)
	}

	p.mu.Lock()
	p.active = (p.active + 1) % len(p.transports)
	next := p.transports[p.active]
	p.connected = false
	p.identified = false
	p.mu.Unlock()

	p.logger.Warn("switching transport after sustained failures",
		"from", old.Name(), "to", next.Name(), "error", cause)
}

func (p *Poller) identify(ctx context.Context, tr transport.Transport) error {
	id, err := tr.Identify(ctx)
	if err != nil {
		return err
	}

	banks, limits, err := tr.StartupConfig(ctx, id.OutletCount)
	if err != nil {
		p.logger.Warn("startup config read failed", "error", err)
		banks, limits = map[int]int{}, map[int]float64{}
	}

	p.mu.Lock()
	p.identity = id
	p.outletBanks = banks
	p.outletLimits = limits
	p.identified = true
	p.mu.Unlock()

	if p.cfg.Engine != nil {
		p.cfg.Engine.SetOutletCount(id.OutletCount)
	}

	p.logger.Info("device identified",
		"model", id.Model, "outlets", id.OutletCount, "transport", tr.Name())
	p.PublishDeviceInfo()

	p.mu.Lock()
	first := !p.announced
	p.announced = true
	p.mu.Unlock()
	if first && p.cfg.OnIdentified != nil {
		p.cfg.OnIdentified(p.cfg.DeviceID, id)
	}
	return nil
}

// drainRequests answers everything still sitting on the command FIFO when
// the loop exits. Each caller gets ErrStopped, and outlet commands still
// publish their response document.
func (p *Poller) drainRequests() {
	for {
		select {
		case req := <-p.requests:
			if req.fn == nil {
				resp := CommandResponse{
					Command:   string(req.cmd),
					Outlet:    req.outlet,
					Origin:    req.origin,
					Error:     ErrStopped.Error(),
					Timestamp: time.Now().UTC(),
				}
				if payload, err := json.Marshal(resp); err == nil {
					//nolint:errcheck // Best-effort during shutdown.
					p.cfg.Publisher.Publish(
						p.cfg.Topics.OutletCommandResponse(p.cfg.DeviceID, req.outlet),
						payload, 1, false)
				}
			}
			req.reply <- ErrStopped
		default:
			return
		}
	}
}

// ─── Requests ────────────────────────────────────────────────────────────

func (p *Poller) handleRequest(ctx context.Context, req request) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if req.fn != nil {
		req.reply <- req.fn(cctx, p.activeTransport())
		return
	}

	err := p.execOutletCommand(cctx, req)
	req.reply <- err
}

func (p *Poller) execOutletCommand(ctx context.Context, req request) error {
	p.mu.RLock()
	outletCount := p.identity.OutletCount
	p.mu.RUnlock()

	var err error
	if outletCount > 0 && (req.outlet < 1 || req.outlet > outletCount) {
		err = fmt.Errorf("%w: %d", pdu.ErrInvalidOutlet, req.outlet)
	} else {
		err = p.activeTransport().CommandOutlet(ctx, req.outlet, req.cmd)
	}

	resp := CommandResponse{
		Success:   err == nil,
		Command:   string(req.cmd),
		Outlet:    req.outlet,
		Origin:    req.origin,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		resp.Error = err.Error()
		p.logger.Warn("outlet command failed",
			"outlet", req.outlet, "command", string(req.cmd),
			"origin", req.origin, "error", err)
	} else {
		p.logger.Info("outlet command executed",
			"outlet", req.outlet, "command", string(req.cmd), "origin", req.origin)
	}

	payload, merr := json.Marshal(resp)
	if merr == nil {
		//nolint:errcheck // The client queues while disconnected.
		p.cfg.Publisher.Publish(
			p.cfg.Topics.OutletCommandResponse(p.cfg.DeviceID, req.outlet), payload, 1, false)
	}
	return err
}

// CommandOutlet queues an outlet command and waits for the result. The
// command runs on the loop goroutine, never concurrently with a poll, and
// its response document is published whether it succeeds or fails.
func (p *Poller) CommandOutlet(ctx context.Context, outlet int, cmd pdu.Command, origin string) error {
	return p.submit(ctx, request{outlet: outlet, cmd: cmd, origin: origin})
}

// Do runs fn on the loop goroutine with exclusive transport access. Used
// for preferred-source changes, identity writes and console management.
func (p *Poller) Do(ctx context.Context, fn func(context.Context, transport.Transport) error) error {
	return p.submit(ctx, request{fn: fn})
}

// Management runs fn against the console management surface. Returns
// ErrManagementUnsupported when the active transport is SNMP.
func (p *Poller) Management(ctx context.Context, fn func(context.Context, transport.Management) error) error {
	return p.Do(ctx, func(ctx context.Context, tr transport.Transport) error {
		mgmt, ok := tr.(transport.Management)
		if !ok {
			return ErrManagementUnsupported
		}
		return fn(ctx, mgmt)
	})
}

func (p *Poller) submit(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)
	select {
	case p.requests <- req:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Automation ──────────────────────────────────────────────────────────

func (p *Poller) evaluateRules(ctx context.Context, snap *pdu.Snapshot, now time.Time) {
	if p.cfg.Engine == nil {
		return
	}

	intents, events := p.cfg.Engine.Evaluate(snap, now)
	for _, intent := range intents {
		p.execOutletCommand(ctx, request{
			outlet: intent.Outlet,
			cmd:    intent.Command,
			origin: "automation:" + intent.Rule,
		})
	}
	for _, ev := range events {
		if payload, err := json.Marshal(ev); err == nil {
			//nolint:errcheck
			p.cfg.Publisher.Publish(
				p.cfg.Topics.AutomationEvent(p.cfg.DeviceID), payload, 1, false)
		}
	}
	p.publishAutomationStatus()
}

// publishAutomationStatus publishes the retained rule summary, but only
// when it changed since the last cycle.
func (p *Poller) publishAutomationStatus() {
	states := p.cfg.Engine.States()
	doc := struct {
		Rules []automation.RuleState `json:"rules"`
	}{Rules: states}

	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}

	p.mu.Lock()
	changed := string(payload) != string(p.lastAutoStatus)
	if changed {
		p.lastAutoStatus = payload
	}
	p.mu.Unlock()

	if changed {
		//nolint:errcheck
		p.cfg.Publisher.Publish(
			p.cfg.Topics.AutomationStatus(p.cfg.DeviceID), payload, 1, true)
	}
}

// ─── Outlet names ────────────────────────────────────────────────────────

// SetOutletName records a local name override, persists it and publishes
// the retained name topic immediately.
func (p *Poller) SetOutletName(outlet int, name string) error {
	p.mu.Lock()
	if count := p.identity.OutletCount; count > 0 && (outlet < 1 || outlet > count) {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", pdu.ErrInvalidOutlet, outlet)
	}
	if name == "" {
		delete(p.nameOverrides, outlet)
	} else {
		p.nameOverrides[outlet] = name
	}
	names := make(map[int]string, len(p.nameOverrides))
	for k, v := range p.nameOverrides {
		names[k] = v
	}
	p.mu.Unlock()

	if p.cfg.Names != nil {
		if err := p.cfg.Names.Save(p.cfg.DeviceID, names); err != nil {
			return err
		}
	}
	if name != "" {
		//nolint:errcheck
		p.cfg.Publisher.PublishString(
			p.cfg.Topics.OutletName(p.cfg.DeviceID, outlet), name, 0, true)
	}
	return nil
}

// OutletNames returns a copy of the override map.
func (p *Poller) OutletNames() map[int]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make(map[int]string, len(p.nameOverrides))
	for k, v := range p.nameOverrides {
		names[k] = v
	}
	return names
}

// ─── Readers ─────────────────────────────────────────────────────────────

// Snapshot returns the last successful poll result, nil before the first
// success. Snapshots are immutable once decoded.
func (p *Poller) Snapshot() *pdu.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSnapshot
}

// Identity returns the cached identity; ok is false before discovery.
func (p *Poller) Identity() (pdu.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity, p.identified
}

// Health returns the device health for /api/health and the status topic.
func (p *Poller) Health() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Health{
		State:       p.health.state,
		Failures:    p.health.failures,
		LastError:   p.health.lastError,
		LastSuccess: p.health.lastSuccess,
		Transport:   p.transports[p.active].Name(),
	}
}

// HasManagement reports whether the active transport exposes the console
// management surface.
func (p *Poller) HasManagement() bool {
	_, ok := p.activeTransport().(transport.Management)
	return ok
}

func (p *Poller) activeTransport() transport.Transport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.transports[p.active]
}

func (p *Poller) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// PublishDeviceInfo publishes the retained identity document. The bridge
// refreshes it on a slow schedule; it is also published after discovery
// and after a detected reboot.
func (p *Poller) PublishDeviceInfo() {
	p.mu.RLock()
	if !p.identified {
		p.mu.RUnlock()
		return
	}
	doc := struct {
		pdu.Identity
		Transport    string          `json:"transport"`
		OutletBanks  map[int]int     `json:"outlet_banks,omitempty"`
		OutletLimits map[int]float64 `json:"outlet_limits,omitempty"`
	}{
		Identity:     p.identity,
		Transport:    p.transports[p.active].Name(),
		OutletBanks:  p.outletBanks,
		OutletLimits: p.outletLimits,
	}
	p.mu.RUnlock()

	if payload, err := json.Marshal(doc); err == nil {
		//nolint:errcheck
		p.cfg.Publisher.Publish(p.cfg.Topics.DeviceInfo(p.cfg.DeviceID), payload, 1, true)
	}
}
