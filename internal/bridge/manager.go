package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/automation"
	"github.com/voltbridge/voltbridge/internal/history"
	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/infrastructure/mqtt"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/poller"
	"github.com/voltbridge/voltbridge/internal/transport"
)

// Broker is the slice of the MQTT client the manager needs.
type Broker interface {
	poller.Publisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

const (
	// pollerStagger spaces poller starts out so a fleet of SNMP devices
	// does not burst onto the network in the same instant.
	pollerStagger = 100 * time.Millisecond

	deviceInfoInterval  = 30 * time.Second
	maintenanceInterval = time.Hour
	commandTimeout      = 30 * time.Second
)

// Manager owns the device fleet: registry, pollers, command routing and
// the housekeeping schedule.
type Manager struct {
	cfg       *config.Config
	broker    Broker
	topics    mqtt.Topics
	history   *history.Store
	telemetry poller.Telemetry
	rules     *automation.Store
	names     *poller.NameStore
	logger    *logging.Logger

	// stagger is overridable in tests; pollInterval and retentionDays are
	// runtime settings adjustable over HTTP.
	stagger       time.Duration
	pollInterval  time.Duration
	retentionDays int

	mu      sync.RWMutex
	devices map[string]Device
	pollers map[string]*poller.Poller
	runCtx  context.Context

	startTime time.Time
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewManager builds the manager and its per-device file stores under the
// bridge data directory. hist may be nil when history is disabled.
func NewManager(cfg *config.Config, broker Broker, hist *history.Store, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Default()
	}
	rules, err := automation.NewStore(cfg.Bridge.DataDir)
	if err != nil {
		return nil, err
	}
	names, err := poller.NewNameStore(cfg.Bridge.DataDir)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:           cfg,
		broker:        broker,
		topics:        mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
		history:       hist,
		rules:         rules,
		names:         names,
		logger:        logger.With("component", "bridge"),
		stagger:       pollerStagger,
		pollInterval:  cfg.PollInterval(),
		retentionDays: cfg.Bridge.RetentionDays,
		devices:       map[string]Device{},
		pollers:       map[string]*poller.Poller{},
		done:          make(chan struct{}),
	}, nil
}

// SetTelemetry installs the optional external time-series sink. Must be
// called before Start.
func (m *Manager) SetTelemetry(t poller.Telemetry) {
	m.telemetry = t
}

// Start loads the registry, subscribes to the command topics and launches
// a poller per device with a small stagger between starts.
func (m *Manager) Start(ctx context.Context) error {
	m.startTime = time.Now()
	m.runCtx = ctx

	if s, err := loadSettings(m.cfg.Bridge.DataDir); err != nil {
		m.logger.Warn("ignoring unreadable settings file", "error", err)
	} else if s != nil {
		if err := s.Validate(); err != nil {
			m.logger.Warn("ignoring invalid settings file", "error", err)
		} else {
			m.pollInterval = time.Duration(s.PollIntervalMs) * time.Millisecond
			m.retentionDays = s.RetentionDays
		}
	}
	if m.history != nil {
		m.history.SetRetention(m.retentionDays)
	}

	devices, err := loadRegistry(m.cfg.Bridge.DataDir)
	if err != nil {
		return err
	}
	if devices == nil {
		if dev, ok := deviceFromConfig(m.cfg.Bridge.Device); ok {
			if err := dev.Validate(); err != nil {
				return err
			}
			devices = []Device{dev}
		} else {
			m.logger.Info("no devices configured, starting with a simulated device")
			devices = []Device{{ID: "pdu-01", Transport: "mock"}}
		}
	}

	if err := m.broker.Subscribe(m.topics.AllOutletCommands(), 1, m.handleOutletCommand); err != nil {
		m.logger.Warn("command topic subscribe failed, retrying on reconnect", "error", err)
	}

	for i, dev := range devices {
		if i > 0 {
			select {
			case <-time.After(m.stagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := m.startDevice(dev); err != nil {
			return err
		}
	}

	m.wg.Add(1)
	go m.schedule(ctx)

	m.logger.Info("bridge started", "devices", len(devices))
	return nil
}

// Stop shuts the schedule down and stops every poller in parallel, then
// marks the bridge offline.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()

		m.mu.RLock()
		pollers := make([]*poller.Poller, 0, len(m.pollers))
		for _, p := range m.pollers {
			pollers = append(pollers, p)
		}
		m.mu.RUnlock()

		var wg sync.WaitGroup
		for _, p := range pollers {
			wg.Add(1)
			go func(p *poller.Poller) {
				defer wg.Done()
				p.Stop()
			}(p)
		}
		wg.Wait()

		//nolint:errcheck // Best-effort during shutdown.
		m.broker.PublishString(m.topics.BridgeStatus(), "offline", 1, true)
		m.logger.Info("bridge stopped")
	})
}

// ─── Device lifecycle ────────────────────────────────────────────────────

// AddDevice validates, persists and starts a new device while the bridge
// runs.
func (m *Manager) AddDevice(dev Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.devices[dev.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceExists, dev.ID)
	}
	m.mu.Unlock()

	if err := m.startDevice(dev); err != nil {
		return err
	}
	return m.persistRegistry()
}

// UpdateDevice replaces a device's definition in place: the old poller
// stops, a new one starts on the updated transports. The device id is
// immutable; rule and outlet-name files survive the swap.
func (m *Manager) UpdateDevice(id string, dev Device) error {
	dev.ID = id
	if err := dev.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	p, ok := m.pollers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	delete(m.pollers, id)
	delete(m.devices, id)
	m.mu.Unlock()

	p.Stop()
	if err := m.startDevice(dev); err != nil {
		return err
	}
	m.logger.Info("device updated", "device_id", id)
	return m.persistRegistry()
}

// RemoveDevice stops a device's poller and drops its registry entry, rule
// file and outlet name overrides.
func (m *Manager) RemoveDevice(id string) error {
	m.mu.Lock()
	p, ok := m.pollers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	delete(m.pollers, id)
	delete(m.devices, id)
	m.mu.Unlock()

	p.Stop()
	if err := m.rules.Delete(id); err != nil {
		m.logger.Warn("deleting rule file", "device_id", id, "error", err)
	}
	if err := m.names.Delete(id); err != nil {
		m.logger.Warn("deleting outlet names", "device_id", id, "error", err)
	}
	m.logger.Info("device removed", "device_id", id)
	return m.persistRegistry()
}

// Devices lists the registry sorted by id.
func (m *Manager) Devices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// Poller returns the running poller for one device.
func (m *Manager) Poller(id string) (*poller.Poller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pollers[id]
	return p, ok
}

// Pollers returns the running pollers keyed by device id.
func (m *Manager) Pollers() map[string]*poller.Poller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*poller.Poller, len(m.pollers))
	for id, p := range m.pollers {
		out[id] = p
	}
	return out
}

func (m *Manager) startDevice(dev Device) error {
	primary, secondary, err := m.buildTransports(dev)
	if err != nil {
		return err
	}

	outletHint := dev.OutletCount
	if outletHint == 0 {
		outletHint = 10
	}
	engine, err := automation.NewEngine(dev.ID, outletHint, m.rules, m.logger)
	if err != nil {
		return err
	}

	m.mu.RLock()
	interval := m.pollInterval
	m.mu.RUnlock()

	p, err := poller.New(poller.Config{
		DeviceID:     dev.ID,
		Transport:    primary,
		Secondary:    secondary,
		Publisher:    m.broker,
		Topics:       m.topics,
		History:      m.history,
		Telemetry:    m.telemetry,
		Engine:       engine,
		Names:        m.names,
		Interval:     interval,
		Logger:       m.logger,
		OnLost:       m.onDeviceLost,
		OnIdentified: m.publishDiscovery,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.devices[dev.ID] = dev
	m.pollers[dev.ID] = p
	m.mu.Unlock()

	p.Start(m.runCtx)
	m.logger.Info("device started",
		"device_id", dev.ID, "transport", dev.Transport)
	return nil
}

func (m *Manager) buildTransports(dev Device) (primary, secondary transport.Transport, err error) {
	switch dev.Transport {
	case "mock":
		return transport.NewMock(dev.ID, m.logger), nil, nil

	case "serial":
		return transport.NewSerial(m.serialConfig(dev), m.logger), nil, nil

	case "snmp":
		snmp := transport.NewSNMP(transport.SNMPConfig{
			Host:           dev.Host,
			Port:           uint16(dev.SNMPPort),
			ReadCommunity:  dev.Community,
			WriteCommunity: dev.WriteCommunity,
			OutletCount:    dev.OutletCount,
			BankCount:      dev.BankCount,
		}, m.logger)
		if dev.SerialPort != "" {
			return snmp, transport.NewSerial(m.serialConfig(dev), m.logger), nil
		}
		return snmp, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidDevice, dev.Transport)
}

func (m *Manager) serialConfig(dev Device) transport.SerialConfig {
	return transport.SerialConfig{
		Port:     dev.SerialPort,
		Baud:     dev.SerialBaud,
		Username: dev.SerialUsername,
		Password: dev.SerialPassword,
	}
}

func (m *Manager) persistRegistry() error {
	return saveRegistry(m.cfg.Bridge.DataDir, m.Devices())
}

func (m *Manager) onDeviceLost(deviceID string) {
	// Rediscovery is manual: the operator fixes the network or points the
	// device at a new address through the registry API.
	m.logger.Error("device unreachable past failover threshold",
		"device_id", deviceID)
}

// ─── Command routing ─────────────────────────────────────────────────────

// handleOutletCommand routes one MQTT command publish to its device. The
// command runs in the background so a slow serial console never blocks the
// MQTT receive path.
func (m *Manager) handleOutletCommand(topic string, payload []byte) error {
	deviceID, outlet, ok := m.topics.ParseOutletCommand(topic)
	if !ok {
		return nil
	}

	cmd, err := pdu.ParseCommand(strings.TrimSpace(string(payload)))
	if err != nil {
		m.logger.Warn("ignoring malformed outlet command",
			"topic", topic, "payload", string(payload))
		return nil
	}

	p, ok := m.Poller(deviceID)
	if !ok {
		m.logger.Warn("command for unknown device", "device_id", deviceID)
		return nil
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		// Failures are logged and published by the poller itself.
		_ = p.CommandOutlet(ctx, outlet, cmd, "mqtt")
	}()
	return nil
}

// ─── Housekeeping ────────────────────────────────────────────────────────

func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()

	infoTicker := time.NewTicker(deviceInfoInterval)
	defer infoTicker.Stop()
	maintTicker := time.NewTicker(maintenanceInterval)
	defer maintTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-infoTicker.C:
			for _, p := range m.Pollers() {
				p.PublishDeviceInfo()
			}
		case <-maintTicker.C:
			m.runMaintenance(ctx)
		}
	}
}

// runMaintenance sweeps expired samples and generates any completed weekly
// reports that are still missing.
func (m *Manager) runMaintenance(ctx context.Context) {
	if m.history == nil {
		return
	}
	now := time.Now()
	if err := m.history.Sweep(ctx, now); err != nil {
		m.logger.Warn("retention sweep failed", "error", err)
	}

	ids := make([]string, 0)
	for _, d := range m.Devices() {
		ids = append(ids, d.ID)
	}
	m.history.GenerateDueReports(ctx, ids, now)
}

// ─── Health ──────────────────────────────────────────────────────────────

// HealthReport is the aggregate served by /api/health.
type HealthReport struct {
	Status        string                   `json:"status"` // ok or degraded
	UptimeSeconds int64                    `json:"uptime_seconds"`
	MQTTConnected bool                     `json:"mqtt_connected"`
	Devices       map[string]poller.Health `json:"devices"`
	Issues        []string                 `json:"issues,omitempty"`
}

// Health aggregates broker, history and per-device health. Device issues
// are prefixed with the device id so a fleet-wide view stays readable.
func (m *Manager) Health() HealthReport {
	report := HealthReport{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		MQTTConnected: m.broker.IsConnected(),
		Devices:       map[string]poller.Health{},
	}

	if !report.MQTTConnected {
		report.Issues = append(report.Issues, "mqtt broker disconnected")
	}
	if m.history != nil {
		if n := m.history.WriteErrors(); n > 0 {
			report.Issues = append(report.Issues,
				fmt.Sprintf("history writes failed %d times", n))
		}
	}

	for id, p := range m.Pollers() {
		h := p.Health()
		report.Devices[id] = h
		switch h.State {
		case poller.StateHealthy, poller.StateStarting:
		default:
			issue := fmt.Sprintf("[%s] %s", id, h.State)
			if h.LastError != "" {
				issue += ": " + h.LastError
			}
			report.Issues = append(report.Issues, issue)
		}
	}

	sort.Strings(report.Issues)
	if len(report.Issues) > 0 {
		report.Status = "degraded"
	}
	return report
}
