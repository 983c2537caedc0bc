package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voltbridge/voltbridge/internal/automation"
	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/infrastructure/mqtt"
	"github.com/voltbridge/voltbridge/internal/poller"
)

// fakeBroker records publishes and lets tests inject subscribed messages.
type fakeBroker struct {
	mu       sync.Mutex
	messages map[string][]string
	subs     map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		messages: map[string][]string{},
		subs:     map[string]mqtt.MessageHandler{},
	}
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], string(payload))
	return nil
}

func (f *fakeBroker) PublishString(topic, payload string, qos byte, retained bool) error {
	return f.Publish(topic, []byte(payload), qos, retained)
}

func (f *fakeBroker) IsConnected() bool { return true }

func (f *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

// inject delivers a message to the wildcard command subscription.
func (f *fakeBroker) inject(t *testing.T, pattern, topic string, payload string) {
	t.Helper()
	f.mu.Lock()
	handler := f.subs[pattern]
	f.mu.Unlock()
	if handler == nil {
		t.Fatalf("no subscription for %s", pattern)
	}
	if err := handler(topic, []byte(payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func (f *fakeBroker) last(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[topic]
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1], true
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Bridge: config.BridgeConfig{
			DataDir:        t.TempDir(),
			PollIntervalMs: 1000,
			RetentionDays:  60,
		},
		MQTT: config.MQTTConfig{TopicPrefix: "pdu"},
	}
}

func quietLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test")
}

func startTestManager(t *testing.T, cfg *config.Config) (*Manager, *fakeBroker) {
	t.Helper()
	broker := newFakeBroker()
	m, err := NewManager(cfg, broker, nil, quietLogger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.stagger = time.Millisecond
	m.pollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, broker
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerFallsBackToSimulatedDevice(t *testing.T) {
	m, _ := startTestManager(t, testConfig(t))

	devices := m.Devices()
	if len(devices) != 1 || devices[0].ID != "pdu-01" || devices[0].Transport != "mock" {
		t.Fatalf("devices = %+v", devices)
	}

	p, ok := m.Poller("pdu-01")
	if !ok {
		t.Fatal("no poller for fallback device")
	}
	waitFor(t, 2*time.Second, "first poll", func() bool {
		return p.Snapshot() != nil
	})
}

func TestManagerLoadsRegistryFile(t *testing.T) {
	cfg := testConfig(t)
	devices := []Device{
		{ID: "rack1", Transport: "mock"},
		{ID: "rack2", Transport: "mock"},
	}
	if err := saveRegistry(cfg.Bridge.DataDir, devices); err != nil {
		t.Fatal(err)
	}

	m, _ := startTestManager(t, cfg)
	if got := len(m.Devices()); got != 2 {
		t.Fatalf("loaded %d devices, want 2", got)
	}
	if _, ok := m.Poller("rack2"); !ok {
		t.Error("no poller for rack2")
	}
}

func TestManagerAddRemoveDevice(t *testing.T) {
	cfg := testConfig(t)
	m, broker := startTestManager(t, cfg)

	if err := m.AddDevice(Device{ID: "pdu-02", Transport: "mock"}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if err := m.AddDevice(Device{ID: "pdu-02", Transport: "mock"}); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("duplicate add error = %v", err)
	}
	if err := m.AddDevice(Device{ID: "BAD ID", Transport: "mock"}); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("invalid add error = %v", err)
	}

	// Registry on disk reflects the addition.
	loaded, err := loadRegistry(cfg.Bridge.DataDir)
	if err != nil || len(loaded) != 2 {
		t.Fatalf("registry after add = %v, %v", loaded, err)
	}

	p, ok := m.Poller("pdu-02")
	if !ok {
		t.Fatal("no poller for added device")
	}
	waitFor(t, 2*time.Second, "added device to poll", func() bool {
		return p.Snapshot() != nil
	})

	// Seed per-device files, then verify removal drops them.
	rules, err := automation.NewStore(cfg.Bridge.DataDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := rules.Save("pdu-02", []automation.Rule{}); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveDevice("pdu-02"); err != nil {
		t.Fatalf("RemoveDevice: %v", err)
	}
	if err := m.RemoveDevice("pdu-02"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second remove error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Bridge.DataDir, "rules_pdu-02.json")); !os.IsNotExist(err) {
		t.Error("rule file survived removal")
	}
	loaded, err = loadRegistry(cfg.Bridge.DataDir)
	if err != nil || len(loaded) != 1 {
		t.Errorf("registry after remove = %v, %v", loaded, err)
	}

	// The stopped poller marked itself offline.
	topics := mqtt.Topics{}
	if msg, _ := broker.last(topics.DeviceBridgeStatus("pdu-02")); msg != "offline" {
		t.Errorf("device bridge status = %q", msg)
	}
}

func TestManagerRoutesOutletCommands(t *testing.T) {
	m, broker := startTestManager(t, testConfig(t))
	topics := mqtt.Topics{}

	p, _ := m.Poller("pdu-01")
	waitFor(t, 2*time.Second, "identity", func() bool {
		_, ok := p.Identity()
		return ok
	})

	broker.inject(t, topics.AllOutletCommands(), "pdu/pdu-01/outlet/2/command", "off")

	waitFor(t, 2*time.Second, "command response", func() bool {
		raw, ok := broker.last(topics.OutletCommandResponse("pdu-01", 2))
		if !ok {
			return false
		}
		var resp poller.CommandResponse
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return false
		}
		return resp.Success && resp.Origin == "mqtt"
	})

	// Garbage payloads and unknown devices are dropped quietly.
	broker.inject(t, topics.AllOutletCommands(), "pdu/pdu-01/outlet/2/command", "explode")
	broker.inject(t, topics.AllOutletCommands(), "pdu/ghost/outlet/1/command", "on")
}

func TestManagerHealthAggregation(t *testing.T) {
	m, _ := startTestManager(t, testConfig(t))

	p, _ := m.Poller("pdu-01")
	waitFor(t, 2*time.Second, "healthy device", func() bool {
		return p.Health().State == poller.StateHealthy
	})

	report := m.Health()
	if report.Status != "ok" || len(report.Issues) != 0 {
		t.Errorf("report = %+v", report)
	}
	if !report.MQTTConnected {
		t.Error("mqtt reported disconnected")
	}
	if _, ok := report.Devices["pdu-01"]; !ok {
		t.Error("device missing from report")
	}
}

func TestManagerStopMarksBridgeOffline(t *testing.T) {
	m, broker := startTestManager(t, testConfig(t))
	m.Stop()

	topics := mqtt.Topics{}
	if msg, _ := broker.last(topics.BridgeStatus()); msg != "offline" {
		t.Errorf("bridge status after stop = %q", msg)
	}
}
