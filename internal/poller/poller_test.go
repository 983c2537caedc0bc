package poller

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voltbridge/voltbridge/internal/automation"
	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/infrastructure/mqtt"
	"github.com/voltbridge/voltbridge/internal/pdu"
	"github.com/voltbridge/voltbridge/internal/transport"
)

// fakePublisher records every publish in order, per topic.
type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: map[string][]string{}}
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], string(payload))
	return nil
}

func (f *fakePublisher) PublishString(topic, payload string, qos byte, retained bool) error {
	return f.Publish(topic, []byte(payload), qos, retained)
}

func (f *fakePublisher) IsConnected() bool { return true }

func (f *fakePublisher) last(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[topic]
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1], true
}

func (f *fakePublisher) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages[topic])
}

// failingTransport identifies fine but never polls successfully.
type failingTransport struct{}

func (failingTransport) Name() string { return "failing" }

func (failingTransport) Connect(context.Context) error { return nil }

func (failingTransport) Close() error { return nil }

func (failingTransport) Poll(context.Context) (*pdu.Snapshot, error) {
	return nil, errors.New("request timed out")
}

func (failingTransport) Identify(context.Context) (pdu.Identity, error) {
	return pdu.Identity{DeviceName: "flaky", OutletCount: 10, BankCount: 2, PhaseCount: 1}, nil
}

func (failingTransport) StartupConfig(context.Context, int) (map[int]int, map[int]float64, error) {
	return map[int]int{}, map[int]float64{}, nil
}

func (failingTransport) CommandOutlet(context.Context, int, pdu.Command) error {
	return errors.New("request timed out")
}

func (failingTransport) SetPreferredSource(context.Context, pdu.Source) error {
	return errors.New("request timed out")
}

func (failingTransport) SetDeviceField(context.Context, transport.DeviceField, string) error {
	return errors.New("request timed out")
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test")
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

func startTestPoller(t *testing.T, cfg Config) (*Poller, *fakePublisher) {
	t.Helper()
	pub := newFakePublisher()
	if cfg.DeviceID == "" {
		cfg.DeviceID = "pdu-01"
	}
	if cfg.Transport == nil {
		cfg.Transport = transport.NewMock("PDU44001", testLogger())
	}
	cfg.Publisher = pub
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Millisecond
	}
	cfg.Logger = testLogger()

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p.Start(ctx)
	t.Cleanup(p.Stop)
	return p, pub
}

func TestPollerPublishesMetrics(t *testing.T) {
	p, pub := startTestPoller(t, Config{})
	topics := mqtt.Topics{}

	waitFor(t, 2*time.Second, "first snapshot", func() bool {
		return p.Snapshot() != nil
	})

	if msg, ok := pub.last(topics.DeviceBridgeStatus("pdu-01")); !ok || msg != "online" {
		t.Errorf("bridge status = %q, %v", msg, ok)
	}
	if _, ok := pub.last(topics.InputVoltage("pdu-01")); !ok {
		t.Error("input voltage never published")
	}
	if msg, ok := pub.last(topics.OutletState("pdu-01", 1)); !ok || msg != "on" {
		t.Errorf("outlet 1 state = %q, %v", msg, ok)
	}
	if msg, ok := pub.last(topics.ATSCurrentSource("pdu-01")); !ok || msg != "A" {
		t.Errorf("ats current source = %q, %v", msg, ok)
	}
	if _, ok := pub.last(topics.DeviceInfo("pdu-01")); !ok {
		t.Error("device info never published")
	}
	if h := p.Health(); h.State != StateHealthy {
		t.Errorf("health = %+v", h)
	}

	p.Stop()
	if msg, _ := pub.last(topics.DeviceBridgeStatus("pdu-01")); msg != "offline" {
		t.Errorf("bridge status after stop = %q", msg)
	}
}

func TestPollerCommandRoundTrip(t *testing.T) {
	mock := transport.NewMock("PDU44001", testLogger())
	p, pub := startTestPoller(t, Config{Transport: mock})
	topics := mqtt.Topics{}

	waitFor(t, 2*time.Second, "identity", func() bool {
		_, ok := p.Identity()
		return ok
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.CommandOutlet(ctx, 3, pdu.CommandOff, "http"); err != nil {
		t.Fatalf("CommandOutlet: %v", err)
	}
	if mock.OutletIsOn(3) {
		t.Error("outlet 3 still on after off command")
	}

	raw, ok := pub.last(topics.OutletCommandResponse("pdu-01", 3))
	if !ok {
		t.Fatal("no command response published")
	}
	var resp CommandResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("response payload: %v", err)
	}
	if !resp.Success || resp.Command != "off" || resp.Outlet != 3 || resp.Origin != "http" {
		t.Errorf("response = %+v", resp)
	}

	// Out-of-range outlets are rejected before touching the transport,
	// and the failure response is still published.
	err := p.CommandOutlet(ctx, 99, pdu.CommandOff, "http")
	if !errors.Is(err, pdu.ErrInvalidOutlet) {
		t.Errorf("outlet 99 error = %v", err)
	}
	if _, ok := pub.last(topics.OutletCommandResponse("pdu-01", 99)); !ok {
		t.Error("no response for rejected command")
	}
}

func TestPollerSwapsToSecondary(t *testing.T) {
	secondary := transport.NewMock("PDU44001", testLogger())
	p, _ := startTestPoller(t, Config{
		Transport: failingTransport{},
		Secondary: secondary,
		Interval:  2 * time.Millisecond,
	})

	waitFor(t, 5*time.Second, "transport swap and recovery", func() bool {
		h := p.Health()
		return h.State == StateHealthy && h.Transport == "mock"
	})
	if p.Snapshot() == nil {
		t.Error("no snapshot after recovery on secondary")
	}
}

func TestPollerLostFiresScanHook(t *testing.T) {
	var mu sync.Mutex
	var lost []string
	p, _ := startTestPoller(t, Config{
		Transport: failingTransport{},
		Interval:  2 * time.Millisecond,
		OnLost: func(deviceID string) {
			mu.Lock()
			lost = append(lost, deviceID)
			mu.Unlock()
		},
	})

	waitFor(t, 5*time.Second, "lost state", func() bool {
		return p.Health().State == StateLost
	})
	// A few more failing cycles must not refire the hook.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(lost) != 1 || lost[0] != "pdu-01" {
		t.Errorf("lost hook calls = %v, want one for pdu-01", lost)
	}
	if p.Snapshot() != nil {
		t.Error("snapshot exists despite no successful poll")
	}
}

func TestPollerRebootRepublishesIdentity(t *testing.T) {
	mock := transport.NewMock("PDU44001", testLogger())
	p, pub := startTestPoller(t, Config{Transport: mock})
	topics := mqtt.Topics{}

	waitFor(t, 2*time.Second, "first snapshot", func() bool {
		return p.Snapshot() != nil
	})
	before := pub.count(topics.DeviceInfo("pdu-01"))

	// Give the uptime a moment to accumulate, then reset it.
	time.Sleep(30 * time.Millisecond)
	mock.SimulateReboot()

	waitFor(t, 2*time.Second, "identity republish", func() bool {
		return pub.count(topics.DeviceInfo("pdu-01")) > before
	})
	_ = p
}

func TestPollerExecutesAutomationIntents(t *testing.T) {
	engine, err := automation.NewEngine("pdu-01", 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Mock input voltage sits near 120 V, so this fires on the first cycle.
	if err := engine.AddRule(automation.Rule{
		Name: "shed", Enabled: true,
		Condition: automation.CondVoltageBelow, Threshold: 200, Input: 1,
		Outlet: "2", Action: "off",
	}); err != nil {
		t.Fatal(err)
	}

	mock := transport.NewMock("PDU44001", testLogger())
	p, pub := startTestPoller(t, Config{Transport: mock, Engine: engine})
	topics := mqtt.Topics{}

	waitFor(t, 2*time.Second, "automation to fire", func() bool {
		return !mock.OutletIsOn(2)
	})

	raw, ok := pub.last(topics.OutletCommandResponse("pdu-01", 2))
	if !ok {
		t.Fatal("no response for automation command")
	}
	if !strings.Contains(raw, `"automation:shed"`) {
		t.Errorf("response origin missing rule tag: %s", raw)
	}
	if pub.count(topics.AutomationEvent("pdu-01")) == 0 {
		t.Error("no automation event published")
	}
	if _, ok := pub.last(topics.AutomationStatus("pdu-01")); !ok {
		t.Error("no automation status published")
	}
	_ = p
}

func TestPollerManagementSurface(t *testing.T) {
	mock := transport.NewMock("PDU44001", testLogger())
	p, _ := startTestPoller(t, Config{Transport: mock})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ths transport.Thresholds
	err := p.Management(ctx, func(ctx context.Context, mgmt transport.Management) error {
		var err error
		ths, err = mgmt.GetDeviceThresholds(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("Management: %v", err)
	}
	if ths.Overload == nil {
		t.Error("thresholds not populated")
	}
}

func TestPollerManagementUnsupported(t *testing.T) {
	p, _ := startTestPoller(t, Config{Transport: failingTransport{}, Interval: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.Management(ctx, func(context.Context, transport.Management) error { return nil })
	if !errors.Is(err, ErrManagementUnsupported) {
		t.Errorf("error = %v, want ErrManagementUnsupported", err)
	}
	if p.HasManagement() {
		t.Error("HasManagement() true for transport without console")
	}
}

func TestPollerOutletNameOverride(t *testing.T) {
	store, err := NewNameStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, pub := startTestPoller(t, Config{Names: store})
	topics := mqtt.Topics{}

	waitFor(t, 2*time.Second, "identity", func() bool {
		_, ok := p.Identity()
		return ok
	})

	if err := p.SetOutletName(4, "nas"); err != nil {
		t.Fatalf("SetOutletName: %v", err)
	}
	if msg, ok := pub.last(topics.OutletName("pdu-01", 4)); !ok || msg != "nas" {
		t.Errorf("published name = %q, %v", msg, ok)
	}
	if err := p.SetOutletName(99, "bad"); !errors.Is(err, pdu.ErrInvalidOutlet) {
		t.Errorf("out-of-range name error = %v", err)
	}

	// The override is durable and wins over the device name on the next
	// snapshot publish.
	names, err := store.Load("pdu-01")
	if err != nil || names[4] != "nas" {
		t.Errorf("persisted names = %v, %v", names, err)
	}
	waitFor(t, 2*time.Second, "override on metric topic", func() bool {
		msg, ok := pub.last(topics.OutletName("pdu-01", 4))
		return ok && msg == "nas"
	})
}

func TestShutdownAnswersQueuedCommands(t *testing.T) {
	pub := newFakePublisher()
	topics := mqtt.Topics{}
	p, err := New(Config{
		DeviceID:  "pdu-01",
		Transport: failingTransport{},
		Publisher: pub,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Requests still on the FIFO when the loop exits must not be abandoned.
	cmdReply := make(chan error, 1)
	fnReply := make(chan error, 1)
	p.requests <- request{outlet: 3, cmd: pdu.CommandOff, origin: "http", reply: cmdReply}
	p.requests <- request{
		fn:    func(context.Context, transport.Transport) error { return nil },
		reply: fnReply,
	}

	p.drainRequests()

	if err := <-cmdReply; !errors.Is(err, ErrStopped) {
		t.Errorf("queued command error = %v, want ErrStopped", err)
	}
	if err := <-fnReply; !errors.Is(err, ErrStopped) {
		t.Errorf("queued fn error = %v, want ErrStopped", err)
	}

	raw, ok := pub.last(topics.OutletCommandResponse("pdu-01", 3))
	if !ok {
		t.Fatal("no response document for the abandoned command")
	}
	var resp CommandResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("response payload: %v", err)
	}
	if resp.Success || resp.Error == "" || resp.Outlet != 3 {
		t.Errorf("response = %+v, want failed outlet 3", resp)
	}
}

func TestStatusPayloadSummaryFields(t *testing.T) {
	pub := newFakePublisher()
	topics := mqtt.Topics{}
	p := &Poller{
		cfg:           Config{DeviceID: "pdu-01", Publisher: pub, Topics: topics},
		nameOverrides: map[int]string{},
	}

	v := 118.2
	p.publishSnapshot(&pdu.Snapshot{
		Timestamp:    time.Now().Add(-3 * time.Second),
		InputVoltage: &v,
	})

	raw, ok := pub.last(topics.DeviceStatus("pdu-01"))
	if !ok {
		t.Fatal("no status document published")
	}
	var doc struct {
		MQTT           *bool    `json:"mqtt"`
		DataAgeSeconds *float64 `json:"data_age_seconds"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if doc.MQTT == nil || !*doc.MQTT {
		t.Errorf("mqtt field = %v, want true", doc.MQTT)
	}
	if doc.DataAgeSeconds == nil || *doc.DataAgeSeconds < 3 || *doc.DataAgeSeconds > 10 {
		t.Errorf("data_age_seconds = %v, want about 3", doc.DataAgeSeconds)
	}
}

func TestPublishSkipsMissingFields(t *testing.T) {
	pub := newFakePublisher()
	topics := mqtt.Topics{}
	p := &Poller{
		cfg:           Config{DeviceID: "pdu-01", Publisher: pub, Topics: topics},
		nameOverrides: map[int]string{},
	}

	v := 118.2
	p.publishSnapshot(&pdu.Snapshot{
		Timestamp:    time.Now(),
		InputVoltage: &v,
		Outlets:      map[int]pdu.Outlet{1: {Number: 1, State: pdu.OutletStateUnknown}},
	})

	if msg, ok := pub.last(topics.InputVoltage("pdu-01")); !ok || msg != "118.2" {
		t.Errorf("input voltage = %q, %v", msg, ok)
	}
	if _, ok := pub.last(topics.InputFrequency("pdu-01")); ok {
		t.Error("published frequency with no reading")
	}
	if _, ok := pub.last(topics.OutletState("pdu-01", 1)); ok {
		t.Error("published unknown outlet state")
	}
	if _, ok := pub.last(topics.TotalLoad("pdu-01")); ok {
		t.Error("published total load with no metered banks")
	}
}
