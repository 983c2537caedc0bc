package transport

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

const (
	mockOutletCount = 10
	mockBankCount   = 2
	mockRebootDelay = 5 * time.Second
)

// Mock simulates an ATS PDU without hardware: two sources with slow
// sinusoidal voltage drift, ten outlets, two banks, automatic transfer
// when the active source fails. It implements Management too, so the
// whole console surface is exercisable in tests and demos.
type Mock struct {
	logger *logging.Logger
	rng    *rand.Rand

	mu            sync.Mutex
	connected     bool
	start         time.Time
	deviceName    string
	sysLocation   string
	preferred     pdu.Source
	active        pdu.Source
	failedSources map[pdu.Source]bool
	outletOn      [mockOutletCount + 1]bool
	outletNames   [mockOutletCount + 1]string
	rebootAt      [mockOutletCount + 1]time.Time
	delayedCmd    [mockOutletCount + 1]pdu.Command
	delayedAt     [mockOutletCount + 1]time.Time

	thresholds     Thresholds
	bankThresholds map[int]Thresholds
	atsConfig      pdu.ATSConfig
	coldstart      pdu.Coldstart
	network        NetworkConfig
	outletCfg      map[int]OutletConfig
	notifications  Notifications
	energyWise     EnergyWiseConfig
	users          map[string]UserAccount
	password       string
	events         []EventLogEntry
	envEnabled     bool
	temperature    float64
	humidity       int
}

// NewMock builds a simulated device. All outlets start on with source A
// preferred and active.
func NewMock(deviceName string, logger *logging.Logger) *Mock {
	if logger == nil {
		logger = logging.Default()
	}
	if deviceName == "" {
		deviceName = "PDU44001"
	}
	overload, nearOver, lowLoad := 16.0, 12.0, 0.5
	upper, lower, transfer := 148.0, 88.0, 88.0
	delay := 0
	m := &Mock{
		logger:        logger.With("component", "transport", "transport", "mock"),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		start:         time.Now(),
		deviceName:    deviceName,
		sysLocation:   "Lab",
		preferred:     pdu.SourceA,
		active:        pdu.SourceA,
		failedSources: make(map[pdu.Source]bool),
		thresholds: Thresholds{
			Overload: &overload, NearOverload: &nearOver, LowLoad: &lowLoad,
		},
		bankThresholds: make(map[int]Thresholds),
		atsConfig: pdu.ATSConfig{
			VoltageSensitivity: "normal",
			TransferVoltage:    &transfer,
			VoltageUpperLimit:  &upper,
			VoltageLowerLimit:  &lower,
		},
		coldstart: pdu.Coldstart{DelaySeconds: &delay, State: "prevstate"},
		network: NetworkConfig{
			IP: "192.168.20.177", Subnet: "255.255.255.0",
			Gateway: "192.168.20.1", MACAddress: "00:0C:15:40:41:42",
		},
		outletCfg:   make(map[int]OutletConfig),
		energyWise:  EnergyWiseConfig{Port: 43440},
		users:       map[string]UserAccount{"admin": {Username: "cyber", Access: "admin"}},
		password:    "cyber",
		envEnabled:  true,
		temperature: 22.5,
		humidity:    45,
	}
	for i := 1; i <= mockOutletCount; i++ {
		m.outletOn[i] = true
		m.outletNames[i] = "Outlet" + strconv.Itoa(i)
		m.outletCfg[i] = OutletConfig{Name: m.outletNames[i], RebootDuration: 5}
	}
	return m
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Mock) Identify(ctx context.Context) (pdu.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return pdu.Identity{}, errorf(KindUnreachable, "mock identify", "not connected")
	}
	maxAmps := 16.0
	return pdu.Identity{
		DeviceName:   m.deviceName,
		Model:        "PDU44001",
		SerialNumber: "MOCK0000001",
		FirmwareRev:  "1.3.4",
		HardwareRev:  "3",
		MACAddress:   m.network.MACAddress,
		MaxInputAmps: &maxAmps,
		OutletCount:  mockOutletCount,
		PhaseCount:   1,
		BankCount:    mockBankCount,
		SysName:      m.deviceName,
		SysLocation:  m.sysLocation,
	}, nil
}

// Poll synthesizes one snapshot from the waveform state.
func (m *Mock) Poll(ctx context.Context) (*pdu.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, errorf(KindUnreachable, "mock poll", "not connected")
	}

	now := time.Now()
	m.tickLocked(now)

	elapsed := now.Sub(m.start).Seconds()
	voltageA := m.sourceVoltage(pdu.SourceA, elapsed)
	voltageB := m.sourceVoltage(pdu.SourceB, elapsed)
	freq := 60.0 + 0.02*math.Sin(elapsed/30)

	onCount := 0
	outlets := make(map[int]pdu.Outlet, mockOutletCount)
	for i := 1; i <= mockOutletCount; i++ {
		state := pdu.OutletOff
		var current, power float64
		if m.outletOn[i] {
			state = pdu.OutletOn
			onCount++
			current = 0.3 + 0.05*m.rng.Float64()
			power = current * m.activeVoltage(voltageA, voltageB)
		}
		o := pdu.Outlet{Number: i, Name: m.outletNames[i], State: state}
		if m.outletOn[i] {
			c, p := roundTenth(current), roundTenth(power)
			e := roundTenth(elapsed / 3600 * power / 1000)
			o.Current, o.Power, o.Energy = &c, &p, &e
		} else {
			zero := 0.0
			o.Current, o.Power = &zero, &zero
		}
		outlets[i] = o
	}

	totalCurrent := roundTenth(float64(onCount)*0.3 + 0.1*m.rng.Float64())
	banks := make(map[int]pdu.Bank, mockBankCount)
	for b := 1; b <= mockBankCount; b++ {
		voltage := voltageA
		if b == 2 {
			voltage = voltageB
		}
		current := roundTenth(totalCurrent / mockBankCount)
		power := roundTenth(current * voltage)
		apparent := roundTenth(power / 0.95)
		pf := 0.95
		v := roundTenth(voltage)
		banks[b] = pdu.Bank{
			Number: b, Voltage: &v, Current: &current,
			Power: &power, ApparentPower: &apparent, PowerFactor: &pf,
			LoadState: pdu.LoadNormal,
		}
	}

	redundancy := !m.failedSources[pdu.SourceA] && !m.failedSources[pdu.SourceB]
	inputVoltage := roundTenth(m.activeVoltage(voltageA, voltageB))
	inputFreq := roundTenth(freq*10) / 10
	uptime := int64(elapsed * 100)
	va, vb := roundTenth(voltageA), roundTenth(voltageB)

	snap := &pdu.Snapshot{
		Timestamp:        now,
		DeviceName:       m.deviceName,
		InputVoltage:     &inputVoltage,
		InputFrequency:   &inputFreq,
		UptimeHundredths: &uptime,
		Outlets:          outlets,
		Banks:            banks,
		ATS: &pdu.ATS{
			PreferredSource: m.preferred,
			CurrentSource:   m.active,
			AutoTransfer:    true,
			RedundancyOK:    &redundancy,
		},
		SourceA: &pdu.SourceReading{
			Voltage: &va, Frequency: &inputFreq,
			VoltageStatus: m.sourceStatus(pdu.SourceA),
		},
		SourceB: &pdu.SourceReading{
			Voltage: &vb, Frequency: &inputFreq,
			VoltageStatus: m.sourceStatus(pdu.SourceB),
		},
	}
	cfg := m.atsConfig
	cold := m.coldstart
	snap.ATSConfig = &cfg
	snap.Coldstart = &cold
	if m.envEnabled {
		temp := m.temperature + 0.5*math.Sin(elapsed/120)
		temp = roundTenth(temp)
		hum := m.humidity
		snap.Environment = &pdu.Environment{
			Temperature: &temp,
			TempUnit:    "C",
			Humidity:    &hum,
			Contacts:    map[int]pdu.ContactState{1: pdu.ContactClosed, 2: pdu.ContactOpen},
		}
	}
	return snap, nil
}

// tickLocked advances reboot and delayed-command timers and re-evaluates
// the ATS transfer state.
func (m *Mock) tickLocked(now time.Time) {
	for i := 1; i <= mockOutletCount; i++ {
		if !m.rebootAt[i].IsZero() && now.After(m.rebootAt[i]) {
			m.outletOn[i] = true
			m.rebootAt[i] = time.Time{}
			m.recordEventLocked("Outlet " + strconv.Itoa(i) + " turned on (reboot complete)")
		}
		if !m.delayedAt[i].IsZero() && now.After(m.delayedAt[i]) {
			switch m.delayedCmd[i] {
			case pdu.CommandDelayOn:
				m.outletOn[i] = true
			case pdu.CommandDelayOff:
				m.outletOn[i] = false
			}
			m.delayedAt[i] = time.Time{}
			m.delayedCmd[i] = ""
		}
	}

	want := m.preferred
	if m.failedSources[want] {
		if want == pdu.SourceA {
			want = pdu.SourceB
		} else {
			want = pdu.SourceA
		}
	}
	if m.failedSources[want] {
		return // both dead, hold position
	}
	if want != m.active {
		m.recordEventLocked("ATS transferred to source " + string(want))
		m.active = want
	}
}

func (m *Mock) sourceVoltage(src pdu.Source, elapsed float64) float64 {
	if m.failedSources[src] {
		return 0
	}
	phase := 0.0
	if src == pdu.SourceB {
		phase = math.Pi / 3
	}
	return 120.0 + 2.0*math.Sin(elapsed/60+phase)
}

func (m *Mock) activeVoltage(a, b float64) float64 {
	if m.active == pdu.SourceB {
		return b
	}
	return a
}

func (m *Mock) sourceStatus(src pdu.Source) pdu.SourceStatus {
	if m.failedSources[src] {
		return pdu.SourceUnderVoltage
	}
	return pdu.SourceNormal
}

func (m *Mock) StartupConfig(ctx context.Context, outletCount int) (map[int]int, map[int]float64, error) {
	banks := make(map[int]int)
	limits := make(map[int]float64)
	for i := 1; i <= mockOutletCount; i++ {
		banks[i] = (i-1)/(mockOutletCount/mockBankCount) + 1
		limits[i] = 10.0
	}
	return banks, limits, nil
}

func (m *Mock) CommandOutlet(ctx context.Context, outlet int, cmd pdu.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errorf(KindUnreachable, "mock command", "not connected")
	}
	if outlet < 1 || outlet > mockOutletCount {
		return newError(KindRefused, "mock command", pdu.ErrInvalidOutlet)
	}

	now := time.Now()
	switch cmd {
	case pdu.CommandOn:
		m.outletOn[outlet] = true
		m.rebootAt[outlet] = time.Time{}
	case pdu.CommandOff:
		m.outletOn[outlet] = false
		m.rebootAt[outlet] = time.Time{}
	case pdu.CommandReboot:
		m.outletOn[outlet] = false
		m.rebootAt[outlet] = now.Add(mockRebootDelay)
	case pdu.CommandDelayOn, pdu.CommandDelayOff:
		m.delayedCmd[outlet] = cmd
		m.delayedAt[outlet] = now.Add(mockRebootDelay)
	case pdu.CommandCancel:
		m.delayedAt[outlet] = time.Time{}
		m.delayedCmd[outlet] = ""
		m.rebootAt[outlet] = time.Time{}
	default:
		return newError(KindRefused, "mock command", pdu.ErrUnknownCommand)
	}
	m.recordEventLocked("Outlet " + strconv.Itoa(outlet) + " command " + string(cmd))
	return nil
}

func (m *Mock) SetPreferredSource(ctx context.Context, src pdu.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred = src
	m.recordEventLocked("Preferred source set to " + string(src))
	return nil
}

func (m *Mock) SetDeviceField(ctx context.Context, field DeviceField, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch field {
	case FieldDeviceName, FieldSysName:
		m.deviceName = value
	case FieldSysLocation:
		m.sysLocation = value
	case FieldSysContact:
		// accepted, not modeled
	default:
		return errorf(KindRefused, "mock set", "unknown device field %q", field)
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// ─── Simulation controls (test hooks, not part of Transport) ───

// FailSource simulates losing one input. The ATS transfers on the next
// poll if the failed source is active.
func (m *Mock) FailSource(src pdu.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedSources[src] = true
	m.recordEventLocked("Source " + string(src) + " power lost")
}

// RestoreSource brings a failed input back.
func (m *Mock) RestoreSource(src pdu.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failedSources, src)
	m.recordEventLocked("Source " + string(src) + " power restored")
}

// SimulateReboot resets the uptime counter so pollers observe a reboot.
func (m *Mock) SimulateReboot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = time.Now()
	m.recordEventLocked("System started")
}

// SetEnvironmentSensor toggles the simulated probe.
func (m *Mock) SetEnvironmentSensor(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envEnabled = enabled
}

// OutletIsOn reports the raw outlet state, bypassing Poll.
func (m *Mock) OutletIsOn(outlet int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outlet < 1 || outlet > mockOutletCount {
		return false
	}
	return m.outletOn[outlet]
}

func (m *Mock) recordEventLocked(desc string) {
	m.events = append(m.events, EventLogEntry{
		Timestamp:   time.Now().Format("01/02/2006 15:04:05"),
		Type:        classifyConsoleEvent(desc),
		Description: desc,
	})
	if len(m.events) > 200 {
		m.events = m.events[len(m.events)-200:]
	}
}

// ─── Management ───

func (m *Mock) GetDeviceThresholds(ctx context.Context) (Thresholds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds, nil
}

func (m *Mock) SetDeviceThreshold(ctx context.Context, level ThresholdLevel, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := value
	switch level {
	case ThresholdOverload:
		m.thresholds.Overload = &v
	case ThresholdNearOverload:
		m.thresholds.NearOverload = &v
	case ThresholdLowLoad:
		m.thresholds.LowLoad = &v
	default:
		return errorf(KindRefused, "mock set", "unknown threshold level %q", level)
	}
	return nil
}

func (m *Mock) GetBankThresholds(ctx context.Context) (map[int]Thresholds, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]Thresholds, mockBankCount)
	for b := 1; b <= mockBankCount; b++ {
		if t, ok := m.bankThresholds[b]; ok {
			out[b] = t
		} else {
			out[b] = m.thresholds
		}
	}
	return out, nil
}

func (m *Mock) SetBankThreshold(ctx context.Context, bank int, level ThresholdLevel, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bank < 1 || bank > mockBankCount {
		return errorf(KindRefused, "mock set", "bank %d out of range", bank)
	}
	t := m.bankThresholds[bank]
	v := value
	switch level {
	case ThresholdOverload:
		t.Overload = &v
	case ThresholdNearOverload:
		t.NearOverload = &v
	case ThresholdLowLoad:
		t.LowLoad = &v
	default:
		return errorf(KindRefused, "mock set", "unknown threshold level %q", level)
	}
	m.bankThresholds[bank] = t
	return nil
}

func (m *Mock) GetNetworkConfig(ctx context.Context) (NetworkConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.network, nil
}

func (m *Mock) SetNetworkConfig(ctx context.Context, cfg NetworkConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.IP != "" {
		m.network.IP = cfg.IP
	}
	if cfg.Subnet != "" {
		m.network.Subnet = cfg.Subnet
	}
	if cfg.Gateway != "" {
		m.network.Gateway = cfg.Gateway
	}
	m.network.DHCPEnabled = cfg.DHCPEnabled
	return nil
}

func (m *Mock) GetATSConfig(ctx context.Context) (pdu.ATSConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atsConfig, nil
}

func (m *Mock) SetVoltageSensitivity(ctx context.Context, sensitivity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.atsConfig.VoltageSensitivity = sensitivity
	return nil
}

func (m *Mock) SetTransferVoltage(ctx context.Context, upper, lower *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if upper != nil {
		v := *upper
		m.atsConfig.VoltageUpperLimit = &v
	}
	if lower != nil {
		v := *lower
		m.atsConfig.VoltageLowerLimit = &v
	}
	return nil
}

func (m *Mock) SetColdstart(ctx context.Context, delaySeconds *int, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delaySeconds != nil {
		v := *delaySeconds
		m.coldstart.DelaySeconds = &v
	}
	if state != "" {
		m.coldstart.State = state
	}
	return nil
}

func (m *Mock) GetOutletConfig(ctx context.Context) (map[int]OutletConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]OutletConfig, len(m.outletCfg))
	for k, v := range m.outletCfg {
		out[k] = v
	}
	return out, nil
}

func (m *Mock) SetOutletConfig(ctx context.Context, outlet int, cfg OutletConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outlet < 1 || outlet > mockOutletCount {
		return newError(KindRefused, "mock set", pdu.ErrInvalidOutlet)
	}
	m.outletCfg[outlet] = cfg
	if cfg.Name != "" {
		m.outletNames[outlet] = cfg.Name
	}
	return nil
}

func (m *Mock) GetEventLog(ctx context.Context) ([]EventLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EventLogEntry, len(m.events))
	copy(out, m.events)
	return out, nil
}

func (m *Mock) GetNotifications(ctx context.Context) (Notifications, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifications, nil
}

func (m *Mock) SetTrapReceiver(ctx context.Context, r TrapReceiver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.notifications.Traps {
		if existing.Index == r.Index {
			m.notifications.Traps[i] = r
			return nil
		}
	}
	m.notifications.Traps = append(m.notifications.Traps, r)
	return nil
}

func (m *Mock) SetEmailRecipient(ctx context.Context, r EmailRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.notifications.Emails {
		if existing.Index == r.Index {
			m.notifications.Emails[i] = r
			return nil
		}
	}
	m.notifications.Emails = append(m.notifications.Emails, r)
	return nil
}

func (m *Mock) SetSyslogServer(ctx context.Context, s SyslogServer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.notifications.Syslog {
		if existing.Index == s.Index {
			m.notifications.Syslog[i] = s
			return nil
		}
	}
	m.notifications.Syslog = append(m.notifications.Syslog, s)
	return nil
}

func (m *Mock) GetEnergyWise(ctx context.Context) (EnergyWiseConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.energyWise, nil
}

func (m *Mock) SetEnergyWise(ctx context.Context, cfg EnergyWiseConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energyWise = cfg
	return nil
}

func (m *Mock) GetUsers(ctx context.Context) (map[string]UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]UserAccount, len(m.users))
	for k, v := range m.users {
		out[k] = v
	}
	return out, nil
}

func (m *Mock) CheckDefaultCredentials(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.password == "cyber", nil
}

func (m *Mock) ChangePassword(ctx context.Context, account, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if newPassword == "" {
		return errorf(KindRefused, "mock password", "empty password")
	}
	m.password = newPassword
	return nil
}
