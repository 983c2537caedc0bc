package pdu

import "time"

// OutletState is the reported on/off state of one outlet.
type OutletState string

const (
	OutletOn           OutletState = "on"
	OutletOff          OutletState = "off"
	OutletStateUnknown OutletState = "unknown"
)

// LoadState is the bank load classification reported by the PDU.
type LoadState string

const (
	LoadNormal       LoadState = "normal"
	LoadLow          LoadState = "low"
	LoadNearOverload LoadState = "nearOverload"
	LoadOverload     LoadState = "overload"
	LoadStateUnknown LoadState = "unknown"
)

// SourceStatus is the voltage status of one ATS input.
type SourceStatus string

const (
	SourceNormal        SourceStatus = "normal"
	SourceOverVoltage   SourceStatus = "overVoltage"
	SourceUnderVoltage  SourceStatus = "underVoltage"
	SourceStatusUnknown SourceStatus = "unknown"
)

// Source identifies one ATS input.
type Source string

const (
	SourceA Source = "A"
	SourceB Source = "B"
)

// ContactState is the position of one environmental dry contact.
type ContactState string

const (
	ContactOpen   ContactState = "open"
	ContactClosed ContactState = "closed"
)

// Identity is the discovered-once description of a device. Populated on the
// first successful cycle and re-read after a detected reboot.
type Identity struct {
	DeviceName   string   `json:"device_name"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	HardwareRev  string   `json:"hardware_rev,omitempty"`
	FirmwareRev  string   `json:"firmware_rev,omitempty"`
	MACAddress   string   `json:"mac_address,omitempty"`
	MaxInputAmps *float64 `json:"max_input_amps,omitempty"`
	OutletCount  int      `json:"outlet_count"`
	PhaseCount   int      `json:"phase_count"`
	BankCount    int      `json:"bank_count"`
	SysName      string   `json:"sys_name,omitempty"`
	SysLocation  string   `json:"sys_location,omitempty"`
}

// Outlet is the per-outlet slice of a snapshot. Metering fields are nil on
// models that do not meter by outlet.
type Outlet struct {
	Number  int         `json:"number"`
	Name    string      `json:"name,omitempty"`
	State   OutletState `json:"state"`
	Current *float64    `json:"current,omitempty"` // amps
	Power   *float64    `json:"power,omitempty"`   // watts
	Energy  *float64    `json:"energy,omitempty"`  // kWh
}

// Bank is the per-breaker-bank slice of a snapshot.
type Bank struct {
	Number        int       `json:"number"`
	Voltage       *float64  `json:"voltage,omitempty"`        // volts
	Current       *float64  `json:"current,omitempty"`        // amps
	Power         *float64  `json:"power,omitempty"`          // watts
	ApparentPower *float64  `json:"apparent_power,omitempty"` // VA
	PowerFactor   *float64  `json:"power_factor,omitempty"`   // 0-1
	LoadState     LoadState `json:"load_state"`
	Energy        *float64  `json:"energy,omitempty"` // kWh
}

// SourceReading is one ATS input's voltage, frequency and status.
type SourceReading struct {
	Voltage       *float64     `json:"voltage,omitempty"`   // volts
	Frequency     *float64     `json:"frequency,omitempty"` // Hz
	VoltageStatus SourceStatus `json:"voltage_status"`
}

// ATS is the transfer-switch slice of a snapshot. Nil on non-ATS models.
type ATS struct {
	PreferredSource Source `json:"preferred_source"`
	CurrentSource   Source `json:"current_source"`
	AutoTransfer    bool   `json:"auto_transfer"`
	RedundancyOK    *bool  `json:"redundancy_ok,omitempty"`
}

// PreferredLost reports whether the load is running from the non-preferred
// input.
func (a *ATS) PreferredLost() bool {
	return a.PreferredSource != "" && a.CurrentSource != "" &&
		a.CurrentSource != a.PreferredSource
}

// ATSConfig is transfer-switch configuration. Only the serial console
// exposes it.
type ATSConfig struct {
	VoltageSensitivity string   `json:"voltage_sensitivity,omitempty"` // normal/high/low
	TransferVoltage    *float64 `json:"transfer_voltage,omitempty"`
	VoltageUpperLimit  *float64 `json:"voltage_upper_limit,omitempty"`
	VoltageLowerLimit  *float64 `json:"voltage_lower_limit,omitempty"`
}

// Coldstart is the power-on recovery policy. Only the serial console
// exposes it.
type Coldstart struct {
	DelaySeconds *int   `json:"delay_seconds,omitempty"`
	State        string `json:"state,omitempty"` // "allon" or "prevstate"
}

// Totals are device-level aggregates. The serial console reports them
// directly; the SNMP path computes them from banks and outlets.
type Totals struct {
	Load   *float64 `json:"load,omitempty"`   // amps
	Power  *float64 `json:"power,omitempty"`  // watts
	Energy *float64 `json:"energy,omitempty"` // kWh
}

// Environment is the optional sensor probe slice of a snapshot.
type Environment struct {
	Temperature *float64             `json:"temperature,omitempty"`
	TempUnit    string               `json:"temp_unit,omitempty"` // "C" or "F"
	Humidity    *int                 `json:"humidity,omitempty"`  // percent
	Contacts    map[int]ContactState `json:"contacts,omitempty"`
}

// Snapshot is the immutable decoded result of one poll cycle. The poller
// keeps the previous snapshot only as last-known-good; nothing mutates a
// snapshot after decode.
type Snapshot struct {
	Timestamp      time.Time `json:"ts"`
	DeviceName     string    `json:"device_name,omitempty"`
	InputVoltage   *float64  `json:"input_voltage,omitempty"`   // volts
	InputFrequency *float64  `json:"input_frequency,omitempty"` // Hz

	// UptimeHundredths is MIB-II sysUpTime; a decrease between two
	// successful cycles means the device rebooted.
	UptimeHundredths *int64 `json:"uptime,omitempty"`

	Outlets map[int]Outlet `json:"outlets,omitempty"`
	Banks   map[int]Bank   `json:"banks,omitempty"`

	ATS         *ATS           `json:"ats,omitempty"`
	ATSConfig   *ATSConfig     `json:"ats_config,omitempty"`
	SourceA     *SourceReading `json:"source_a,omitempty"`
	SourceB     *SourceReading `json:"source_b,omitempty"`
	Environment *Environment   `json:"environment,omitempty"`
	Coldstart   *Coldstart     `json:"coldstart,omitempty"`

	// Identity is attached once discovered; the serial path carries it on
	// every snapshot, the SNMP path attaches the cached copy.
	Identity *Identity `json:"identity,omitempty"`

	// Totals are set when the device reports aggregates directly. The
	// Total* methods fall back to summing banks and outlets.
	Totals *Totals `json:"totals,omitempty"`
}

// TotalLoad sums the metered bank currents in amps. The second return is
// false when no bank reported current.
func (s *Snapshot) TotalLoad() (float64, bool) {
	if s.Totals != nil && s.Totals.Load != nil {
		return *s.Totals.Load, true
	}
	var total float64
	found := false
	for _, b := range s.Banks {
		if b.Current != nil {
			total += *b.Current
			found = true
		}
	}
	return total, found
}

// TotalPower sums the metered bank active power in watts.
func (s *Snapshot) TotalPower() (float64, bool) {
	if s.Totals != nil && s.Totals.Power != nil {
		return *s.Totals.Power, true
	}
	var total float64
	found := false
	for _, b := range s.Banks {
		if b.Power != nil {
			total += *b.Power
			found = true
		}
	}
	return total, found
}

// TotalEnergy sums cumulative energy in kWh, preferring per-bank counters
// and falling back to per-outlet counters when the banks are unmetered.
func (s *Snapshot) TotalEnergy() (float64, bool) {
	if s.Totals != nil && s.Totals.Energy != nil {
		return *s.Totals.Energy, true
	}
	var total float64
	found := false
	for _, b := range s.Banks {
		if b.Energy != nil {
			total += *b.Energy
			found = true
		}
	}
	if found {
		return total, true
	}
	for _, o := range s.Outlets {
		if o.Energy != nil {
			total += *o.Energy
			found = true
		}
	}
	return total, found
}

// SourceVoltage returns the voltage of the given ATS input, when known.
func (s *Snapshot) SourceVoltage(src Source) (float64, bool) {
	var reading *SourceReading
	switch src {
	case SourceA:
		reading = s.SourceA
	case SourceB:
		reading = s.SourceB
	}
	if reading == nil || reading.Voltage == nil {
		return 0, false
	}
	return *reading.Voltage, true
}
