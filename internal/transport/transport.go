package transport

import (
	"context"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// Transport is the capability set every device transport provides. One
// instance drives exactly one PDU and is owned by that device's poller.
type Transport interface {
	// Name identifies the transport variant: "snmp", "serial" or "mock".
	Name() string

	// Connect establishes the session (UDP socket, serial login). Safe to
	// call again after a failure.
	Connect(ctx context.Context) error

	// Identify reads the device identity. Called once at startup and again
	// after a detected reboot.
	Identify(ctx context.Context) (pdu.Identity, error)

	// Poll reads all metrics for one cycle and decodes them.
	Poll(ctx context.Context) (*pdu.Snapshot, error)

	// StartupConfig reads per-outlet bank assignments and load limits.
	// Transports without access return empty maps and no error.
	StartupConfig(ctx context.Context, outletCount int) (map[int]int, map[int]float64, error)

	// CommandOutlet executes an outlet action.
	CommandOutlet(ctx context.Context, outlet int, cmd pdu.Command) error

	// SetPreferredSource selects the preferred ATS input.
	SetPreferredSource(ctx context.Context, src pdu.Source) error

	// SetDeviceField writes a device identity field.
	SetDeviceField(ctx context.Context, field DeviceField, value string) error

	// Close releases the session. The transport is unusable afterwards
	// until Connect is called again.
	Close() error
}

// DeviceField names a writable identity field.
type DeviceField string

const (
	FieldDeviceName  DeviceField = "device_name"
	FieldSysName     DeviceField = "sys_name"
	FieldSysLocation DeviceField = "sys_location"
	FieldSysContact  DeviceField = "sys_contact"
)

// Thresholds are load alarm levels in percent of rated capacity.
type Thresholds struct {
	Overload     *float64 `json:"overload,omitempty"`
	NearOverload *float64 `json:"near_overload,omitempty"`
	LowLoad      *float64 `json:"low_load,omitempty"`
}

// ThresholdLevel names one of the three load alarm levels.
type ThresholdLevel string

const (
	ThresholdOverload     ThresholdLevel = "overload"
	ThresholdNearOverload ThresholdLevel = "nearover"
	ThresholdLowLoad      ThresholdLevel = "lowload"
)

// NetworkConfig is the PDU's own network configuration.
type NetworkConfig struct {
	IP          string `json:"ip"`
	Subnet      string `json:"subnet"`
	Gateway     string `json:"gateway"`
	DHCPEnabled bool   `json:"dhcp_enabled"`
	MACAddress  string `json:"mac_address,omitempty"`
}

// OutletConfig is the console-side configuration of one outlet.
type OutletConfig struct {
	Name           string `json:"name"`
	OnDelay        int    `json:"on_delay"`
	OffDelay       int    `json:"off_delay"`
	RebootDuration int    `json:"reboot_duration"`
}

// EventLogEntry is one row of the PDU's internal event log.
type EventLogEntry struct {
	Timestamp   string `json:"timestamp"`
	Type        string `json:"event_type"`
	Description string `json:"description"`
}

// TrapReceiver is one SNMP trap destination slot.
type TrapReceiver struct {
	Index     int    `json:"index"`
	IP        string `json:"ip"`
	Community string `json:"community"`
	Severity  string `json:"severity"`
	Enabled   bool   `json:"enabled"`
}

// EmailRecipient is one notification email slot.
type EmailRecipient struct {
	Index   int    `json:"index"`
	To      string `json:"to"`
	Enabled bool   `json:"enabled"`
}

// SyslogServer is one remote syslog destination slot.
type SyslogServer struct {
	Index    int    `json:"index"`
	IP       string `json:"ip"`
	Facility string `json:"facility"`
	Severity string `json:"severity"`
	Enabled  bool   `json:"enabled"`
}

// SMTPConfig is the PDU's outbound mail configuration.
type SMTPConfig struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	From     string `json:"from_addr"`
	AuthUser string `json:"auth_user"`
}

// Notifications bundles the PDU's alerting configuration.
type Notifications struct {
	Traps  []TrapReceiver   `json:"traps"`
	SMTP   SMTPConfig       `json:"smtp"`
	Emails []EmailRecipient `json:"emails"`
	Syslog []SyslogServer   `json:"syslog"`
}

// EnergyWiseConfig is the Cisco EnergyWise agent configuration.
type EnergyWiseConfig struct {
	Domain  string `json:"domain"`
	Port    int    `json:"port"`
	Secret  string `json:"secret,omitempty"`
	Enabled bool   `json:"enabled"`
}

// UserAccount describes one console account.
type UserAccount struct {
	Username string `json:"username"`
	Access   string `json:"access"`
}

// Management is the console-only extension surface. The serial and mock
// transports implement it; SNMP does not, because the ePDU MIB does not
// expose these objects. Callers discover support with a type assertion:
//
//	if mgmt, ok := tr.(transport.Management); ok { ... }
type Management interface {
	GetDeviceThresholds(ctx context.Context) (Thresholds, error)
	SetDeviceThreshold(ctx context.Context, level ThresholdLevel, value float64) error
	GetBankThresholds(ctx context.Context) (map[int]Thresholds, error)
	SetBankThreshold(ctx context.Context, bank int, level ThresholdLevel, value float64) error

	GetNetworkConfig(ctx context.Context) (NetworkConfig, error)
	SetNetworkConfig(ctx context.Context, cfg NetworkConfig) error

	GetATSConfig(ctx context.Context) (pdu.ATSConfig, error)
	SetVoltageSensitivity(ctx context.Context, sensitivity string) error
	SetTransferVoltage(ctx context.Context, upper, lower *float64) error
	SetColdstart(ctx context.Context, delaySeconds *int, state string) error

	GetOutletConfig(ctx context.Context) (map[int]OutletConfig, error)
	SetOutletConfig(ctx context.Context, outlet int, cfg OutletConfig) error

	GetEventLog(ctx context.Context) ([]EventLogEntry, error)
	GetNotifications(ctx context.Context) (Notifications, error)
	SetTrapReceiver(ctx context.Context, r TrapReceiver) error
	SetEmailRecipient(ctx context.Context, r EmailRecipient) error
	SetSyslogServer(ctx context.Context, s SyslogServer) error

	GetEnergyWise(ctx context.Context) (EnergyWiseConfig, error)
	SetEnergyWise(ctx context.Context, cfg EnergyWiseConfig) error

	GetUsers(ctx context.Context) (map[string]UserAccount, error)
	CheckDefaultCredentials(ctx context.Context) (bool, error)
	ChangePassword(ctx context.Context, account, newPassword string) error
}
