package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
)

var (
	// ErrDeviceExists is returned when adding a device whose id is taken.
	ErrDeviceExists = errors.New("bridge: device already exists")

	// ErrDeviceNotFound is returned for operations on unknown device ids.
	ErrDeviceNotFound = errors.New("bridge: device not found")

	// ErrInvalidDevice wraps all device definition validation failures.
	ErrInvalidDevice = errors.New("bridge: invalid device")
)

// Device ids become topic segments, filenames and URL path elements, so
// they are restricted to a lowercase slug.
var deviceIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Device is one registry entry. The SNMP fields apply to transport "snmp",
// the serial fields to transport "serial"; an SNMP device with a serial
// port configured gets the console as its failover transport.
type Device struct {
	ID        string `json:"id"`
	Transport string `json:"transport"` // snmp, serial, mock

	Host           string `json:"host,omitempty"`
	SNMPPort       int    `json:"snmp_port,omitempty"`
	Community      string `json:"community,omitempty"`
	WriteCommunity string `json:"write_community,omitempty"`

	SerialPort     string `json:"serial_port,omitempty"`
	SerialBaud     int    `json:"serial_baud,omitempty"`
	SerialUsername string `json:"serial_username,omitempty"`
	SerialPassword string `json:"serial_password,omitempty"`

	// OutletCount and BankCount seed the poll plan before discovery.
	OutletCount int `json:"outlet_count,omitempty"`
	BankCount   int `json:"bank_count,omitempty"`
}

// Validate checks a definition before it enters the registry.
func (d Device) Validate() error {
	if !deviceIDRe.MatchString(d.ID) {
		return fmt.Errorf("%w: id %q must be a lowercase slug", ErrInvalidDevice, d.ID)
	}
	switch d.Transport {
	case "snmp":
		if d.Host == "" {
			return fmt.Errorf("%w: snmp device %q needs a host", ErrInvalidDevice, d.ID)
		}
	case "serial":
		if d.SerialPort == "" {
			return fmt.Errorf("%w: serial device %q needs a port", ErrInvalidDevice, d.ID)
		}
	case "mock":
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidDevice, d.Transport)
	}
	return nil
}

const registryFile = "pdus.json"

// loadRegistry reads the device file. A missing file yields nil, nil so
// the caller can fall back to the config-seeded device.
func loadRegistry(dataDir string) ([]Device, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, registryFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bridge: reading device registry: %w", err)
	}

	var devices []Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("bridge: parsing device registry: %w", err)
	}
	for _, d := range devices {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// saveRegistry atomically replaces the device file, sorted by id so the
// document diffs cleanly.
func saveRegistry(dataDir string, devices []Device) error {
	sorted := make([]Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("bridge: encoding device registry: %w", err)
	}

	tmp, err := os.CreateTemp(dataDir, "pdus_*.tmp")
	if err != nil {
		return fmt.Errorf("bridge: creating temp registry: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("bridge: writing registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("bridge: syncing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bridge: closing registry: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dataDir, registryFile)); err != nil {
		return fmt.Errorf("bridge: replacing registry: %w", err)
	}
	return nil
}

// deviceFromConfig converts the env-seeded fallback definition. Returns
// false when nothing was configured, in which case the bridge starts with
// a single simulated device.
func deviceFromConfig(d config.DeviceDefaults) (Device, bool) {
	if d.ID == "" && d.Host == "" && d.Serial.Port == "" {
		return Device{}, false
	}
	dev := Device{
		ID:             d.ID,
		Transport:      d.Transport,
		Host:           d.Host,
		SNMPPort:       d.SNMPPort,
		Community:      d.Community,
		SerialPort:     d.Serial.Port,
		SerialBaud:     d.Serial.Baud,
		SerialUsername: d.Serial.Username,
		SerialPassword: d.Serial.Password,
	}
	if dev.ID == "" {
		dev.ID = "pdu-01"
	}
	if dev.Transport == "" {
		if dev.Host != "" {
			dev.Transport = "snmp"
		} else {
			dev.Transport = "serial"
		}
	}
	return dev, true
}
