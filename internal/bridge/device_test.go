package bridge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
)

func TestDeviceValidate(t *testing.T) {
	tests := []struct {
		name string
		dev  Device
		ok   bool
	}{
		{"mock", Device{ID: "pdu-01", Transport: "mock"}, true},
		{"snmp", Device{ID: "rack2-pdu", Transport: "snmp", Host: "10.0.0.5"}, true},
		{"serial", Device{ID: "pdu_3", Transport: "serial", SerialPort: "/dev/ttyUSB0"}, true},
		{"snmp-no-host", Device{ID: "pdu-01", Transport: "snmp"}, false},
		{"serial-no-port", Device{ID: "pdu-01", Transport: "serial"}, false},
		{"bad-transport", Device{ID: "pdu-01", Transport: "telnet"}, false},
		{"uppercase-id", Device{ID: "PDU-01", Transport: "mock"}, false},
		{"empty-id", Device{Transport: "mock"}, false},
		{"slash-id", Device{ID: "pdu/01", Transport: "mock"}, false},
		{"space-id", Device{ID: "pdu 01", Transport: "mock"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.dev.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidDevice) {
					t.Errorf("error does not wrap ErrInvalidDevice: %v", err)
				}
			}
		})
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	devices := []Device{
		{ID: "zeta", Transport: "mock"},
		{ID: "alpha", Transport: "snmp", Host: "10.0.0.5", Community: "public"},
	}
	if err := saveRegistry(dir, devices); err != nil {
		t.Fatalf("saveRegistry: %v", err)
	}

	loaded, err := loadRegistry(dir)
	if err != nil {
		t.Fatalf("loadRegistry: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d devices", len(loaded))
	}
	// Persisted sorted by id.
	if loaded[0].ID != "alpha" || loaded[1].ID != "zeta" {
		t.Errorf("order = %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if loaded[0].Host != "10.0.0.5" {
		t.Errorf("host = %q", loaded[0].Host)
	}
}

func TestLoadRegistryMissing(t *testing.T) {
	devices, err := loadRegistry(t.TempDir())
	if err != nil || devices != nil {
		t.Errorf("loadRegistry(missing) = %v, %v; want nil, nil", devices, err)
	}
}

func TestLoadRegistryRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	doc := `[{"id": "PDU!", "transport": "mock"}]`
	if err := os.WriteFile(filepath.Join(dir, registryFile), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRegistry(dir); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("error = %v, want ErrInvalidDevice", err)
	}
}

func TestDeviceFromConfig(t *testing.T) {
	if _, ok := deviceFromConfig(config.DeviceDefaults{}); ok {
		t.Error("empty defaults produced a device")
	}

	dev, ok := deviceFromConfig(config.DeviceDefaults{
		Host: "10.0.0.9", Community: "public", SNMPPort: 161,
	})
	if !ok {
		t.Fatal("host-only defaults produced nothing")
	}
	if dev.ID != "pdu-01" || dev.Transport != "snmp" || dev.Host != "10.0.0.9" {
		t.Errorf("device = %+v", dev)
	}

	dev, ok = deviceFromConfig(config.DeviceDefaults{
		ID: "lab", Serial: config.SerialDefaults{Port: "/dev/ttyUSB0", Baud: 9600},
	})
	if !ok || dev.Transport != "serial" || dev.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("serial device = %+v, %v", dev, ok)
	}
}
