package pdu

import "testing"

func TestOutletOIDs(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"name", OIDOutletName(3), "1.3.6.1.4.1.3808.1.1.3.3.3.1.1.2.3"},
		{"command", OIDOutletCommand(3), "1.3.6.1.4.1.3808.1.1.3.3.3.1.1.4.3"},
		{"state", OIDOutletState(10), "1.3.6.1.4.1.3808.1.1.3.3.5.1.1.4.10"},
		{"current", OIDOutletCurrent(1), "1.3.6.1.4.1.3808.1.1.3.3.5.1.1.5.1"},
		{"power", OIDOutletPower(1), "1.3.6.1.4.1.3808.1.1.3.3.5.1.1.6.1"},
		{"energy", OIDOutletEnergy(1), "1.3.6.1.4.1.3808.1.1.3.3.5.1.1.7.1"},
		{"bank current", OIDBankCurrent(2), "1.3.6.1.4.1.3808.1.1.3.2.3.1.1.2.2"},
		{"bank load state", OIDBankLoadState(2), "1.3.6.1.4.1.3808.1.1.3.2.3.1.1.3.2"},
		{"bank voltage", OIDBankVoltage(1), "1.3.6.1.4.1.3808.1.1.3.2.3.1.1.6.1"},
		{"bank pf", OIDBankPowerFactor(1), "1.3.6.1.4.1.3808.1.1.3.2.3.1.1.9.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestScalarOIDs(t *testing.T) {
	if OIDDeviceName != "1.3.6.1.4.1.3808.1.1.3.1.1.0" {
		t.Errorf("OIDDeviceName = %s", OIDDeviceName)
	}
	if OIDInputVoltage != "1.3.6.1.4.1.3808.1.1.3.5.7.0" {
		t.Errorf("OIDInputVoltage = %s", OIDInputVoltage)
	}
	if OIDATSCurrentSource != "1.3.6.1.4.1.3808.1.1.3.4.1.2.0" {
		t.Errorf("OIDATSCurrentSource = %s", OIDATSCurrentSource)
	}
	if OIDSourceAVoltage != "1.3.6.1.4.1.3808.1.1.6.9.4.1.5.1" {
		t.Errorf("OIDSourceAVoltage = %s", OIDSourceAVoltage)
	}
	if OIDSysUptime != "1.3.6.1.2.1.1.3.0" {
		t.Errorf("OIDSysUptime = %s", OIDSysUptime)
	}
}

func TestPollOIDs(t *testing.T) {
	scalars := 14

	oids := PollOIDs(10, 2, false)
	want := scalars + 10*5 + 2*7
	if len(oids) != want {
		t.Errorf("len(PollOIDs(10, 2, false)) = %d, want %d", len(oids), want)
	}

	withEnv := PollOIDs(10, 2, true)
	if len(withEnv) != want+3 {
		t.Errorf("len(PollOIDs(10, 2, true)) = %d, want %d", len(withEnv), want+3)
	}

	seen := make(map[string]bool, len(withEnv))
	for _, oid := range withEnv {
		if seen[oid] {
			t.Errorf("duplicate OID in poll plan: %s", oid)
		}
		seen[oid] = true
	}
}

func TestStartupOIDs(t *testing.T) {
	oids := StartupOIDs(8)
	if len(oids) != 16 {
		t.Errorf("len(StartupOIDs(8)) = %d, want 16", len(oids))
	}
	if oids[0] != OIDOutletBankAssignment(1) || oids[1] != OIDOutletMaxLoad(1) {
		t.Errorf("unexpected leading OIDs: %v", oids[:2])
	}
}

func TestIdentityOIDs(t *testing.T) {
	oids := IdentityOIDs()
	if len(oids) != 11 {
		t.Errorf("len(IdentityOIDs()) = %d, want 11", len(oids))
	}
}
