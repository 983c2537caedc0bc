package pdu

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	valid := []string{"on", "off", "reboot", "delayon", "delayoff", "cancel"}
	for _, s := range valid {
		cmd, err := ParseCommand(s)
		if err != nil {
			t.Errorf("ParseCommand(%q) error = %v", s, err)
		}
		if string(cmd) != s {
			t.Errorf("ParseCommand(%q) = %q", s, cmd)
		}
	}

	for _, s := range []string{"", "ON", "toggle", "restart"} {
		if _, err := ParseCommand(s); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("ParseCommand(%q) error = %v, want ErrUnknownCommand", s, err)
		}
	}
}

func TestCommandSNMPValue(t *testing.T) {
	tests := []struct {
		cmd    Command
		want   int
		wantOK bool
	}{
		{CommandOn, 1, true},
		{CommandOff, 2, true},
		{CommandReboot, 3, true},
		{CommandDelayOn, 0, false},
		{CommandDelayOff, 0, false},
		{CommandCancel, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.cmd.SNMPValue()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.SNMPValue() = (%d, %v), want (%d, %v)", tt.cmd, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCommandSerialOnly(t *testing.T) {
	if CommandOn.SerialOnly() || CommandReboot.SerialOnly() {
		t.Error("on/reboot should not be serial-only")
	}
	if !CommandDelayOn.SerialOnly() || !CommandCancel.SerialOnly() {
		t.Error("delayon/cancel should be serial-only")
	}
}

func TestCommandInverse(t *testing.T) {
	if inv, ok := CommandOff.Inverse(); !ok || inv != CommandOn {
		t.Errorf("off.Inverse() = (%q, %v), want (on, true)", inv, ok)
	}
	if inv, ok := CommandOn.Inverse(); !ok || inv != CommandOff {
		t.Errorf("on.Inverse() = (%q, %v), want (off, true)", inv, ok)
	}
	if _, ok := CommandReboot.Inverse(); ok {
		t.Error("reboot should have no inverse")
	}
}

func TestSourceSNMPValue(t *testing.T) {
	if v, ok := SourceSNMPValue(SourceA); !ok || v != 1 {
		t.Errorf("SourceSNMPValue(A) = (%d, %v)", v, ok)
	}
	if v, ok := SourceSNMPValue(SourceB); !ok || v != 2 {
		t.Errorf("SourceSNMPValue(B) = (%d, %v)", v, ok)
	}
	if _, ok := SourceSNMPValue(Source("C")); ok {
		t.Error("SourceSNMPValue(C) should fail")
	}
}
