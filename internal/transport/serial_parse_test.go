package transport

import (
	"testing"
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

const sampleSysShow = `sys show
Name             : PDU44001
Location         : Server Room
Model Name       : PDU44001
Firmware Version : 1.3.4
MAC Address      : 00:0C:15:40:41:42
Serial Number    : NLKQY7000136
Hardware Version : 3
CyberPower > `

const sampleDevstaShow = `devsta show
Active Source          : A
Source Voltage (A/B)   : 119.7 /121.2 V
Source Frequency (A/B) : 60.0 /59.9 Hz
Source Status (A/B)    : Normal /Normal
Total Load             : 0.3 A
Total Power            : 36 W
Total Energy           : 123.4 kWh
Bank 1 Current         : 0.2 A
Bank 2 Current         : 0.1 A
CyberPower > `

const sampleOltstaShow = `oltsta show
Index  Name        Status
1      WebServer   On
2      Switch      On
3      Outlet3     Off
4      NAS Box     On
CyberPower > `

const sampleSrccfgShow = `srccfg show
Preferred Source    : A
Voltage Sensitivity : Normal
Transfer Voltage    : 88 V
Voltage Upper Limit : 148 V
Voltage Lower Limit : 88 V
CyberPower > `

const sampleDevcfgShow = `devcfg show
Overload Threshold      : 16.0 A
Near Overload Threshold : 12.0 A
Low Load Threshold      : 0.5 A
Coldstart Delay         : 3 sec
Coldstart State         : prevstate
CyberPower > `

func TestParseSysShow(t *testing.T) {
	id := parseSysShow(sampleSysShow)

	if id.DeviceName != "PDU44001" {
		t.Errorf("DeviceName = %q", id.DeviceName)
	}
	if id.Model != "PDU44001" {
		t.Errorf("Model = %q", id.Model)
	}
	if id.SerialNumber != "NLKQY7000136" {
		t.Errorf("SerialNumber = %q", id.SerialNumber)
	}
	if id.FirmwareRev != "1.3.4" {
		t.Errorf("FirmwareRev = %q", id.FirmwareRev)
	}
	if id.SysLocation != "Server Room" {
		t.Errorf("SysLocation = %q", id.SysLocation)
	}
	if id.MACAddress != "00:0C:15:40:41:42" {
		t.Errorf("MACAddress = %q", id.MACAddress)
	}
}

func TestParseDevstaShow(t *testing.T) {
	ds := parseDevstaShow(sampleDevstaShow)

	if ds.ActiveSource != "A" {
		t.Errorf("ActiveSource = %q", ds.ActiveSource)
	}
	if ds.SourceAVoltage == nil || *ds.SourceAVoltage != 119.7 {
		t.Errorf("SourceAVoltage = %v", ds.SourceAVoltage)
	}
	if ds.SourceBVoltage == nil || *ds.SourceBVoltage != 121.2 {
		t.Errorf("SourceBVoltage = %v", ds.SourceBVoltage)
	}
	if ds.SourceAFrequency == nil || *ds.SourceAFrequency != 60.0 {
		t.Errorf("SourceAFrequency = %v", ds.SourceAFrequency)
	}
	if ds.SourceAStatus != pdu.SourceNormal || ds.SourceBStatus != pdu.SourceNormal {
		t.Errorf("statuses = %v / %v", ds.SourceAStatus, ds.SourceBStatus)
	}
	if ds.TotalLoad == nil || *ds.TotalLoad != 0.3 {
		t.Errorf("TotalLoad = %v", ds.TotalLoad)
	}
	if ds.TotalPower == nil || *ds.TotalPower != 36 {
		t.Errorf("TotalPower = %v", ds.TotalPower)
	}
	if ds.TotalEnergy == nil || *ds.TotalEnergy != 123.4 {
		t.Errorf("TotalEnergy = %v", ds.TotalEnergy)
	}
	if len(ds.BankCurrents) != 2 || ds.BankCurrents[1] != 0.2 || ds.BankCurrents[2] != 0.1 {
		t.Errorf("BankCurrents = %v", ds.BankCurrents)
	}
}

func TestParseDevstaShowSourceFault(t *testing.T) {
	text := `Active Source          : B
Source Voltage (A/B)   : 0.0 /120.1 V
Source Status (A/B)    : Undervoltage /Normal
`
	ds := parseDevstaShow(text)
	if ds.ActiveSource != "B" {
		t.Errorf("ActiveSource = %q", ds.ActiveSource)
	}
	if ds.SourceAStatus != pdu.SourceUnderVoltage {
		t.Errorf("SourceAStatus = %v", ds.SourceAStatus)
	}
	if ds.SourceBStatus != pdu.SourceNormal {
		t.Errorf("SourceBStatus = %v", ds.SourceBStatus)
	}
}

func TestParseOltstaShow(t *testing.T) {
	outlets := parseOltstaShow(sampleOltstaShow)

	if len(outlets) != 4 {
		t.Fatalf("got %d outlets, want 4", len(outlets))
	}
	if outlets[1].Name != "WebServer" || outlets[1].State != pdu.OutletOn {
		t.Errorf("outlet 1 = %+v", outlets[1])
	}
	if outlets[3].State != pdu.OutletOff {
		t.Errorf("outlet 3 state = %v", outlets[3].State)
	}
	if outlets[4].Name != "NAS Box" {
		t.Errorf("outlet 4 name = %q (multi-word names must survive)", outlets[4].Name)
	}
}

func TestParseOltstaShowKeyValueFallback(t *testing.T) {
	text := `Outlet 1 Name   : WebServer
Outlet 1 Status : On
Outlet 2 Name   : Switch
Outlet 2 Status : Off
`
	outlets := parseOltstaShow(text)
	if len(outlets) != 2 {
		t.Fatalf("got %d outlets, want 2", len(outlets))
	}
	if outlets[1].Name != "WebServer" || outlets[1].State != pdu.OutletOn {
		t.Errorf("outlet 1 = %+v", outlets[1])
	}
	if outlets[2].State != pdu.OutletOff {
		t.Errorf("outlet 2 state = %v", outlets[2].State)
	}
}

func TestParseSrccfgShow(t *testing.T) {
	sc := parseSrccfgShow(sampleSrccfgShow)

	if sc.PreferredSource != "A" {
		t.Errorf("PreferredSource = %q", sc.PreferredSource)
	}
	if sc.Config.VoltageSensitivity != "Normal" {
		t.Errorf("VoltageSensitivity = %q", sc.Config.VoltageSensitivity)
	}
	if sc.Config.TransferVoltage == nil || *sc.Config.TransferVoltage != 88 {
		t.Errorf("TransferVoltage = %v", sc.Config.TransferVoltage)
	}
	if sc.Config.VoltageUpperLimit == nil || *sc.Config.VoltageUpperLimit != 148 {
		t.Errorf("VoltageUpperLimit = %v", sc.Config.VoltageUpperLimit)
	}
}

func TestParseDevcfgShow(t *testing.T) {
	dc := parseDevcfgShow(sampleDevcfgShow)

	if dc.Thresholds.Overload == nil || *dc.Thresholds.Overload != 16.0 {
		t.Errorf("Overload = %v", dc.Thresholds.Overload)
	}
	if dc.Thresholds.NearOverload == nil || *dc.Thresholds.NearOverload != 12.0 {
		t.Errorf("NearOverload = %v", dc.Thresholds.NearOverload)
	}
	if dc.Thresholds.LowLoad == nil || *dc.Thresholds.LowLoad != 0.5 {
		t.Errorf("LowLoad = %v", dc.Thresholds.LowLoad)
	}
	if dc.ColdstartDelay == nil || *dc.ColdstartDelay != 3 {
		t.Errorf("ColdstartDelay = %v", dc.ColdstartDelay)
	}
	if dc.ColdstartState != "prevstate" {
		t.Errorf("ColdstartState = %q", dc.ColdstartState)
	}
}

func TestParseBankcfgShow(t *testing.T) {
	text := `bankcfg show
Bank  Overload  NearOver  LowLoad
1     16.0      12.0      0.5
2     16.0      10.0      0.5
CyberPower > `
	banks := parseBankcfgShow(text)
	if len(banks) != 2 {
		t.Fatalf("got %d banks, want 2", len(banks))
	}
	if banks[2].NearOverload == nil || *banks[2].NearOverload != 10.0 {
		t.Errorf("bank 2 NearOverload = %v", banks[2].NearOverload)
	}
}

func TestParseOltcfgShow(t *testing.T) {
	text := `oltcfg show
Index  Name       OnDelay  OffDelay  RebootDur
1      WebServer  0        0         5
2      NAS        3        10        30
CyberPower > `
	cfgs := parseOltcfgShow(text)
	if len(cfgs) != 2 {
		t.Fatalf("got %d configs, want 2", len(cfgs))
	}
	if cfgs[2].OnDelay != 3 || cfgs[2].OffDelay != 10 || cfgs[2].RebootDuration != 30 {
		t.Errorf("outlet 2 config = %+v", cfgs[2])
	}
}

func TestParseNetcfgShow(t *testing.T) {
	text := `netcfg show
IP Address  : 192.168.20.177
Subnet Mask : 255.255.255.0
Gateway     : 192.168.20.1
DHCP        : Enabled
MAC Address : 00:0C:15:40:41:42
CyberPower > `
	nc := parseNetcfgShow(text)
	if nc.IP != "192.168.20.177" || nc.Subnet != "255.255.255.0" || nc.Gateway != "192.168.20.1" {
		t.Errorf("netcfg = %+v", nc)
	}
	if !nc.DHCPEnabled {
		t.Error("DHCPEnabled = false, want true")
	}
}

func TestParseEventlogShow(t *testing.T) {
	text := `eventlog show
Index  Date        Time      Event
-----  ----------  --------  -----
1      08/20/2026  14:03:22  Source A power lost
2      08/20/2026  14:03:23  ATS transferred to Source B
3      08/20/2026  14:10:01  Source A power restored
4      08/21/2026  09:00:00  Outlet 3 turned off
CyberPower > `
	events := parseEventlogShow(text)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	want := []string{"power_loss", "ats_transfer", "power_restore", "outlet_change"}
	for i, w := range want {
		if events[i].Type != w {
			t.Errorf("event %d type = %q, want %q (%q)", i, events[i].Type, w, events[i].Description)
		}
	}
}

func TestStripCLIDropsANSIAndPrompts(t *testing.T) {
	text := "\x1b[2J\x1b[HName : PDU\nCyberPower > \n\nLocation : Lab\n"
	lines := stripCLI(text)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if lines[0] != "Name : PDU" {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestBuildConsoleSnapshot(t *testing.T) {
	ds := parseDevstaShow(sampleDevstaShow)
	outlets := parseOltstaShow(sampleOltstaShow)
	sc := parseSrccfgShow(sampleSrccfgShow)
	dc := parseDevcfgShow(sampleDevcfgShow)
	identity := parseSysShow(sampleSysShow)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	snap := buildConsoleSnapshot(ds, outlets, sc, dc, &identity, now)

	if snap.DeviceName != "PDU44001" {
		t.Errorf("DeviceName = %q", snap.DeviceName)
	}
	// Active source is A, so the input mirrors source A.
	if snap.InputVoltage == nil || *snap.InputVoltage != 119.7 {
		t.Errorf("InputVoltage = %v", snap.InputVoltage)
	}
	if snap.ATS == nil {
		t.Fatal("ATS missing")
	}
	if snap.ATS.CurrentSource != pdu.SourceA || snap.ATS.PreferredSource != pdu.SourceA {
		t.Errorf("ATS = %+v", snap.ATS)
	}
	if snap.ATS.RedundancyOK == nil || !*snap.ATS.RedundancyOK {
		t.Errorf("RedundancyOK = %v", snap.ATS.RedundancyOK)
	}
	if snap.ATS.PreferredLost() {
		t.Error("PreferredLost = true on preferred source")
	}

	// Banks synthesized from bank currents; bank 1 carries source A
	// voltage and computed power.
	b1 := snap.Banks[1]
	if b1.Current == nil || *b1.Current != 0.2 {
		t.Errorf("bank 1 current = %v", b1.Current)
	}
	if b1.Voltage == nil || *b1.Voltage != 119.7 {
		t.Errorf("bank 1 voltage = %v", b1.Voltage)
	}
	if b1.Power == nil || *b1.Power != 23.9 { // 0.2 * 119.7 = 23.94, rounded
		t.Errorf("bank 1 power = %v", b1.Power)
	}
	b2 := snap.Banks[2]
	if b2.Voltage == nil || *b2.Voltage != 121.2 {
		t.Errorf("bank 2 voltage = %v", b2.Voltage)
	}

	// Console totals come through directly, not from summation.
	if load, ok := snap.TotalLoad(); !ok || load != 0.3 {
		t.Errorf("TotalLoad = %v %v", load, ok)
	}
	if power, ok := snap.TotalPower(); !ok || power != 36 {
		t.Errorf("TotalPower = %v %v", power, ok)
	}
	if energy, ok := snap.TotalEnergy(); !ok || energy != 123.4 {
		t.Errorf("TotalEnergy = %v %v", energy, ok)
	}

	if snap.ATSConfig == nil || snap.ATSConfig.TransferVoltage == nil || *snap.ATSConfig.TransferVoltage != 88 {
		t.Errorf("ATSConfig = %+v", snap.ATSConfig)
	}
	if snap.Coldstart == nil || snap.Coldstart.DelaySeconds == nil || *snap.Coldstart.DelaySeconds != 3 {
		t.Errorf("Coldstart = %+v", snap.Coldstart)
	}
}

func TestBuildConsoleSnapshotActiveB(t *testing.T) {
	text := `Active Source          : B
Source Voltage (A/B)   : 119.7 /121.2 V
Source Frequency (A/B) : 60.0 /59.9 Hz
Source Status (A/B)    : Undervoltage /Normal
`
	ds := parseDevstaShow(text)
	snap := buildConsoleSnapshot(ds, nil, sourceConfig{PreferredSource: "A"}, deviceConfig{}, nil, time.Now())

	if snap.InputVoltage == nil || *snap.InputVoltage != 121.2 {
		t.Errorf("InputVoltage = %v, want source B voltage", snap.InputVoltage)
	}
	if snap.ATS == nil || !snap.ATS.PreferredLost() {
		t.Error("expected PreferredLost with preferred A active B")
	}
	if snap.ATS.RedundancyOK == nil || *snap.ATS.RedundancyOK {
		t.Errorf("RedundancyOK = %v, want false with source A undervoltage", snap.ATS.RedundancyOK)
	}
}
