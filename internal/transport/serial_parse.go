package transport

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// Pure parsers for CyberPower console output. No I/O; everything here is
// testable against captured CLI text.
//
// Console commands and their output formats (PDU44001):
//
//	sys show       -> Name, Location, Model, Firmware, MAC, Serial
//	devsta show    -> ATS source, voltages, frequencies, load, power, energy
//	oltsta show    -> Outlet number/name/status table
//	srccfg show    -> Preferred source, voltage/frequency config
//	oltcfg show    -> Outlet config (names, delays, reboot duration)
//	devcfg show    -> Device thresholds and coldstart policy
//	bankcfg show   -> Per-bank load thresholds
//	netcfg show    -> Network configuration
//	eventlog show  -> PDU event history

var (
	ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	kvLineRe     = regexp.MustCompile(`^(.+?)\s*:\s*(.+)$`)
	pairRe       = regexp.MustCompile(`([\d.]+)\s*/\s*([\d.]+)`)
	wordPairRe   = regexp.MustCompile(`(\w+)\s*/\s*(\w+)`)
	leadFloatRe  = regexp.MustCompile(`^([\d.]+)`)
	leadIntRe    = regexp.MustCompile(`^(\d+)`)
	bankKeyRe    = regexp.MustCompile(`^Bank\s+(\d+)\s+Current$`)

	outletRowRe = regexp.MustCompile(
		`^\s*(\d+)\s+(\S+(?:\s+\S+)*?)\s+(On|Off)\s*(?:([\d.]+)\s*)?(?:([\d.]+)\s*)?$`)
	outletCfgRowRe = regexp.MustCompile(`^\s*(\d+)\s+(\S+(?:\s+\S+)*?)\s+(\d+)\s+(\d+)\s+(\d+)\s*$`)
	bankCfgRowRe   = regexp.MustCompile(`^\s*(\d+)\s+([\d.]+)\s+([\d.]+)\s+([\d.]+)\s*$`)

	eventIndexedRe = regexp.MustCompile(
		`^\s*\d+\s+(\d{1,2}/\d{1,2}/\d{2,4})\s+(\d{1,2}:\d{2}:\d{2})\s+(.+)$`)
	eventCompactRe = regexp.MustCompile(
		`^\s*(\d{1,2}/\d{1,2}/\d{2,4})\s+(\d{1,2}:\d{2}:\d{2})\s+(.+)$`)
	eventHeaderRe = regexp.MustCompile(`(?i)^\s*(Index|Date|Time|Event|-+)`)

	trapRowRe = regexp.MustCompile(
		`(?i)^\s*(\d+)\s+([\d.]+)\s+(\S+)\s+(\S+)\s+(Enabled|Disabled)\s*$`)
	emailRowRe = regexp.MustCompile(`(?i)^\s*(\d+)\s+(\S+@\S+)?\s*(Enabled|Disabled)\s*$`)
	syslogRowRe = regexp.MustCompile(
		`(?i)^\s*(\d+)\s+([\d.]+)\s+(\S+)\s+(\S+)\s+(Enabled|Disabled)\s*$`)
)

// stripCLI removes ANSI escapes, blank lines and prompt lines.
func stripCLI(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(ansiEscapeRe.ReplaceAllString(line, ""), " \t\r")
		if line == "" || strings.HasPrefix(strings.TrimSpace(line), "CyberPower >") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// parseKV parses "Key : Value" lines.
func parseKV(text string) map[string]string {
	result := make(map[string]string)
	for _, line := range stripCLI(text) {
		if m := kvLineRe.FindStringSubmatch(line); m != nil {
			result[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		}
	}
	return result
}

func leadFloat(s string) *float64 {
	m := leadFloatRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

func leadInt(s string) (int, bool) {
	m := leadIntRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseSysShow parses "sys show" into a device identity.
//
// Example:
//
//	Name             : PDU44001
//	Location         : Server Room
//	Model Name       : PDU44001
//	Firmware Version : 1.3.4
//	MAC Address      : 00:0C:15:XX:XX:XX
//	Serial Number    : NLKQY7000136
//	Hardware Version : 3
func parseSysShow(text string) pdu.Identity {
	kv := parseKV(text)

	model := kv["Model Name"]
	if model == "" {
		model = kv["Model"]
	}

	return pdu.Identity{
		DeviceName:   kv["Name"],
		SysName:      kv["Name"],
		SysLocation:  kv["Location"],
		Model:        model,
		FirmwareRev:  kv["Firmware Version"],
		HardwareRev:  kv["Hardware Version"],
		MACAddress:   kv["MAC Address"],
		SerialNumber: kv["Serial Number"],
	}
}

// devStatus is the parsed "devsta show" output.
type devStatus struct {
	ActiveSource     string // "A", "B" or ""
	SourceAVoltage   *float64
	SourceBVoltage   *float64
	SourceAFrequency *float64
	SourceBFrequency *float64
	SourceAStatus    pdu.SourceStatus
	SourceBStatus    pdu.SourceStatus
	TotalLoad        *float64
	TotalPower       *float64
	TotalEnergy      *float64
	BankCurrents     map[int]float64
}

func consoleSourceStatus(s string) pdu.SourceStatus {
	switch {
	case strings.EqualFold(s, "normal"):
		return pdu.SourceNormal
	case strings.Contains(strings.ToLower(s), "over"):
		return pdu.SourceOverVoltage
	case strings.Contains(strings.ToLower(s), "under"):
		return pdu.SourceUnderVoltage
	}
	return pdu.SourceStatusUnknown
}

// parseDevstaShow parses "devsta show".
//
// Example:
//
//	Active Source          : A
//	Source Voltage (A/B)   : 119.7 /119.7 V
//	Source Frequency (A/B) : 60.0 /60.0 Hz
//	Source Status (A/B)    : Normal /Normal
//	Total Load             : 0.3 A
//	Total Power            : 36 W
//	Total Energy           : 123.4 kWh
//	Bank 1 Current         : 0.2 A
//	Bank 2 Current         : 0.1 A
func parseDevstaShow(text string) devStatus {
	kv := parseKV(text)
	ds := devStatus{
		SourceAStatus: pdu.SourceStatusUnknown,
		SourceBStatus: pdu.SourceStatusUnknown,
		BankCurrents:  make(map[int]float64),
	}

	active := strings.ToUpper(strings.TrimSpace(kv["Active Source"]))
	if active == "A" || active == "B" {
		ds.ActiveSource = active
	}

	if m := pairRe.FindStringSubmatch(kv["Source Voltage (A/B)"]); m != nil {
		ds.SourceAVoltage = leadFloat(m[1])
		ds.SourceBVoltage = leadFloat(m[2])
	}
	if m := pairRe.FindStringSubmatch(kv["Source Frequency (A/B)"]); m != nil {
		ds.SourceAFrequency = leadFloat(m[1])
		ds.SourceBFrequency = leadFloat(m[2])
	}
	if m := wordPairRe.FindStringSubmatch(kv["Source Status (A/B)"]); m != nil {
		ds.SourceAStatus = consoleSourceStatus(m[1])
		ds.SourceBStatus = consoleSourceStatus(m[2])
	}

	ds.TotalLoad = leadFloat(kv["Total Load"])
	ds.TotalPower = leadFloat(kv["Total Power"])
	ds.TotalEnergy = leadFloat(kv["Total Energy"])

	for key, val := range kv {
		if m := bankKeyRe.FindStringSubmatch(key); m != nil {
			bank, _ := strconv.Atoi(m[1])
			if v := leadFloat(val); v != nil {
				ds.BankCurrents[bank] = *v
			}
		}
	}
	return ds
}

// parseOltstaShow parses "oltsta show" outlet rows.
//
// Table format:
//
//	Index  Name        Status  Current(A)  Power(W)
//	1      Outlet1     On      0.0         0
//
// Some firmware emits "Outlet N Name : ..." key-value pairs instead; both
// are handled.
func parseOltstaShow(text string) map[int]pdu.Outlet {
	outlets := make(map[int]pdu.Outlet)

	for _, line := range stripCLI(text) {
		m := outletRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		o := pdu.Outlet{
			Number: idx,
			Name:   strings.TrimSpace(m[2]),
			State:  pdu.OutletState(strings.ToLower(m[3])),
		}
		if m[4] != "" {
			o.Current = leadFloat(m[4])
		}
		if m[5] != "" {
			o.Power = leadFloat(m[5])
		}
		outlets[idx] = o
	}
	if len(outlets) > 0 {
		return outlets
	}

	// Key-value fallback.
	type fields struct {
		name    string
		state   pdu.OutletState
		current *float64
		power   *float64
	}
	kvOutlets := make(map[int]*fields)
	outletKeyRe := regexp.MustCompile(`^Outlet\s+(\d+)\s+(\w+)$`)

	for key, val := range parseKV(text) {
		m := outletKeyRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		f := kvOutlets[idx]
		if f == nil {
			f = &fields{state: pdu.OutletStateUnknown}
			kvOutlets[idx] = f
		}
		switch strings.ToLower(m[2]) {
		case "name":
			f.name = val
		case "status":
			f.state = pdu.OutletState(strings.ToLower(val))
		case "current":
			f.current = leadFloat(val)
		case "power":
			f.power = leadFloat(val)
		}
	}
	for idx, f := range kvOutlets {
		name := f.name
		if name == "" {
			name = "Outlet " + strconv.Itoa(idx)
		}
		outlets[idx] = pdu.Outlet{
			Number:  idx,
			Name:    name,
			State:   f.state,
			Current: f.current,
			Power:   f.power,
		}
	}
	return outlets
}

// sourceConfig is the parsed "srccfg show" output.
type sourceConfig struct {
	PreferredSource string // "A", "B" or ""
	Config          pdu.ATSConfig
}

// parseSrccfgShow parses "srccfg show".
//
// Example:
//
//	Preferred Source    : A
//	Voltage Sensitivity : Normal
//	Transfer Voltage    : 88 V
//	Voltage Upper Limit : 148 V
//	Voltage Lower Limit : 88 V
func parseSrccfgShow(text string) sourceConfig {
	kv := parseKV(text)
	sc := sourceConfig{}

	pref := strings.ToUpper(strings.TrimSpace(kv["Preferred Source"]))
	if pref == "A" || pref == "B" {
		sc.PreferredSource = pref
	}
	sc.Config.VoltageSensitivity = kv["Voltage Sensitivity"]
	sc.Config.TransferVoltage = leadFloat(kv["Transfer Voltage"])
	sc.Config.VoltageUpperLimit = leadFloat(kv["Voltage Upper Limit"])
	sc.Config.VoltageLowerLimit = leadFloat(kv["Voltage Lower Limit"])
	return sc
}

// deviceConfig is the parsed "devcfg show" output.
type deviceConfig struct {
	Thresholds     Thresholds
	ColdstartDelay *int
	ColdstartState string
}

// parseDevcfgShow parses "devcfg show" thresholds and coldstart policy.
func parseDevcfgShow(text string) deviceConfig {
	dc := deviceConfig{}
	for key, val := range parseKV(text) {
		keyLower := strings.ToLower(key)

		if strings.Contains(keyLower, "coldstart") {
			if strings.Contains(keyLower, "delay") {
				if v, ok := leadInt(val); ok {
					dc.ColdstartDelay = &v
				}
			} else if strings.Contains(keyLower, "state") {
				dc.ColdstartState = strings.ToLower(strings.TrimSpace(val))
			}
			continue
		}

		v := leadFloat(val)
		if v == nil {
			continue
		}
		switch {
		case strings.Contains(keyLower, "near") && strings.Contains(keyLower, "overload"):
			dc.Thresholds.NearOverload = v
		case strings.Contains(keyLower, "overload"):
			dc.Thresholds.Overload = v
		case strings.Contains(keyLower, "low") && strings.Contains(keyLower, "load"):
			dc.Thresholds.LowLoad = v
		}
	}
	return dc
}

// parseBankcfgShow parses "bankcfg show" per-bank thresholds.
func parseBankcfgShow(text string) map[int]Thresholds {
	result := make(map[int]Thresholds)
	for _, line := range stripCLI(text) {
		m := bankCfgRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		bank, _ := strconv.Atoi(m[1])
		result[bank] = Thresholds{
			Overload:     leadFloat(m[2]),
			NearOverload: leadFloat(m[3]),
			LowLoad:      leadFloat(m[4]),
		}
	}
	return result
}

// parseOltcfgShow parses "oltcfg show" outlet configuration rows.
func parseOltcfgShow(text string) map[int]OutletConfig {
	result := make(map[int]OutletConfig)
	for _, line := range stripCLI(text) {
		m := outletCfgRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		onDelay, _ := strconv.Atoi(m[3])
		offDelay, _ := strconv.Atoi(m[4])
		rebootDur, _ := strconv.Atoi(m[5])
		result[idx] = OutletConfig{
			Name:           strings.TrimSpace(m[2]),
			OnDelay:        onDelay,
			OffDelay:       offDelay,
			RebootDuration: rebootDur,
		}
	}
	return result
}

// parseNetcfgShow parses "netcfg show".
func parseNetcfgShow(text string) NetworkConfig {
	kv := parseKV(text)
	nc := NetworkConfig{
		IP:         firstOf(kv, "IP Address", "IP"),
		Subnet:     firstOf(kv, "Subnet Mask", "Subnet"),
		Gateway:    firstOf(kv, "Gateway", "Default Gateway"),
		MACAddress: firstOf(kv, "MAC Address", "MAC"),
	}
	switch strings.ToLower(kv["DHCP"]) {
	case "enabled", "on", "yes", "true":
		nc.DHCPEnabled = true
	}
	return nc
}

func firstOf(kv map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := kv[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// parseEventlogShow parses "eventlog show" into event records.
func parseEventlogShow(text string) []EventLogEntry {
	var events []EventLogEntry
	for _, line := range stripCLI(text) {
		if eventHeaderRe.MatchString(line) {
			continue
		}
		var date, clock, desc string
		if m := eventIndexedRe.FindStringSubmatch(line); m != nil {
			date, clock, desc = m[1], m[2], m[3]
		} else if m := eventCompactRe.FindStringSubmatch(line); m != nil {
			date, clock, desc = m[1], m[2], m[3]
		} else {
			continue
		}
		desc = strings.TrimSpace(desc)
		events = append(events, EventLogEntry{
			Timestamp:   date + " " + clock,
			Type:        classifyConsoleEvent(desc),
			Description: desc,
		})
	}
	return events
}

func classifyConsoleEvent(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "power restored"), strings.Contains(d, "power normal"):
		return "power_restore"
	case strings.Contains(d, "power lost"), strings.Contains(d, "power fail"):
		return "power_loss"
	case strings.Contains(d, "transfer"):
		return "ats_transfer"
	case strings.Contains(d, "started"), strings.Contains(d, "boot"):
		return "system_start"
	case strings.Contains(d, "overload"):
		return "overload"
	case strings.Contains(d, "outlet"):
		return "outlet_change"
	case strings.Contains(d, "login"), strings.Contains(d, "auth"):
		return "auth"
	case strings.Contains(d, "config"), strings.Contains(d, "setting"):
		return "config_change"
	}
	return "info"
}

// parseTrapcfgShow parses "trapcfg show" trap receiver slots.
func parseTrapcfgShow(text string) []TrapReceiver {
	var result []TrapReceiver
	for _, line := range stripCLI(text) {
		m := trapRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		result = append(result, TrapReceiver{
			Index:     idx,
			IP:        m[2],
			Community: m[3],
			Severity:  strings.ToLower(m[4]),
			Enabled:   strings.EqualFold(m[5], "enabled"),
		})
	}
	return result
}

// parseSmtpcfgShow parses "smtpcfg show".
func parseSmtpcfgShow(text string) SMTPConfig {
	kv := parseKV(text)
	cfg := SMTPConfig{
		Server:   firstOf(kv, "SMTP Server", "Server"),
		Port:     25,
		From:     firstOf(kv, "From Address", "From"),
		AuthUser: firstOf(kv, "Auth Username", "Username"),
	}
	if v, ok := leadInt(firstOf(kv, "SMTP Port", "Port")); ok {
		cfg.Port = v
	}
	return cfg
}

// parseEmailcfgShow parses "emailcfg show" recipient slots.
func parseEmailcfgShow(text string) []EmailRecipient {
	var result []EmailRecipient
	for _, line := range stripCLI(text) {
		m := emailRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		result = append(result, EmailRecipient{
			Index:   idx,
			To:      m[2],
			Enabled: strings.EqualFold(m[3], "enabled"),
		})
	}
	return result
}

// parseSyslogcfgShow parses "syslog show" server slots.
func parseSyslogcfgShow(text string) []SyslogServer {
	var result []SyslogServer
	for _, line := range stripCLI(text) {
		m := syslogRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		result = append(result, SyslogServer{
			Index:    idx,
			IP:       m[2],
			Facility: strings.ToLower(m[3]),
			Severity: strings.ToLower(m[4]),
			Enabled:  strings.EqualFold(m[5], "enabled"),
		})
	}
	return result
}

// parseUsercfgShow parses "usercfg show" account info.
func parseUsercfgShow(text string) map[string]UserAccount {
	result := make(map[string]UserAccount)
	for key, val := range parseKV(text) {
		keyLower := strings.ToLower(key)
		var account string
		switch {
		case strings.Contains(keyLower, "admin"):
			account = "admin"
		case strings.Contains(keyLower, "viewer"):
			account = "viewer"
		default:
			continue
		}
		entry := result[account]
		if strings.Contains(keyLower, "name") {
			entry.Username = val
		} else if strings.Contains(keyLower, "access") {
			entry.Access = val
		}
		result[account] = entry
	}
	return result
}

// parseEnergywiseShow parses "energywise show".
func parseEnergywiseShow(text string) EnergyWiseConfig {
	kv := parseKV(text)
	cfg := EnergyWiseConfig{
		Domain: kv["Domain"],
		Port:   43440,
		Secret: firstOf(kv, "Shared Secret", "Secret"),
	}
	if v, ok := leadInt(kv["Port"]); ok {
		cfg.Port = v
	}
	switch strings.ToLower(kv["Status"]) {
	case "enabled", "on":
		cfg.Enabled = true
	}
	return cfg
}

// buildConsoleSnapshot combines parsed console results into the same
// snapshot shape the SNMP path produces, so everything downstream works
// unchanged.
func buildConsoleSnapshot(ds devStatus, outlets map[int]pdu.Outlet, sc sourceConfig,
	dc deviceConfig, identity *pdu.Identity, now time.Time) *pdu.Snapshot {

	snap := &pdu.Snapshot{
		Timestamp: now,
		Outlets:   outlets,
		Banks:     make(map[int]pdu.Bank),
		Identity:  identity,
	}
	if identity != nil {
		snap.DeviceName = identity.DeviceName
	}

	snap.SourceA = &pdu.SourceReading{
		Voltage:       ds.SourceAVoltage,
		Frequency:     ds.SourceAFrequency,
		VoltageStatus: ds.SourceAStatus,
	}
	snap.SourceB = &pdu.SourceReading{
		Voltage:       ds.SourceBVoltage,
		Frequency:     ds.SourceBFrequency,
		VoltageStatus: ds.SourceBStatus,
	}

	// The bus-side input mirrors whichever source is active.
	switch ds.ActiveSource {
	case "B":
		snap.InputVoltage = ds.SourceBVoltage
		snap.InputFrequency = ds.SourceBFrequency
	default:
		snap.InputVoltage = ds.SourceAVoltage
		snap.InputFrequency = ds.SourceAFrequency
	}

	ats := &pdu.ATS{AutoTransfer: true}
	if ds.ActiveSource != "" {
		ats.CurrentSource = pdu.Source(ds.ActiveSource)
	}
	if sc.PreferredSource != "" {
		ats.PreferredSource = pdu.Source(sc.PreferredSource)
	}
	if ds.SourceAStatus != pdu.SourceStatusUnknown && ds.SourceBStatus != pdu.SourceStatusUnknown {
		ok := ds.SourceAStatus == pdu.SourceNormal && ds.SourceBStatus == pdu.SourceNormal
		ats.RedundancyOK = &ok
	}
	if ats.CurrentSource != "" || ats.PreferredSource != "" {
		snap.ATS = ats
	}

	cfg := sc.Config
	if cfg != (pdu.ATSConfig{}) {
		snap.ATSConfig = &cfg
	}
	if dc.ColdstartDelay != nil || dc.ColdstartState != "" {
		snap.Coldstart = &pdu.Coldstart{
			DelaySeconds: dc.ColdstartDelay,
			State:        dc.ColdstartState,
		}
	}

	// Banks from the reported per-bank currents; bank 1 rides source A,
	// bank 2 source B on the ATS models this path targets.
	for bank, current := range ds.BankCurrents {
		b := pdu.Bank{Number: bank, LoadState: pdu.LoadNormal}
		cur := current
		b.Current = &cur
		switch bank {
		case 1:
			b.Voltage = ds.SourceAVoltage
		case 2:
			b.Voltage = ds.SourceBVoltage
		}
		if b.Voltage != nil {
			p := roundTenth(current * *b.Voltage)
			b.Power = &p
		}
		snap.Banks[bank] = b
	}
	if len(snap.Banks) == 0 {
		if ds.SourceAVoltage != nil {
			snap.Banks[1] = pdu.Bank{Number: 1, Voltage: ds.SourceAVoltage, LoadState: pdu.LoadNormal}
		}
		if ds.SourceBVoltage != nil {
			snap.Banks[2] = pdu.Bank{Number: 2, Voltage: ds.SourceBVoltage, LoadState: pdu.LoadNormal}
		}
	}

	if ds.TotalLoad != nil || ds.TotalPower != nil || ds.TotalEnergy != nil {
		snap.Totals = &pdu.Totals{
			Load:   ds.TotalLoad,
			Power:  ds.TotalPower,
			Energy: ds.TotalEnergy,
		}
	}
	return snap
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
