package mqtt

import "fmt"

// Topics provides builders for the bridge's MQTT topic hierarchy.
//
// All device topics live under {prefix}/{device_id}/...; the prefix defaults
// to "pdu" and comes from mqtt.topic_prefix in the config. Using these
// helpers keeps topic naming consistent between the pollers, the automation
// engine and the command router.
//
//	topics := mqtt.Topics{Prefix: "pdu"}
//	topics.OutletState("pdu-01", 3) // "pdu/pdu-01/outlet/3/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return "pdu"
	}
	return t.Prefix
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus is the retained availability marker ("online"/"offline").
// Also the LWT target.
//
// Example: pdu/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.prefix())
}

// DeviceBridgeStatus is the per-device availability marker
// ("online"/"offline"). Published retained when the device's poller starts
// and stops; the broker-level will covers unexpected disconnects.
//
// Example: pdu/pdu-01/bridge/status
func (t Topics) DeviceBridgeStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/bridge/status", t.prefix(), deviceID)
}

// DeviceStatus is the retained JSON summary for one device, published
// every cycle.
//
// Example: pdu/pdu-01/status
func (t Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", t.prefix(), deviceID)
}

// DeviceInfo is the retained device identity document (name, outlets,
// phases, firmware). Refreshed roughly every 30 seconds.
//
// Example: pdu/pdu-01/device
func (t Topics) DeviceInfo(deviceID string) string {
	return fmt.Sprintf("%s/%s/device", t.prefix(), deviceID)
}

// =============================================================================
// Input / Metering Topics
// =============================================================================

// InputVoltage is the retained input voltage in volts.
//
// Example: pdu/pdu-01/input/voltage
func (t Topics) InputVoltage(deviceID string) string {
	return fmt.Sprintf("%s/%s/input/voltage", t.prefix(), deviceID)
}

// InputFrequency is the retained input frequency in hertz.
func (t Topics) InputFrequency(deviceID string) string {
	return fmt.Sprintf("%s/%s/input/frequency", t.prefix(), deviceID)
}

// TotalLoad is the retained total load in amps.
func (t Topics) TotalLoad(deviceID string) string {
	return fmt.Sprintf("%s/%s/total/load", t.prefix(), deviceID)
}

// TotalPower is the retained total active power in watts.
func (t Topics) TotalPower(deviceID string) string {
	return fmt.Sprintf("%s/%s/total/power", t.prefix(), deviceID)
}

// TotalEnergy is the retained cumulative energy in kWh.
func (t Topics) TotalEnergy(deviceID string) string {
	return fmt.Sprintf("%s/%s/total/energy", t.prefix(), deviceID)
}

// =============================================================================
// Outlet Topics
// =============================================================================

// OutletState is the retained outlet state ("on"/"off").
//
// Example: pdu/pdu-01/outlet/3/state
func (t Topics) OutletState(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/state", t.prefix(), deviceID, outlet)
}

// OutletName is the retained outlet name.
func (t Topics) OutletName(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/name", t.prefix(), deviceID, outlet)
}

// OutletCurrent is the retained per-outlet current in amps.
func (t Topics) OutletCurrent(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/current", t.prefix(), deviceID, outlet)
}

// OutletPower is the retained per-outlet active power in watts.
func (t Topics) OutletPower(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/power", t.prefix(), deviceID, outlet)
}

// OutletEnergy is the retained per-outlet energy in kWh.
func (t Topics) OutletEnergy(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/energy", t.prefix(), deviceID, outlet)
}

// OutletCommand is where consumers publish on/off/reboot commands.
//
// Example: pdu/pdu-01/outlet/3/command
func (t Topics) OutletCommand(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/command", t.prefix(), deviceID, outlet)
}

// OutletCommandResponse carries the JSON result of a command. Not retained.
func (t Topics) OutletCommandResponse(deviceID string, outlet int) string {
	return fmt.Sprintf("%s/%s/outlet/%d/command/response", t.prefix(), deviceID, outlet)
}

// =============================================================================
// Bank Topics
// =============================================================================

// BankVoltage is the retained per-bank voltage in volts.
func (t Topics) BankVoltage(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/voltage", t.prefix(), deviceID, bank)
}

// BankCurrent is the retained per-bank current in amps.
func (t Topics) BankCurrent(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/current", t.prefix(), deviceID, bank)
}

// BankPower is the retained per-bank active power in watts.
func (t Topics) BankPower(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/power", t.prefix(), deviceID, bank)
}

// BankApparentPower is the retained per-bank apparent power in VA.
func (t Topics) BankApparentPower(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/apparent_power", t.prefix(), deviceID, bank)
}

// BankPowerFactor is the retained per-bank power factor (0..1).
func (t Topics) BankPowerFactor(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/power_factor", t.prefix(), deviceID, bank)
}

// BankLoadState is the retained per-bank load state
// (normal/low/nearOverload/overload).
func (t Topics) BankLoadState(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/load_state", t.prefix(), deviceID, bank)
}

// BankEnergy is the retained per-bank energy in kWh, when the model meters it.
func (t Topics) BankEnergy(deviceID string, bank int) string {
	return fmt.Sprintf("%s/%s/bank/%d/energy", t.prefix(), deviceID, bank)
}

// =============================================================================
// ATS / Source Topics
// =============================================================================

// SourceVoltage is the retained per-source voltage. Source is "a" or "b".
//
// Example: pdu/pdu-01/source/a/voltage
func (t Topics) SourceVoltage(deviceID, source string) string {
	return fmt.Sprintf("%s/%s/source/%s/voltage", t.prefix(), deviceID, source)
}

// SourceFrequency is the retained per-source frequency in hertz.
func (t Topics) SourceFrequency(deviceID, source string) string {
	return fmt.Sprintf("%s/%s/source/%s/frequency", t.prefix(), deviceID, source)
}

// SourceVoltageStatus is the retained per-source status
// (normal/overVoltage/underVoltage).
func (t Topics) SourceVoltageStatus(deviceID, source string) string {
	return fmt.Sprintf("%s/%s/source/%s/voltage_status", t.prefix(), deviceID, source)
}

// ATSCurrentSource is the retained source currently feeding the load
// ("A"/"B").
func (t Topics) ATSCurrentSource(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/current_source", t.prefix(), deviceID)
}

// ATSPreferredSource is the retained configured preferred source.
func (t Topics) ATSPreferredSource(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/preferred_source", t.prefix(), deviceID)
}

// ATSAutoTransfer is the retained auto-transfer flag ("on"/"off").
func (t Topics) ATSAutoTransfer(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/auto_transfer", t.prefix(), deviceID)
}

// ATSRedundancy is the retained redundancy state ("ok"/"lost").
func (t Topics) ATSRedundancy(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/redundancy", t.prefix(), deviceID)
}

// ATSVoltageSensitivity is the retained transfer sensitivity setting.
// Only populated when the serial console is available.
func (t Topics) ATSVoltageSensitivity(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/voltage_sensitivity", t.prefix(), deviceID)
}

// ATSTransferVoltage is the retained nominal transfer voltage.
func (t Topics) ATSTransferVoltage(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/transfer_voltage", t.prefix(), deviceID)
}

// ATSVoltageUpperLimit is the retained upper transfer limit in volts.
func (t Topics) ATSVoltageUpperLimit(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/voltage_upper_limit", t.prefix(), deviceID)
}

// ATSVoltageLowerLimit is the retained lower transfer limit in volts.
func (t Topics) ATSVoltageLowerLimit(deviceID string) string {
	return fmt.Sprintf("%s/%s/ats/voltage_lower_limit", t.prefix(), deviceID)
}

// =============================================================================
// Environment Topics
// =============================================================================

// EnvironmentTemperature is the retained probe temperature, only for
// models with a sensor attached.
func (t Topics) EnvironmentTemperature(deviceID string) string {
	return fmt.Sprintf("%s/%s/environment/temperature", t.prefix(), deviceID)
}

// EnvironmentHumidity is the retained probe humidity.
func (t Topics) EnvironmentHumidity(deviceID string) string {
	return fmt.Sprintf("%s/%s/environment/humidity", t.prefix(), deviceID)
}

// EnvironmentContact is the retained dry-contact state ("open"/"closed").
func (t Topics) EnvironmentContact(deviceID string, contact int) string {
	return fmt.Sprintf("%s/%s/environment/contact/%d", t.prefix(), deviceID, contact)
}

// ColdstartDelay is the retained cold-start delay in seconds.
func (t Topics) ColdstartDelay(deviceID string) string {
	return fmt.Sprintf("%s/%s/coldstart/delay", t.prefix(), deviceID)
}

// ColdstartState is the retained cold-start policy ("allon"/"prevstate").
func (t Topics) ColdstartState(deviceID string) string {
	return fmt.Sprintf("%s/%s/coldstart/state", t.prefix(), deviceID)
}

// =============================================================================
// Automation Topics
// =============================================================================

// AutomationStatus is the retained rule engine summary, published on change.
func (t Topics) AutomationStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/automation/status", t.prefix(), deviceID)
}

// AutomationEvent carries rule fire/restore events. QoS 1, not retained.
func (t Topics) AutomationEvent(deviceID string) string {
	return fmt.Sprintf("%s/%s/automation/event", t.prefix(), deviceID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllOutletCommands matches outlet commands for every device.
//
// Pattern: pdu/+/outlet/+/command
func (t Topics) AllOutletCommands() string {
	return fmt.Sprintf("%s/+/outlet/+/command", t.prefix())
}

// AllDeviceTopics matches the whole tree for one device.
//
// Pattern: pdu/pdu-01/#
func (t Topics) AllDeviceTopics(deviceID string) string {
	return fmt.Sprintf("%s/%s/#", t.prefix(), deviceID)
}
