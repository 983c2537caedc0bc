package pdu

// Command is an outlet control action.
//
// on, off and reboot map to SNMP SET values; delayon, delayoff and cancel
// exist only on the serial console.
type Command string

const (
	CommandOn       Command = "on"
	CommandOff      Command = "off"
	CommandReboot   Command = "reboot"
	CommandDelayOn  Command = "delayon"
	CommandDelayOff Command = "delayoff"
	CommandCancel   Command = "cancel"
)

// SNMP SET values for the outlet command OID.
const (
	snmpCmdOn     = 1
	snmpCmdOff    = 2
	snmpCmdReboot = 3
)

// Raw outlet state values.
const (
	rawOutletOn  = 1
	rawOutletOff = 2
)

// ParseCommand validates a wire-format command string.
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandOn, CommandOff, CommandReboot,
		CommandDelayOn, CommandDelayOff, CommandCancel:
		return Command(s), nil
	}
	return "", ErrUnknownCommand
}

// SNMPValue returns the SET value for the outlet command OID. The second
// return is false for serial-only commands.
func (c Command) SNMPValue() (int, bool) {
	switch c {
	case CommandOn:
		return snmpCmdOn, true
	case CommandOff:
		return snmpCmdOff, true
	case CommandReboot:
		return snmpCmdReboot, true
	}
	return 0, false
}

// SerialOnly reports whether the command can only be carried by the
// serial console.
func (c Command) SerialOnly() bool {
	switch c {
	case CommandDelayOn, CommandDelayOff, CommandCancel:
		return true
	}
	return false
}

// Inverse returns the restoring action for an automation command: off
// restores to on and vice versa. Commands without a natural inverse return
// false.
func (c Command) Inverse() (Command, bool) {
	switch c {
	case CommandOn:
		return CommandOff, true
	case CommandOff:
		return CommandOn, true
	}
	return "", false
}

// SourceSNMPValue returns the SET value for the ATS preferred-source OID.
func SourceSNMPValue(src Source) (int, bool) {
	switch src {
	case SourceA:
		return 1, true
	case SourceB:
		return 2, true
	}
	return 0, false
}
