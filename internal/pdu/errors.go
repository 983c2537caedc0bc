package pdu

import "errors"

// Domain errors for the device model.
var (
	// ErrUnknownCommand is returned when an outlet command string is not
	// one of on, off, reboot, delayon, delayoff, cancel.
	ErrUnknownCommand = errors.New("pdu: unknown outlet command")

	// ErrSerialOnlyCommand is returned when a delayed command is issued
	// over a transport that cannot carry it.
	ErrSerialOnlyCommand = errors.New("pdu: command requires serial transport")

	// ErrInvalidOutlet is returned when an outlet number is outside the
	// device's 1..outlet_count range.
	ErrInvalidOutlet = errors.New("pdu: invalid outlet number")
)
