// Package transport implements the pluggable device transports: SNMPv2c,
// RS-232 serial console, and an in-memory mock.
//
// # Architecture
//
// All three satisfy the Transport interface; the poller never knows which
// one it is driving:
//
//	poller ──► Transport ──┬─► SNMP  (gosnmp, batched GETs)
//	                       ├─► Serial (go.bug.st/serial, CLI session)
//	                       └─► Mock  (simulated PDU44001)
//
// The serial and mock transports additionally satisfy Management, the
// extension surface for console-only operations (thresholds, network
// config, user accounts, event log). SNMP deliberately does not: those
// objects are not in the ePDU MIB.
//
// # Failure Semantics
//
// Every failing operation returns *Error carrying a Kind from the fixed
// taxonomy (timeout, unreachable, authentication, parse, refused, unknown).
// Transports retry only up to their configured retry count; recovery policy
// lives in the poller's health state machine, not here.
//
// # Concurrency
//
// A transport instance is owned by exactly one poller. The serial console is
// single-threaded on the device side, so the serial session serializes every
// command through one gate; SNMP requests are serialized per instance as
// well since gosnmp connections are not safe for concurrent use.
package transport
