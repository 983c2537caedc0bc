// Package pdu defines the device model for CyberPower PDUs: OID constants,
// typed snapshot records, and the decoders that turn raw SNMP readings into
// them.
//
// # Architecture
//
// The package sits between the transports and everything else:
//
//	┌─────────────────┐           ┌─────────────────┐
//	│   Transports    │  Readings │   Device Model  │  Snapshot
//	│  (snmp/serial)  │──────────►│   (this pkg)    │──────────► poller
//	└─────────────────┘           └─────────────────┘
//
// Transports fetch raw OID → value maps; decoders here produce an immutable
// Snapshot per poll cycle. Decoders are total functions: a missing OID leaves
// the corresponding optional field nil, never a zero placeholder.
//
// # Scaling
//
// The ePDU MIB reports voltage, current, frequency and energy in tenths and
// power factor in hundredths; active and apparent power pass through as
// integer watts / VA. A metering floor zeroes raw current <= 2 (0.2 A) and
// raw power <= 1 (1 W) so idle outlets do not report phantom noise.
//
// # OID Layout
//
// Scalar objects live under the ePDU MIB root 1.3.6.1.4.1.3808.1.1.3;
// per-source ATS data comes from the ePDU2 source status table at
// 1.3.6.1.4.1.3808.1.1.6.9.4.1; uptime and sys fields use standard MIB-II.
package pdu
