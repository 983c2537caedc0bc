// Package poller runs the per-device polling loop.
//
// One Poller owns one PDU and its transport. Everything that touches the
// transport goes through the loop goroutine, so polls, outlet commands and
// console management never interleave on the wire:
//
//	             ┌──────────────────────────────────────────┐
//	  1 Hz tick ─┤                loop goroutine             │
//	             │  poll ──► snapshot ──► publish (MQTT)     │
//	             │                   ├──► record (history)   │
//	             │                   └──► evaluate (rules)   │
//	  requests ──┤  outlet commands / console ops (FIFO)     │
//	             └──────────────────────────────────────────┘
//
// The loop tracks transport health across cycles: consecutive failures
// degrade the device, a long outage swaps to the secondary transport when
// one is configured, and an unrecoverable outage marks the device lost and
// fires the scan hook. A snapshot is only published on a successful poll,
// so retained metric topics never carry values invented during an outage.
package poller
