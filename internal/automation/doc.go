// Package automation evaluates power-event rules against poll snapshots.
//
// Lifecycle per rule, per snapshot:
//
//	condition false ──────────────> clear condition_since
//	condition true, since unset ──> condition_since = now
//	true for >= delay, untriggered> emit action, triggered=true
//	                                (disable if oneshot)
//	condition false, triggered,
//	restore ────────────────────> emit inverse action, triggered=false
//
// The engine is deliberately passive: Evaluate returns action intents and
// event records; the poller owns the transport and decides when to execute.
// That keeps rule evaluation free of I/O and trivially testable.
//
// Conditions are a closed set (voltage thresholds, ATS state, time
// windows). A rule that fails to evaluate is disabled and the failure is
// recorded as an event; one bad rule never stops the engine.
//
// Rules persist per device as a single JSON document written atomically
// (temp file + rename).
package automation
