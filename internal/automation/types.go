package automation

import (
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// Condition names one of the closed set of rule conditions.
type Condition string

const (
	CondVoltageBelow     Condition = "voltage_below"
	CondVoltageAbove     Condition = "voltage_above"
	CondATSSourceIs      Condition = "ats_source_is"
	CondATSPreferredLost Condition = "ats_preferred_lost"
	CondTimeAfter        Condition = "time_after"
	CondTimeBefore       Condition = "time_before"
	CondTimeBetween      Condition = "time_between"
)

// Schedule types. A continuous rule re-arms after every trigger; a
// oneshot rule disables itself after firing once.
const (
	ScheduleContinuous = "continuous"
	ScheduleOneshot    = "oneshot"
)

// Rule is one automation rule plus its runtime state. The runtime fields
// are excluded from the persisted document; they are rebuilt as snapshots
// arrive.
type Rule struct {
	Name      string     `json:"name"`
	Enabled   bool       `json:"enabled"`
	Condition Condition  `json:"condition"`
	Threshold float64    `json:"threshold,omitempty"`
	Input     int        `json:"input,omitempty"`  // 1 = source A, 2 = source B
	Source    string     `json:"source,omitempty"` // for ats_source_is: "A" or "B"
	Time      string     `json:"time,omitempty"`   // "hh:mm" or "hh:mm-hh:mm"
	Outlet    OutletSpec `json:"outlet"`
	Action    string     `json:"action"` // on, off, reboot
	Delay     int        `json:"delay"`  // seconds the condition must hold
	Restore   bool       `json:"restore"`
	Schedule  string     `json:"schedule_type,omitempty"` // continuous (default) or oneshot
	Days      []int      `json:"days_of_week,omitempty"`  // 0=Monday .. 6=Sunday; empty = every day

	// Runtime state.
	ConditionSince *time.Time `json:"-"`
	Triggered      bool       `json:"-"`
	FiredAt        *time.Time `json:"-"`
	LastError      string     `json:"-"`
}

// Oneshot reports whether the rule disables itself after firing.
func (r *Rule) Oneshot() bool { return r.Schedule == ScheduleOneshot }

// RuleState is the status-topic view of a rule.
type RuleState struct {
	Name           string     `json:"name"`
	Enabled        bool       `json:"enabled"`
	Condition      Condition  `json:"condition"`
	Triggered      bool       `json:"triggered"`
	ConditionSince *time.Time `json:"condition_since,omitempty"`
	FiredAt        *time.Time `json:"fired_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// ActionIntent is one outlet action the engine wants executed. The poller
// funnels intents into the device command FIFO.
type ActionIntent struct {
	Rule    string      `json:"rule"`
	Outlet  int         `json:"outlet"`
	Command pdu.Command `json:"command"`
	Restore bool        `json:"restore"` // true when this is the inverse action
}

// EventKind classifies an automation event.
type EventKind string

const (
	EventTriggered EventKind = "triggered"
	EventRestored  EventKind = "restored"
	EventDisabled  EventKind = "disabled" // rule disabled after an evaluation error
)

// Event is one entry of the bounded event history.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Rule      string    `json:"rule"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	Outlets   []int     `json:"outlets,omitempty"`
	Action    string    `json:"action,omitempty"`
}
