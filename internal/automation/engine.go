package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/pdu"
)

// eventHistorySize bounds the in-memory event ring.
const eventHistorySize = 100

// Engine holds one device's rules and evaluates them against snapshots.
// All methods are safe for concurrent use; the poller calls Evaluate while
// the HTTP facade mutates rules.
type Engine struct {
	deviceID    string
	outletCount int
	store       *Store
	logger      *logging.Logger

	mu     sync.Mutex
	rules  []*Rule
	events []Event
}

// NewEngine loads the device's rules from the store. A missing rules file
// is an empty rule set, not an error.
func NewEngine(deviceID string, outletCount int, store *Store, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		deviceID:    deviceID,
		outletCount: outletCount,
		store:       store,
		logger:      logger.With("component", "automation", "device", deviceID),
	}

	if store != nil {
		rules, err := store.Load(deviceID)
		if err != nil {
			return nil, err
		}
		e.rules = rules
	}
	return e, nil
}

// SetOutletCount updates the validation bound after device identification.
func (e *Engine) SetOutletCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > 0 {
		e.outletCount = n
	}
}

// Evaluate runs every enabled rule against the snapshot. It returns the
// action intents to execute and the events generated this cycle; the
// second return also lands in the event history.
func (e *Engine) Evaluate(snap *pdu.Snapshot, now time.Time) ([]ActionIntent, []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var intents []ActionIntent
	var events []Event

	for _, r := range e.rules {
		if !r.Enabled || !dayAdmits(r.Days, now) {
			continue
		}

		holds, err := evaluateCondition(r, snap, now)
		if err != nil {
			// One bad rule must not stop the engine: disable it and move on.
			r.Enabled = false
			r.LastError = err.Error()
			ev := Event{
				Timestamp: now, Rule: r.Name, Kind: EventDisabled,
				Detail: err.Error(),
			}
			events = append(events, ev)
			e.recordLocked(ev)
			e.logger.Warn("rule disabled after evaluation error", "rule", r.Name, "error", err)
			continue
		}

		switch {
		case holds && r.ConditionSince == nil:
			since := now
			r.ConditionSince = &since
			fallthrough

		case holds:
			if r.Triggered {
				continue
			}
			if now.Sub(*r.ConditionSince) < time.Duration(r.Delay)*time.Second {
				continue
			}
			ruleIntents, ev, fireErr := e.fireLocked(r, now, false)
			if fireErr != nil {
				r.Enabled = false
				r.LastError = fireErr.Error()
				dev := Event{Timestamp: now, Rule: r.Name, Kind: EventDisabled, Detail: fireErr.Error()}
				events = append(events, dev)
				e.recordLocked(dev)
				continue
			}
			intents = append(intents, ruleIntents...)
			events = append(events, ev)
			e.recordLocked(ev)
			r.Triggered = true
			fired := now
			r.FiredAt = &fired
			if r.Oneshot() {
				r.Enabled = false
				e.persistLocked()
			}

		default: // condition false
			r.ConditionSince = nil
			if !r.Triggered {
				continue
			}
			r.Triggered = false
			if !r.Restore {
				continue
			}
			ruleIntents, ev, fireErr := e.fireLocked(r, now, true)
			if fireErr != nil {
				continue // inverse failed to build; triggered already cleared
			}
			intents = append(intents, ruleIntents...)
			events = append(events, ev)
			e.recordLocked(ev)
		}
	}
	return intents, events
}

// fireLocked expands the rule's outlets into intents for the forward or
// restoring action.
func (e *Engine) fireLocked(r *Rule, now time.Time, restore bool) ([]ActionIntent, Event, error) {
	cmd, err := pdu.ParseCommand(r.Action)
	if err != nil {
		return nil, Event{}, err
	}
	kind := EventTriggered
	if restore {
		inv, ok := cmd.Inverse()
		if !ok {
			return nil, Event{}, fmt.Errorf("action %q has no inverse", r.Action)
		}
		cmd = inv
		kind = EventRestored
	}

	outlets, err := r.Outlet.Expand(e.outletCount)
	if err != nil {
		return nil, Event{}, err
	}

	intents := make([]ActionIntent, 0, len(outlets))
	for _, n := range outlets {
		intents = append(intents, ActionIntent{
			Rule: r.Name, Outlet: n, Command: cmd, Restore: restore,
		})
	}
	ev := Event{
		Timestamp: now, Rule: r.Name, Kind: kind,
		Outlets: outlets, Action: string(cmd),
	}
	e.logger.Info("rule "+string(kind), "rule", r.Name, "outlets", outlets, "action", string(cmd))
	return intents, ev, nil
}

func (e *Engine) recordLocked(ev Event) {
	e.events = append(e.events, ev)
	if len(e.events) > eventHistorySize {
		e.events = e.events[len(e.events)-eventHistorySize:]
	}
}

// Events returns the bounded event history, oldest first.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// States returns the status-topic view of every rule.
func (e *Engine) States() []RuleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	states := make([]RuleState, 0, len(e.rules))
	for _, r := range e.rules {
		states = append(states, RuleState{
			Name:           r.Name,
			Enabled:        r.Enabled,
			Condition:      r.Condition,
			Triggered:      r.Triggered,
			ConditionSince: r.ConditionSince,
			FiredAt:        r.FiredAt,
			LastError:      r.LastError,
		})
	}
	return states
}

// Rules returns copies of the rule definitions.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	rules := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, *r)
	}
	return rules
}

// AddRule validates, stores and persists a new rule.
func (e *Engine) AddRule(r Rule) error {
	if err := ValidateRule(&r, e.outletCountSnapshot()); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.findLocked(r.Name) != nil {
		return ErrRuleExists
	}
	e.rules = append(e.rules, &r)
	return e.persistLocked()
}

// UpdateRule replaces an existing rule, resetting its runtime state.
func (e *Engine) UpdateRule(name string, r Rule) error {
	r.Name = name
	if err := ValidateRule(&r, e.outletCountSnapshot()); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing := e.findLocked(name)
	if existing == nil {
		return ErrRuleNotFound
	}
	*existing = r
	return e.persistLocked()
}

// DeleteRule removes a rule by name.
func (e *Engine) DeleteRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return e.persistLocked()
		}
	}
	return ErrRuleNotFound
}

// ToggleRule flips a rule's enabled flag and clears its error and runtime
// state.
func (e *Engine) ToggleRule(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.findLocked(name)
	if r == nil {
		return false, ErrRuleNotFound
	}
	r.Enabled = !r.Enabled
	r.LastError = ""
	r.ConditionSince = nil
	r.Triggered = false
	return r.Enabled, e.persistLocked()
}

func (e *Engine) findLocked(name string) *Rule {
	for _, r := range e.rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (e *Engine) outletCountSnapshot() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outletCount
}

func (e *Engine) persistLocked() error {
	if e.store == nil {
		return nil
	}
	rules := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, *r)
	}
	if err := e.store.Save(e.deviceID, rules); err != nil {
		e.logger.Error("persisting rules failed", "error", err)
		return err
	}
	return nil
}
