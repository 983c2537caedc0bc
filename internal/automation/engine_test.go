package automation

import (
	"testing"
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

func f(v float64) *float64 { return &v }

// atsSnapshot builds a snapshot with the given source-A voltage.
func atsSnapshot(voltageA float64) *pdu.Snapshot {
	return &pdu.Snapshot{
		Timestamp: time.Now(),
		ATS: &pdu.ATS{
			PreferredSource: pdu.SourceA,
			CurrentSource:   pdu.SourceA,
			AutoTransfer:    true,
		},
		SourceA: &pdu.SourceReading{Voltage: f(voltageA), VoltageStatus: pdu.SourceNormal},
		SourceB: &pdu.SourceReading{Voltage: f(120), VoltageStatus: pdu.SourceNormal},
	}
}

func newTestEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	e, err := NewEngine("pdu-01", 10, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	for _, r := range rules {
		if err := e.AddRule(r); err != nil {
			t.Fatalf("AddRule(%s): %v", r.Name, err)
		}
	}
	return e
}

func TestRuleFiresAfterDelay(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "low", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "5", Action: "off", Restore: true, Delay: 5,
	})
	base := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)

	// First low sample starts the clock; nothing fires yet.
	intents, events := e.Evaluate(atsSnapshot(95), base)
	if len(intents) != 0 || len(events) != 0 {
		t.Fatalf("fired on first sample: %v %v", intents, events)
	}

	// 4 s in: still below delay.
	intents, _ = e.Evaluate(atsSnapshot(95), base.Add(4*time.Second))
	if len(intents) != 0 {
		t.Fatal("fired before delay elapsed")
	}

	// 5 s in: fires.
	intents, events = e.Evaluate(atsSnapshot(95), base.Add(5*time.Second))
	if len(intents) != 1 {
		t.Fatalf("got %d intents, want 1", len(intents))
	}
	if intents[0].Outlet != 5 || intents[0].Command != pdu.CommandOff {
		t.Errorf("intent = %+v", intents[0])
	}
	if len(events) != 1 || events[0].Kind != EventTriggered {
		t.Errorf("events = %+v", events)
	}

	// Still low: no re-fire.
	intents, _ = e.Evaluate(atsSnapshot(95), base.Add(6*time.Second))
	if len(intents) != 0 {
		t.Error("re-fired while already triggered")
	}

	// Recovery: restore emits the inverse action.
	intents, events = e.Evaluate(atsSnapshot(120), base.Add(10*time.Second))
	if len(intents) != 1 || intents[0].Command != pdu.CommandOn || !intents[0].Restore {
		t.Fatalf("restore intents = %+v", intents)
	}
	if len(events) != 1 || events[0].Kind != EventRestored {
		t.Errorf("restore events = %+v", events)
	}
}

func TestConditionDipResetsDelay(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "low", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off", Delay: 5,
	})
	base := time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC)

	e.Evaluate(atsSnapshot(95), base)
	e.Evaluate(atsSnapshot(95), base.Add(3*time.Second))
	// One good sample resets the clock.
	e.Evaluate(atsSnapshot(120), base.Add(4*time.Second))
	intents, _ := e.Evaluate(atsSnapshot(95), base.Add(6*time.Second))
	if len(intents) != 0 {
		t.Fatal("fired despite the delay reset")
	}
	// Clock restarted at 6 s; fires at 11 s.
	intents, _ = e.Evaluate(atsSnapshot(95), base.Add(11*time.Second))
	if len(intents) != 1 {
		t.Fatal("did not fire after a full continuous delay")
	}
}

func TestZeroDelayFiresImmediately(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "instant", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off",
	})
	intents, _ := e.Evaluate(atsSnapshot(95), time.Now())
	if len(intents) != 1 {
		t.Fatalf("got %d intents, want fire on first sample", len(intents))
	}
}

func TestOneshotDisablesAfterFire(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "once", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off", Schedule: ScheduleOneshot,
	})
	now := time.Now()

	intents, _ := e.Evaluate(atsSnapshot(95), now)
	if len(intents) != 1 {
		t.Fatal("oneshot did not fire")
	}
	states := e.States()
	if len(states) != 1 || states[0].Enabled {
		t.Error("oneshot rule still enabled after firing")
	}
	// Disabled: never fires again.
	intents, _ = e.Evaluate(atsSnapshot(95), now.Add(time.Minute))
	if len(intents) != 0 {
		t.Error("disabled oneshot fired again")
	}
}

func TestOutletRangeEmitsPerOutlet(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "shed", Enabled: true,
		Condition: CondATSPreferredLost,
		Outlet:    "1-3", Action: "off",
	})
	snap := atsSnapshot(120)
	snap.ATS.CurrentSource = pdu.SourceB // preferred A lost

	intents, _ := e.Evaluate(snap, time.Now())
	if len(intents) != 3 {
		t.Fatalf("got %d intents, want 3", len(intents))
	}
	for i, want := range []int{1, 2, 3} {
		if intents[i].Outlet != want {
			t.Errorf("intent %d outlet = %d, want %d", i, intents[i].Outlet, want)
		}
	}
}

func TestRuleErrorDisablesRule(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "ats", Enabled: true,
		Condition: CondATSPreferredLost,
		Outlet:    "1", Action: "off",
	})
	// Snapshot without ATS: condition cannot evaluate.
	snap := &pdu.Snapshot{Timestamp: time.Now()}

	intents, events := e.Evaluate(snap, time.Now())
	if len(intents) != 0 {
		t.Error("intents from failing rule")
	}
	if len(events) != 1 || events[0].Kind != EventDisabled {
		t.Fatalf("events = %+v, want disabled", events)
	}
	states := e.States()
	if states[0].Enabled || states[0].LastError == "" {
		t.Errorf("state = %+v, want disabled with error", states[0])
	}
}

func TestNonATSFallsBackToBankVoltage(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "low", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off",
	})
	snap := &pdu.Snapshot{
		Timestamp: time.Now(),
		Banks:     map[int]pdu.Bank{1: {Number: 1, Voltage: f(90)}},
	}
	intents, _ := e.Evaluate(snap, time.Now())
	if len(intents) != 1 {
		t.Fatal("bank-voltage fallback did not fire")
	}
}

func TestDayOfWeekFilter(t *testing.T) {
	e := newTestEngine(t, Rule{
		Name: "weekday", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off",
		Days: []int{0, 1, 2, 3, 4},
	})
	monday := time.Date(2026, 8, 17, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)

	if intents, _ := e.Evaluate(atsSnapshot(95), saturday); len(intents) != 0 {
		t.Error("fired on an excluded day")
	}
	if intents, _ := e.Evaluate(atsSnapshot(95), monday); len(intents) != 1 {
		t.Error("did not fire on an admitted day")
	}
}

func TestTimeBetweenMidnightWrap(t *testing.T) {
	tests := []struct {
		clock string
		want  bool
	}{
		{"23:59", true},
		{"05:59", true},
		{"12:00", false},
		{"22:00", true},  // start inclusive
		{"06:00", false}, // end exclusive
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			var h, m int
			if _, err := parseClockInto(tt.clock, &h, &m); err != nil {
				t.Fatal(err)
			}
			now := time.Date(2026, 8, 19, h, m, 0, 0, time.UTC)
			r := &Rule{Condition: CondTimeBetween, Time: "22:00-06:00"}
			got, err := evaluateCondition(r, &pdu.Snapshot{}, now)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("time_between(22:00-06:00) at %s = %v, want %v", tt.clock, got, tt.want)
			}
		})
	}
}

func parseClockInto(s string, h, m *int) (int, error) {
	mins, err := parseClock(s)
	if err != nil {
		return 0, err
	}
	*h, *m = mins/60, mins%60
	return mins, nil
}

func TestEventRingBounded(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < eventHistorySize+20; i++ {
		e.recordLocked(Event{Rule: "x", Kind: EventTriggered})
	}
	if got := len(e.Events()); got != eventHistorySize {
		t.Errorf("event history = %d entries, want %d", got, eventHistorySize)
	}
}

func TestRuleCRUD(t *testing.T) {
	e := newTestEngine(t)
	r := Rule{
		Name: "r1", Enabled: true,
		Condition: CondVoltageBelow, Threshold: 100, Input: 1,
		Outlet: "1", Action: "off",
	}
	if err := e.AddRule(r); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if err := e.AddRule(r); err != ErrRuleExists {
		t.Errorf("duplicate AddRule err = %v", err)
	}

	r.Threshold = 110
	if err := e.UpdateRule("r1", r); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if rules := e.Rules(); rules[0].Threshold != 110 {
		t.Errorf("threshold after update = %v", rules[0].Threshold)
	}

	enabled, err := e.ToggleRule("r1")
	if err != nil || enabled {
		t.Errorf("ToggleRule = %v, %v; want disabled", enabled, err)
	}

	if err := e.DeleteRule("r1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if err := e.DeleteRule("r1"); err != ErrRuleNotFound {
		t.Errorf("second DeleteRule err = %v", err)
	}
}
