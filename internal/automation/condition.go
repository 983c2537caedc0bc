package automation

import (
	"fmt"
	"strings"
	"time"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// evaluateCondition reports whether the rule's condition holds for the
// snapshot at now. Unknown conditions and missing data error out; the
// engine disables the rule in response.
func evaluateCondition(r *Rule, snap *pdu.Snapshot, now time.Time) (bool, error) {
	switch r.Condition {
	case CondVoltageBelow:
		v, ok := inputVoltage(r, snap)
		if !ok {
			return false, fmt.Errorf("no voltage reading for input %d", r.Input)
		}
		return v < r.Threshold, nil

	case CondVoltageAbove:
		v, ok := inputVoltage(r, snap)
		if !ok {
			return false, fmt.Errorf("no voltage reading for input %d", r.Input)
		}
		return v > r.Threshold, nil

	case CondATSSourceIs:
		if snap.ATS == nil {
			return false, fmt.Errorf("device has no transfer switch")
		}
		return strings.EqualFold(string(snap.ATS.CurrentSource), r.Source), nil

	case CondATSPreferredLost:
		if snap.ATS == nil {
			return false, fmt.Errorf("device has no transfer switch")
		}
		return snap.ATS.PreferredLost(), nil

	case CondTimeAfter:
		m, err := parseClock(r.Time)
		if err != nil {
			return false, err
		}
		return minuteOfDay(now) >= m, nil

	case CondTimeBefore:
		m, err := parseClock(r.Time)
		if err != nil {
			return false, err
		}
		return minuteOfDay(now) < m, nil

	case CondTimeBetween:
		start, end, err := parseClockRange(r.Time)
		if err != nil {
			return false, err
		}
		return inWindow(minuteOfDay(now), start, end), nil
	}
	return false, fmt.Errorf("unknown condition %q", r.Condition)
}

// inputVoltage resolves the rule's voltage source: ATS input A/B when the
// device has one, otherwise bank 1.
func inputVoltage(r *Rule, snap *pdu.Snapshot) (float64, bool) {
	if snap.ATS != nil {
		src := pdu.SourceA
		if r.Input == 2 {
			src = pdu.SourceB
		}
		return snap.SourceVoltage(src)
	}
	if bank, ok := snap.Banks[1]; ok && bank.Voltage != nil {
		return *bank.Voltage, true
	}
	if snap.InputVoltage != nil {
		return *snap.InputVoltage, true
	}
	return 0, false
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// parseClock parses "hh:mm" into a minute of day.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad time %q (want hh:mm)", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// parseClockRange parses "hh:mm-hh:mm".
func parseClockRange(s string) (start, end int, err error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("bad time range %q (want hh:mm-hh:mm)", s)
	}
	if start, err = parseClock(from); err != nil {
		return 0, 0, err
	}
	if end, err = parseClock(to); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// inWindow tests start-inclusive, end-exclusive membership with midnight
// wrap: 22:00-06:00 admits 23:59 and 05:59 but not 12:00.
func inWindow(minute, start, end int) bool {
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

// dayAdmits reports whether the rule's day-of-week filter admits now. An
// empty filter admits every day. Days are numbered 0=Monday .. 6=Sunday;
// time.Weekday counts from Sunday, hence the rotation.
func dayAdmits(days []int, now time.Time) bool {
	if len(days) == 0 {
		return true
	}
	today := (int(now.Weekday()) + 6) % 7
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}
