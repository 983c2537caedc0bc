package automation

import (
	"fmt"
	"strings"

	"github.com/voltbridge/voltbridge/internal/pdu"
)

// ValidateRule checks a rule definition against the device's outlet count.
// Returned errors wrap ErrRuleInvalid so HTTP can map them to 400.
func ValidateRule(r *Rule, outletCount int) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrRuleInvalid)
	}
	if r.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0", ErrRuleInvalid)
	}

	cmd, err := pdu.ParseCommand(r.Action)
	if err != nil {
		return fmt.Errorf("%w: action %q", ErrRuleInvalid, r.Action)
	}
	if r.Restore {
		if _, ok := cmd.Inverse(); !ok {
			return fmt.Errorf("%w: action %q has no inverse for restore", ErrRuleInvalid, r.Action)
		}
	}

	if _, err := r.Outlet.Expand(outletCount); err != nil {
		return fmt.Errorf("%w: %v", ErrRuleInvalid, err)
	}

	switch r.Condition {
	case CondVoltageBelow, CondVoltageAbove:
		if r.Threshold <= 0 {
			return fmt.Errorf("%w: threshold must be > 0 for %s", ErrRuleInvalid, r.Condition)
		}
		if r.Input != 0 && r.Input != 1 && r.Input != 2 {
			return fmt.Errorf("%w: input must be 1 (A) or 2 (B)", ErrRuleInvalid)
		}
	case CondATSSourceIs:
		src := strings.ToUpper(r.Source)
		if src != "A" && src != "B" {
			return fmt.Errorf("%w: source must be A or B", ErrRuleInvalid)
		}
	case CondATSPreferredLost:
		// no parameters
	case CondTimeAfter, CondTimeBefore:
		if _, err := parseClock(r.Time); err != nil {
			return fmt.Errorf("%w: %v", ErrRuleInvalid, err)
		}
	case CondTimeBetween:
		if _, _, err := parseClockRange(r.Time); err != nil {
			return fmt.Errorf("%w: %v", ErrRuleInvalid, err)
		}
	default:
		return fmt.Errorf("%w: unknown condition %q", ErrRuleInvalid, r.Condition)
	}

	switch r.Schedule {
	case "", ScheduleContinuous, ScheduleOneshot:
	default:
		return fmt.Errorf("%w: schedule_type must be %q or %q",
			ErrRuleInvalid, ScheduleContinuous, ScheduleOneshot)
	}

	for _, d := range r.Days {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: days_of_week values must be 0-6 (Mon-Sun)", ErrRuleInvalid)
		}
	}
	return nil
}
