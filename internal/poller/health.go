package poller

import "time"

// State is the coarse per-device health classification.
type State string

const (
	// StateStarting holds until the first successful cycle.
	StateStarting State = "starting"

	// StateHealthy means the last cycle succeeded.
	StateHealthy State = "healthy"

	// StateDegraded means polls have failed for degradedAfter consecutive
	// cycles but the outage is still considered transient.
	StateDegraded State = "degraded"

	// StateRecovering means the poller switched to its secondary transport
	// and is waiting for the first successful cycle on it.
	StateRecovering State = "recovering"

	// StateLost means the device has been unreachable past the swap
	// threshold with no secondary transport left to try.
	StateLost State = "lost"
)

const (
	degradedAfter = 10
	swapAfter     = 30
)

// healthEvent tells the loop what a failure transition requires of it.
type healthEvent int

const (
	healthNone healthEvent = iota
	healthWarn
	healthSwap
	healthLost
)

// healthTracker is the consecutive-failure state machine. It is only ever
// touched from the loop goroutine; the Poller copies its fields out under
// the poller mutex for readers.
type healthTracker struct {
	state        State
	failures     int
	hasSecondary bool
	lastError    string
	lastSuccess  time.Time
}

func newHealthTracker(hasSecondary bool) *healthTracker {
	return &healthTracker{state: StateStarting, hasSecondary: hasSecondary}
}

// success resets the failure streak. The return reports whether the device
// just came back from a non-healthy state.
func (h *healthTracker) success(now time.Time) bool {
	recovered := h.state != StateHealthy && h.state != StateStarting
	h.state = StateHealthy
	h.failures = 0
	h.lastError = ""
	h.lastSuccess = now
	return recovered
}

// failure advances the streak and returns the action the loop must take.
// Degraded is announced once and then every degradedAfter-th failure so a
// long outage does not flood the log.
func (h *healthTracker) failure(err error) healthEvent {
	h.failures++
	h.lastError = err.Error()

	if h.failures >= swapAfter {
		if h.hasSecondary {
			h.failures = 0
			h.state = StateRecovering
			return healthSwap
		}
		if h.state != StateLost {
			h.state = StateLost
			return healthLost
		}
		if h.failures%degradedAfter == 0 {
			return healthWarn
		}
		return healthNone
	}

	if h.failures >= degradedAfter {
		entering := h.state != StateDegraded
		if h.state != StateLost && h.state != StateRecovering {
			h.state = StateDegraded
		}
		if entering || h.failures%degradedAfter == 0 {
			return healthWarn
		}
	}
	return healthNone
}

// Health is the externally visible device health, read by the HTTP API and
// the bridge health aggregator.
type Health struct {
	State       State     `json:"state"`
	Failures    int       `json:"consecutive_failures,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Transport   string    `json:"transport"`
}
