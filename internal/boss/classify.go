package boss

import (
	"fmt"
	"time"
)

// Phase is a boss's lifecycle phase relative to wall-clock time.
type Phase string

const (
	// PhasePending: no kill observed yet; no notification logic runs.
	PhasePending Phase = "pending"
	// PhaseWaiting: cooling down, respawn further out than the early window.
	PhaseWaiting Phase = "waiting"
	// PhaseImminent: respawn within the early-warning window.
	PhaseImminent Phase = "imminent"
	// PhaseSpawned: respawn time reached, less than one full extra period ago.
	PhaseSpawned Phase = "spawned"
	// PhaseMissed: at least one full period has elapsed past the respawn time.
	PhaseMissed Phase = "missed"
)

// Status is the classifier output for one boss at one instant.
type Status struct {
	Phase     Phase
	Remaining string    // display text, floor-to-minute
	Respawn   time.Time // zero when Phase == PhasePending
	// MissedCycles counts whole overrun periods, measured from the original
	// respawn time (not a rolling window): floor(overrun / period).
	MissedCycles int
}

// Classify computes the lifecycle phase of a boss from its period, last kill
// and the current time. It is a pure function; earlyWindow is the
// early-warning threshold (remaining <= earlyWindow => imminent).
//
// SPAWNED and MISSED partition the post-respawn axis with no gap or overlap:
// remaining <= 0 is SPAWNED until a full extra period has elapsed, MISSED
// from then on.
func Classify(periodMinutes int, lastKill *time.Time, now time.Time, earlyWindow time.Duration) Status {
	if lastKill == nil {
		return Status{Phase: PhasePending, Remaining: "unset"}
	}
	period := time.Duration(SafePeriod(periodMinutes)) * time.Minute
	respawn := lastKill.Add(period)
	remain := respawn.Sub(now)

	switch {
	case remain <= 0:
		over := -remain
		cycles := int(over / period)
		if cycles >= 1 {
			return Status{
				Phase:        PhaseMissed,
				Remaining:    fmt.Sprintf("over by %d cycles", cycles),
				Respawn:      respawn,
				MissedCycles: cycles,
			}
		}
		return Status{Phase: PhaseSpawned, Remaining: "0m", Respawn: respawn}
	case remain <= earlyWindow:
		return Status{Phase: PhaseImminent, Remaining: FormatCompact(remain), Respawn: respawn}
	default:
		return Status{Phase: PhaseWaiting, Remaining: FormatCompact(remain), Respawn: respawn}
	}
}

// FormatCompact renders a duration as "1h05m" / "42m", flooring to the
// minute. Values <= 0 render as "0m".
func FormatCompact(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return "0m"
	}
	m := total / 60
	h := m / 60
	m = m % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
