package boss

import (
	"testing"
	"time"
)

func TestClassifyPhases(t *testing.T) {
	t.Parallel()

	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	early := 3 * time.Minute

	tests := []struct {
		name    string
		period  int
		last    *time.Time
		now     time.Time
		phase   Phase
		missed  int
		remains string
	}{
		{name: "no kill yet", period: 120, last: nil, now: kill, phase: PhasePending, remains: "unset"},
		{name: "mid cycle", period: 120, last: &kill, now: kill.Add(30 * time.Minute), phase: PhaseWaiting, remains: "1h30m"},
		{name: "inside early window", period: 120, last: &kill, now: kill.Add(118 * time.Minute), phase: PhaseImminent, remains: "2m"},
		{name: "early window boundary", period: 120, last: &kill, now: kill.Add(117 * time.Minute), phase: PhaseImminent, remains: "3m"},
		{name: "exactly due", period: 120, last: &kill, now: kill.Add(120 * time.Minute), phase: PhaseSpawned, remains: "0m"},
		{name: "overdue under one cycle", period: 120, last: &kill, now: kill.Add(3*time.Hour + 59*time.Minute), phase: PhaseSpawned, remains: "0m"},
		{name: "one missed cycle", period: 120, last: &kill, now: kill.Add(4 * time.Hour), phase: PhaseMissed, missed: 1},
		{name: "two missed cycles", period: 120, last: &kill, now: kill.Add(120*time.Minute + 245*time.Minute), phase: PhaseMissed, missed: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := Classify(tt.period, tt.last, tt.now, early)
			if st.Phase != tt.phase {
				t.Fatalf("Phase = %v, want %v", st.Phase, tt.phase)
			}
			if st.MissedCycles != tt.missed {
				t.Fatalf("MissedCycles = %d, want %d", st.MissedCycles, tt.missed)
			}
			if tt.remains != "" && st.Remaining != tt.remains {
				t.Fatalf("Remaining = %q, want %q", st.Remaining, tt.remains)
			}
			if tt.last != nil {
				want := tt.last.Add(time.Duration(tt.period) * time.Minute)
				if !st.Respawn.Equal(want) {
					t.Fatalf("Respawn = %v, want %v", st.Respawn, want)
				}
			}
		})
	}
}

// The respawn anchor must not roll forward as cycles are missed: the count
// is always measured from the first predicted respawn.
func TestClassifyMissedAnchoring(t *testing.T) {
	t.Parallel()

	kill := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for cycles := 1; cycles <= 5; cycles++ {
		now := kill.Add(time.Duration(1+cycles) * 2 * time.Hour)
		st := Classify(120, &kill, now, 3*time.Minute)
		if st.Phase != PhaseMissed {
			t.Fatalf("cycles=%d: Phase = %v, want missed", cycles, st.Phase)
		}
		if st.MissedCycles != cycles {
			t.Fatalf("cycles=%d: MissedCycles = %d", cycles, st.MissedCycles)
		}
	}
}

func TestClassifyZeroPeriodFallsBack(t *testing.T) {
	t.Parallel()

	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	st := Classify(0, &kill, kill.Add(time.Hour), 3*time.Minute)
	want := kill.Add(time.Duration(DefaultPeriodMinutes) * time.Minute)
	if !st.Respawn.Equal(want) {
		t.Fatalf("Respawn = %v, want default-period %v", st.Respawn, want)
	}
}

func TestFormatCompact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{-5 * time.Minute, "0m"},
		{59 * time.Second, "0m"},
		{61 * time.Second, "1m"},
		{59 * time.Minute, "59m"},
		{60 * time.Minute, "1h00m"},
		{90 * time.Minute, "1h30m"},
		{26*time.Hour + 5*time.Minute, "26h05m"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.in); got != tt.want {
			t.Fatalf("FormatCompact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
