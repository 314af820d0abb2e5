package boss

import (
	"testing"
	"time"
)

func TestEvaluateWindows(t *testing.T) {
	t.Parallel()

	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s := Settings{EarlyWarning: 3 * time.Minute, AntiDupGrace: 180 * time.Second}
	rec := func() *Record { return &Record{Period: 60, LastKill: &kill} }

	tests := []struct {
		name     string
		mutate   func(*Record)
		now      time.Time
		reminder bool
		card     bool
	}{
		{name: "long before respawn", now: kill.Add(10 * time.Minute)},
		{name: "window opens", now: kill.Add(57 * time.Minute), reminder: true},
		{name: "just before respawn", now: kill.Add(60*time.Minute - time.Second), reminder: true},
		{name: "at respawn", now: kill.Add(60 * time.Minute), card: true},
		{name: "well past respawn", now: kill.Add(3 * time.Hour), card: true},
		{
			name:   "already reminded",
			mutate: func(r *Record) { r.Reminded = true },
			now:    kill.Add(58 * time.Minute),
		},
		{
			name:   "already carded",
			mutate: func(r *Record) { r.Carded = true },
			now:    kill.Add(61 * time.Minute),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := rec()
			if tt.mutate != nil {
				tt.mutate(r)
			}
			p := Evaluate(r, tt.now, s)
			if p.Reminder != tt.reminder {
				t.Fatalf("Reminder = %v, want %v", p.Reminder, tt.reminder)
			}
			if p.Card != tt.card {
				t.Fatalf("Card = %v, want %v", p.Card, tt.card)
			}
		})
	}
}

func TestEvaluateNoKill(t *testing.T) {
	t.Parallel()
	p := Evaluate(&Record{Period: 60}, time.Now(), Settings{})
	if p.Reminder || p.Card {
		t.Fatalf("expected empty plan, got %+v", p)
	}
	p = Evaluate(nil, time.Now(), Settings{})
	if p.Reminder || p.Card {
		t.Fatalf("expected empty plan for nil record, got %+v", p)
	}
}

// A spawn due shortly after a manual correction starts suppressed: the
// operator just said "killed", so an immediate confirm button would invite a
// duplicate entry.
func TestEvaluateAntiDupSuppression(t *testing.T) {
	t.Parallel()

	s := Settings{EarlyWarning: 3 * time.Minute, AntiDupGrace: 180 * time.Second}
	now := time.Date(2026, 3, 10, 13, 0, 30, 0, time.UTC)

	// Period 60m, kill recorded 60m30s ago: spawn is due. The manual stamp
	// is 30s old, inside the grace window.
	kill := now.Add(-60*time.Minute - 30*time.Second)
	stamp := now.Add(-30 * time.Second)
	r := &Record{Period: 60, LastKill: &kill, ManualSetAt: &stamp}

	p := Evaluate(r, now, s)
	if !p.Card {
		t.Fatal("expected a card")
	}
	if p.CardState != CardSuppressed {
		t.Fatalf("CardState = %v, want suppressed", p.CardState)
	}

	// Same scenario with the stamp outside the grace window.
	old := now.Add(-10 * time.Minute)
	r.ManualSetAt = &old
	p = Evaluate(r, now, s)
	if p.CardState != CardActive {
		t.Fatalf("CardState = %v, want active", p.CardState)
	}

	// Confirm-button kills never stamp ManualSetAt.
	r.ManualSetAt = nil
	p = Evaluate(r, now, s)
	if p.CardState != CardActive {
		t.Fatalf("CardState = %v, want active without stamp", p.CardState)
	}
}

func TestEvaluateDefaults(t *testing.T) {
	t.Parallel()

	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r := &Record{Period: 60, LastKill: &kill}

	// Zero settings fall back to a 3m early window.
	p := Evaluate(r, kill.Add(58*time.Minute), Settings{})
	if !p.Reminder {
		t.Fatal("expected reminder inside the default early window")
	}
}
