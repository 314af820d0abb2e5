package boss

import (
	"time"

	kit "bossbot/internal/transport"
)

// DefaultPeriodMinutes is the fallback respawn period applied when a boss is
// created without a hint and is not in the catalog, or when a persisted
// period is invalid.
const DefaultPeriodMinutes = 120

// CardState tags a spawn card's confirm affordance.
//
// A Suppressed card is rendered without the confirm button: it is created
// that way when a human manually logged the kill moments before the card
// was due, so a second confirmation for the same cycle makes no sense.
type CardState string

const (
	CardActive     CardState = "active"
	CardSuppressed CardState = "suppressed"
)

// CardRef points at the currently live spawn card so it can be superseded
// (deactivated) when a newer correction replaces it.
type CardRef struct {
	ChatID    int64     `json:"chat_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	MessageID int       `json:"message_id"`
	State     CardState `json:"state"`
}

func (c CardRef) Ref() kit.MessageRef {
	return kit.MessageRef{ChatID: c.ChatID, ThreadID: c.ThreadID, MessageID: c.MessageID}
}

// Record is one tracked boss, keyed by trimmed name.
//
// All fields are always present in the schema; "unset" is expressed with nil
// pointers and false bools, never by deleting keys. Reminded and Carded are
// reset exactly when LastKill changes (a new cycle), and Card is cleared
// whenever it is superseded or LastKill changes.
type Record struct {
	// Period is the respawn interval in minutes. Always > 0 after
	// normalization; use SafePeriod when reading untrusted values.
	Period int `json:"period"`

	// LastKill is the last confirmed kill. nil means never observed.
	LastKill *time.Time `json:"last_kill,omitempty"`

	// ChatID/ThreadID identify the chat whose members track this boss;
	// set by whoever last recorded a kill. ChatID 0 means no channel yet.
	ChatID   int64 `json:"chat_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`

	// KilledBy is a display name for the card footer. Cosmetic.
	KilledBy string `json:"killed_by,omitempty"`

	// ManualSetAt records when a human last manually corrected the kill
	// time. Only the manual-correction path sets it; the reconcile loop
	// never does. Used solely for the anti-duplicate grace window.
	ManualSetAt *time.Time `json:"manual_set_at,omitempty"`

	Reminded bool `json:"reminded,omitempty"`
	Carded   bool `json:"carded,omitempty"`

	// Card references the live spawn card, if any.
	Card *CardRef `json:"card,omitempty"`
}

// Clone returns a deep copy safe to use outside the store lock.
func (r *Record) Clone() Record {
	cp := *r
	if r.LastKill != nil {
		t := *r.LastKill
		cp.LastKill = &t
	}
	if r.ManualSetAt != nil {
		t := *r.ManualSetAt
		cp.ManualSetAt = &t
	}
	if r.Card != nil {
		c := *r.Card
		cp.Card = &c
	}
	return cp
}

// Target returns the chat the boss's notifications go to.
func (r *Record) Target() kit.ChatTarget {
	return kit.ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID}
}

// SafePeriod clamps a period read from storage or user input.
func SafePeriod(minutes int) int {
	if minutes <= 0 {
		return DefaultPeriodMinutes
	}
	return minutes
}
