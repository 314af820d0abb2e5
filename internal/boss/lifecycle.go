package boss

import (
	"context"
	"fmt"
	"sync"
	"time"

	kit "bossbot/internal/transport"
	logx "bossbot/pkg/logx"
)

// Settings are the tracker knobs. They can be swapped at runtime via
// Manager.SetSettings (config hot reload).
type Settings struct {
	// EarlyWarning is how far before the respawn the reminder fires.
	EarlyWarning time.Duration
	// AntiDupGrace: a spawn card created within this window after a manual
	// correction starts suppressed (no confirm button).
	AntiDupGrace time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.EarlyWarning <= 0 {
		s.EarlyWarning = 3 * time.Minute
	}
	if s.AntiDupGrace <= 0 {
		s.AntiDupGrace = 180 * time.Second
	}
	return s
}

// Plan is what one reconcile pass must deliver for one boss.
type Plan struct {
	Reminder  bool
	Card      bool
	CardState CardState
}

// Evaluate decides, for one boss at one instant, whether the early reminder
// and/or the spawn card are due. Pure function; the guard flags on the
// record are the sole at-most-once source of truth.
func Evaluate(r *Record, now time.Time, s Settings) Plan {
	if r == nil || r.LastKill == nil {
		return Plan{}
	}
	s = s.withDefaults()
	period := time.Duration(SafePeriod(r.Period)) * time.Minute
	respawn := r.LastKill.Add(period)
	remind := respawn.Add(-s.EarlyWarning)

	var p Plan
	if !r.Reminded && !now.Before(remind) && now.Before(respawn) {
		p.Reminder = true
	}
	if !r.Carded && !now.Before(respawn) {
		p.Card = true
		p.CardState = CardActive
		if r.ManualSetAt != nil && now.Sub(*r.ManualSetAt) <= s.AntiDupGrace {
			p.CardState = CardSuppressed
		}
	}
	return p
}

// Sink is the delivery boundary the lifecycle manager talks to. The
// transport adapter satisfies it.
type Sink interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
	EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error
}

// Renderer turns lifecycle events into outgoing message payloads. The
// presentation layer (internal/core) implements it; the manager never
// branches on visuals beyond passing the card state through.
type Renderer interface {
	Reminder(name string, rec Record, st Status, s Settings) (string, *kit.SendOptions)
	Card(name string, rec Record, st Status, state CardState, s Settings) (string, *kit.SendOptions)
	Superseded(name string, rec Record, now time.Time) (string, *kit.SendOptions)
}

// Manager owns the notification lifecycle of spawn reminders and cards:
// what to send, at-most-once per cycle, superseding stale cards.
type Manager struct {
	store  *Store
	sink   Sink
	render Renderer
	log    logx.Logger

	mu       sync.Mutex
	settings Settings
}

func NewManager(store *Store, sink Sink, render Renderer, s Settings, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{store: store, sink: sink, render: render, settings: s.withDefaults(), log: log}
}

// SetSettings swaps the tracker knobs (hot reload). Takes effect on the
// next reconcile pass.
func (m *Manager) SetSettings(s Settings) {
	m.mu.Lock()
	m.settings = s.withDefaults()
	m.mu.Unlock()
}

func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Process runs one boss through one reconcile pass: classify, plan,
// deliver, commit. Flags are committed only after a successful send, so a
// failed delivery is retried on the next pass and a successful one never
// repeats within a cycle.
func (m *Manager) Process(ctx context.Context, name string, now time.Time) error {
	rec, ok := m.store.Get(name)
	if !ok || rec.LastKill == nil || rec.ChatID == 0 {
		return nil
	}
	s := m.Settings()
	plan := Evaluate(&rec, now, s)
	if !plan.Reminder && !plan.Card {
		return nil
	}

	cycle := *rec.LastKill
	st := Classify(rec.Period, rec.LastKill, now, s.EarlyWarning)
	to := rec.Target()

	// Reminder strictly before the card; both can only be due in the same
	// pass in a degenerate zero-length window.
	if plan.Reminder {
		text, opt := m.render.Reminder(name, rec, st, s)
		if _, err := m.sink.SendText(ctx, to, text, opt); err != nil {
			return fmt.Errorf("reminder send: %w", err)
		}
		m.store.MarkReminded(ctx, name, cycle)
		m.log.Debug("reminder sent", logx.String("boss", name), logx.Int64("chat_id", to.ChatID))
	}

	if plan.Card {
		text, opt := m.render.Card(name, rec, st, plan.CardState, s)
		ref, err := m.sink.SendText(ctx, to, text, opt)
		if err != nil {
			return fmt.Errorf("card send: %w", err)
		}
		m.store.SetCard(ctx, name, cycle, CardRef{
			ChatID:    ref.ChatID,
			ThreadID:  ref.ThreadID,
			MessageID: ref.MessageID,
			State:     plan.CardState,
		})
		m.log.Debug("spawn card sent",
			logx.String("boss", name),
			logx.Int64("chat_id", to.ChatID),
			logx.String("state", string(plan.CardState)))
	}
	return nil
}

// Supersede deactivates the boss's live spawn card, if any, by editing it
// to its resolved form (the edit drops the inline keyboard). Failure to
// reach the old message (deleted, chat gone) is logged and treated as
// already resolved so two live confirm buttons never overlap.
func (m *Manager) Supersede(ctx context.Context, name string, now time.Time) {
	card := m.store.Card(name)
	if card == nil {
		return
	}
	rec, ok := m.store.Get(name)
	if ok {
		text, opt := m.render.Superseded(name, rec, now)
		if err := m.sink.EditText(ctx, card.Ref(), text, opt); err != nil {
			m.log.Warn("could not deactivate old card",
				logx.String("boss", name),
				logx.Int("message_id", card.MessageID),
				logx.Err(err))
		}
	}
	m.store.ClearCard(ctx, name)
}

// RecordKill is the manual-correction path: supersede the previous card
// first, then record the occurrence with the anti-duplicate stamp.
func (m *Manager) RecordKill(ctx context.Context, name string, to kit.ChatTarget, actor string, at time.Time) Record {
	m.Supersede(ctx, name, at)
	return m.store.RecordKill(ctx, name, to, actor, at, true)
}

// ConfirmKill is the confirm-button path. It performs the same mutation as
// a manual correction except that ManualSetAt is cleared, and it does not
// supersede: the pressed card itself is the live card and the caller edits
// it in place.
func (m *Manager) ConfirmKill(ctx context.Context, name string, to kit.ChatTarget, actor string, at time.Time) Record {
	return m.store.RecordKill(ctx, name, to, actor, at, false)
}
