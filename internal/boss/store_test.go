package boss

import (
	"context"
	"errors"
	"testing"
	"time"

	kit "bossbot/internal/transport"
	logx "bossbot/pkg/logx"
)

var testChat = kit.ChatTarget{ChatID: -100123, ThreadID: 7}

func TestGetOrCreateIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, map[string]int{"Chronos": 90}, 120, logx.Nop())

	r := s.GetOrCreate(ctx, "  Chronos ", 0)
	if r.Period != 90 {
		t.Fatalf("catalog period not applied: got %d", r.Period)
	}

	s.RecordKill(ctx, "Chronos", testChat, "alice", time.Now(), true)
	r = s.GetOrCreate(ctx, "Chronos", 45)
	if r.LastKill == nil {
		t.Fatal("existing record was reset by GetOrCreate")
	}
	if r.Period != 90 {
		t.Fatalf("existing period changed: got %d", r.Period)
	}
	if s.Count() != 1 {
		t.Fatalf("Count = %d, want 1", s.Count())
	}
}

func TestGetOrCreatePeriodResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, map[string]int{"Catalogued": 90}, 120, logx.Nop())

	if r := s.GetOrCreate(ctx, "Hinted", 45); r.Period != 45 {
		t.Fatalf("hint ignored: got %d", r.Period)
	}
	if r := s.GetOrCreate(ctx, "Catalogued", 0); r.Period != 90 {
		t.Fatalf("catalog ignored: got %d", r.Period)
	}
	if r := s.GetOrCreate(ctx, "Unknown", 0); r.Period != 120 {
		t.Fatalf("default ignored: got %d", r.Period)
	}
}

func TestRecordKillResetsCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	first := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.RecordKill(ctx, "Hydra", testChat, "alice", first, false)
	if ok := s.MarkReminded(ctx, "Hydra", first); !ok {
		t.Fatal("MarkReminded refused the current cycle")
	}
	if ok := s.SetCard(ctx, "Hydra", first, CardRef{ChatID: testChat.ChatID, MessageID: 42}); !ok {
		t.Fatal("SetCard refused the current cycle")
	}

	second := first.Add(2 * time.Hour)
	r := s.RecordKill(ctx, "Hydra", testChat, "bob", second, true)
	if r.Reminded || r.Carded || r.Card != nil {
		t.Fatalf("new cycle did not reset flags: %+v", r)
	}
	if r.ManualSetAt == nil {
		t.Fatal("manual kill did not stamp ManualSetAt")
	}
	if r.KilledBy != "bob" {
		t.Fatalf("KilledBy = %q", r.KilledBy)
	}
	if !r.LastKill.Equal(second) {
		t.Fatalf("LastKill = %v, want %v", r.LastKill, second)
	}

	// Confirm-path kill clears the stamp again.
	r = s.RecordKill(ctx, "Hydra", testChat, "carol", second.Add(time.Hour), false)
	if r.ManualSetAt != nil {
		t.Fatal("confirm kill left ManualSetAt set")
	}
}

func TestRecordKillTruncatesToSecond(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	at := time.Date(2026, 3, 10, 12, 0, 0, 999_999_999, time.UTC)
	r := s.RecordKill(ctx, "Hydra", testChat, "alice", at, false)
	if r.LastKill.Nanosecond() != 0 {
		t.Fatalf("LastKill not truncated: %v", r.LastKill)
	}
}

// Flag commits carry the cycle they were computed for. If a new kill lands
// between snapshot and commit, the commit must not mark the new cycle.
func TestCycleGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	first := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.RecordKill(ctx, "Hydra", testChat, "alice", first, false)

	second := first.Add(90 * time.Minute)
	s.RecordKill(ctx, "Hydra", testChat, "bob", second, true)

	if s.MarkReminded(ctx, "Hydra", first) {
		t.Fatal("MarkReminded accepted a stale cycle")
	}
	if s.SetCard(ctx, "Hydra", first, CardRef{MessageID: 42}) {
		t.Fatal("SetCard accepted a stale cycle")
	}
	r, _ := s.Get("Hydra")
	if r.Reminded || r.Carded {
		t.Fatalf("stale commit leaked into the new cycle: %+v", r)
	}
}

func TestClearAllPreservesPeriods(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	s.SetPeriod(ctx, "Hydra", 45)
	s.RecordKill(ctx, "Hydra", testChat, "alice", time.Now(), true)
	s.SetPeriod(ctx, "Chronos", 90)

	if n := s.ClearAll(ctx); n != 2 {
		t.Fatalf("ClearAll = %d, want 2", n)
	}
	r, ok := s.Get("Hydra")
	if !ok {
		t.Fatal("record deleted by ClearAll")
	}
	if r.LastKill != nil || r.ManualSetAt != nil || r.Reminded || r.Carded || r.Card != nil {
		t.Fatalf("record not reset: %+v", r)
	}
	if r.Period != 45 {
		t.Fatalf("period lost: got %d", r.Period)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	s.SetPeriod(ctx, "Hydra", 45)
	if !s.Delete(ctx, "Hydra") {
		t.Fatal("Delete returned false for existing record")
	}
	if s.Delete(ctx, "Hydra") {
		t.Fatal("Delete returned true for missing record")
	}
	if _, ok := s.Get("Hydra"); ok {
		t.Fatal("record still present after Delete")
	}
}

func TestCardLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore(nil, nil, 120, logx.Nop())

	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.RecordKill(ctx, "Hydra", testChat, "alice", kill, false)
	s.SetCard(ctx, "Hydra", kill, CardRef{ChatID: testChat.ChatID, ThreadID: 7, MessageID: 42, State: CardActive})

	card := s.Card("Hydra")
	if card == nil || card.MessageID != 42 {
		t.Fatalf("Card = %+v", card)
	}
	ref := card.Ref()
	if ref.ChatID != testChat.ChatID || ref.ThreadID != 7 || ref.MessageID != 42 {
		t.Fatalf("Ref = %+v", ref)
	}

	s.ClearCard(ctx, "Hydra")
	if s.Card("Hydra") != nil {
		t.Fatal("card survived ClearCard")
	}
	r, _ := s.Get("Hydra")
	if !r.Carded {
		t.Fatal("ClearCard must not reset the carded flag")
	}
}

// persister fake capturing the last saved mapping.
type memPersister struct {
	recs    map[string]*Record
	loadErr error
	saves   int
}

func (p *memPersister) LoadRecords(context.Context) (map[string]*Record, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return p.recs, nil
}

func (p *memPersister) SaveRecords(_ context.Context, recs map[string]*Record) error {
	p.recs = recs
	p.saves++
	return nil
}

func TestStorePersistRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := &memPersister{}

	s := NewStore(p, nil, 120, logx.Nop())
	kill := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.RecordKill(ctx, "Hydra", testChat, "alice", kill, true)
	if p.saves == 0 {
		t.Fatal("mutation did not persist")
	}

	s2 := NewStore(p, nil, 120, logx.Nop())
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, ok := s2.Get("Hydra")
	if !ok {
		t.Fatal("record lost across reload")
	}
	if !r.LastKill.Equal(kill) || r.KilledBy != "alice" || r.ChatID != testChat.ChatID {
		t.Fatalf("reloaded record mismatch: %+v", r)
	}
}

func TestStoreLoadErrorPropagates(t *testing.T) {
	t.Parallel()
	p := &memPersister{loadErr: errors.New("disk gone")}
	s := NewStore(p, nil, 120, logx.Nop())
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
}
