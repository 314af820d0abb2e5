package boss

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	kit "bossbot/internal/transport"
	logx "bossbot/pkg/logx"
)

// Persister loads and saves the full record mapping. internal/storage
// implements it; a nil Persister makes the store memory-only.
type Persister interface {
	LoadRecords(ctx context.Context) (map[string]*Record, error)
	SaveRecords(ctx context.Context, recs map[string]*Record) error
}

// Store owns the name -> Record mapping.
//
// All read-modify-write sequences are serialized behind a single mutex;
// with tens of bosses and one pass per minute that is plenty. Mutators
// never hold the lock across external calls: they return deep copies and
// commits re-acquire the lock.
type Store struct {
	mu      sync.Mutex
	recs    map[string]*Record
	persist Persister

	catalog       map[string]int
	defaultPeriod int

	log logx.Logger
}

func NewStore(p Persister, catalog map[string]int, defaultPeriod int, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	if defaultPeriod <= 0 {
		defaultPeriod = DefaultPeriodMinutes
	}
	return &Store{
		recs:          map[string]*Record{},
		persist:       p,
		catalog:       cloneCatalog(catalog),
		defaultPeriod: defaultPeriod,
		log:           log,
	}
}

// SetCatalog swaps the default-period catalog (hot reload). Existing
// records are not touched; the catalog only matters at first reference.
func (s *Store) SetCatalog(catalog map[string]int, defaultPeriod int) {
	s.mu.Lock()
	s.catalog = cloneCatalog(catalog)
	if defaultPeriod > 0 {
		s.defaultPeriod = defaultPeriod
	}
	s.mu.Unlock()
}

// Load restores the mapping from storage. A missing or unreadable snapshot
// is not fatal: the persister returns an empty mapping and the store starts
// fresh.
func (s *Store) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	recs, err := s.persist.LoadRecords(ctx)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = map[string]*Record{}
	}
	for _, r := range recs {
		r.Period = SafePeriod(r.Period)
	}
	s.mu.Lock()
	s.recs = recs
	n := len(recs)
	s.mu.Unlock()
	s.log.Info("records loaded", logx.Int("count", n))
	return nil
}

// saveLocked persists the mapping. Called with s.mu held. Save failures are
// logged, never propagated: losing one snapshot write must not break a
// command or a reconcile pass.
func (s *Store) saveLocked(ctx context.Context) {
	if s.persist == nil {
		return
	}
	cp := make(map[string]*Record, len(s.recs))
	for k, v := range s.recs {
		c := v.Clone()
		cp[k] = &c
	}
	if err := s.persist.SaveRecords(ctx, cp); err != nil {
		s.log.Warn("records save failed", logx.Err(err))
	}
}

// GetOrCreate looks up by trimmed name, creating the record on first
// reference. Idempotent: an existing record is returned as-is, fields
// untouched. Period resolution for new records: hint > catalog > default.
func (s *Store) GetOrCreate(ctx context.Context, name string, periodHint int) Record {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recs[key]; ok {
		return r.Clone()
	}
	period := periodHint
	if period <= 0 {
		period = s.catalog[key]
	}
	if period <= 0 {
		period = s.defaultPeriod
	}
	r := &Record{Period: period}
	s.recs[key] = r
	s.saveLocked(ctx)
	return r.Clone()
}

// Get returns a snapshot of the record, if present.
func (s *Store) Get(name string) (Record, bool) {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Names returns a sorted snapshot of the key set. The reconcile pass
// iterates this snapshot so concurrent mutation cannot invalidate it.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.recs))
	for k := range s.recs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// All returns a snapshot of every record.
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record, len(s.recs))
	for k, v := range s.recs {
		out[k] = v.Clone()
	}
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

// RecordKill records an occurrence at the given time, starting a new cycle:
// both notification flags reset and any card reference is dropped. manual
// marks human corrections and stamps ManualSetAt for the anti-duplicate
// grace window; the confirm-button path passes manual=false, which clears
// ManualSetAt instead.
func (s *Store) RecordKill(ctx context.Context, name string, to kit.ChatTarget, actor string, at time.Time, manual bool) Record {
	key := strings.TrimSpace(name)
	at = at.Truncate(time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(key, 0)
	kill := at
	r.LastKill = &kill
	r.ChatID = to.ChatID
	r.ThreadID = to.ThreadID
	r.KilledBy = actor
	r.Reminded = false
	r.Carded = false
	r.Card = nil
	if manual {
		now := time.Now().Truncate(time.Second)
		r.ManualSetAt = &now
	} else {
		r.ManualSetAt = nil
	}
	s.saveLocked(ctx)
	return r.Clone()
}

// SetPeriod updates (or creates with) the respawn period in minutes.
// Callers validate minutes > 0 at the command boundary.
func (s *Store) SetPeriod(ctx context.Context, name string, minutes int) Record {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(key, minutes)
	r.Period = SafePeriod(minutes)
	s.saveLocked(ctx)
	return r.Clone()
}

// Delete removes the record entirely.
func (s *Store) Delete(ctx context.Context, name string) bool {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[key]; !ok {
		return false
	}
	delete(s.recs, key)
	s.saveLocked(ctx)
	return true
}

// ClearAll resets every record to the never-observed state, preserving
// periods. Returns the number of records touched.
func (s *Store) ClearAll(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.recs {
		r.LastKill = nil
		r.ManualSetAt = nil
		r.Reminded = false
		r.Carded = false
		r.Card = nil
	}
	s.saveLocked(ctx)
	return len(s.recs)
}

// MarkReminded flips the reminder flag for the cycle identified by its kill
// time. If the cycle changed since the caller snapshotted the record (a kill
// was recorded mid-delivery), the flag is left alone: the new cycle gets its
// own reminder.
func (s *Store) MarkReminded(ctx context.Context, name string, cycle time.Time) bool {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok || r.LastKill == nil || !r.LastKill.Equal(cycle) {
		return false
	}
	r.Reminded = true
	s.saveLocked(ctx)
	return true
}

// SetCard marks the spawn card sent for the given cycle and stores its
// reference for later supersede. Same cycle guard as MarkReminded.
func (s *Store) SetCard(ctx context.Context, name string, cycle time.Time, card CardRef) bool {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok || r.LastKill == nil || !r.LastKill.Equal(cycle) {
		return false
	}
	r.Carded = true
	r.Card = &card
	s.saveLocked(ctx)
	return true
}

// Card returns a copy of the live card reference, if any.
func (s *Store) Card(name string) *CardRef {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok || r.Card == nil {
		return nil
	}
	c := *r.Card
	return &c
}

// ClearCard drops the card reference (after a supersede attempt).
func (s *Store) ClearCard(ctx context.Context, name string) {
	key := strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok || r.Card == nil {
		return
	}
	r.Card = nil
	s.saveLocked(ctx)
}

func (s *Store) ensureLocked(key string, periodHint int) *Record {
	if r, ok := s.recs[key]; ok {
		return r
	}
	period := periodHint
	if period <= 0 {
		period = s.catalog[key]
	}
	if period <= 0 {
		period = s.defaultPeriod
	}
	r := &Record{Period: period}
	s.recs[key] = r
	return r
}

func cloneCatalog(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[strings.TrimSpace(k)] = v
	}
	return out
}
