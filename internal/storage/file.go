package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bossbot/internal/boss"
	logx "bossbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.records.json (full snapshot, pretty-printed, atomic replace)
//   - <prefix>.audit.jsonl  (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	recordsPath string
	auditFile   *os.File
}

const timeFormat = time.RFC3339

// fileRecord is the wire form of a boss record. Timestamps are strings so a
// single corrupt field can be dropped without rejecting the whole entry.
type fileRecord struct {
	Period      int       `json:"period"`
	LastKill    string    `json:"last_kill,omitempty"`
	ChatID      int64     `json:"chat_id,omitempty"`
	ThreadID    int       `json:"thread_id,omitempty"`
	KilledBy    string    `json:"killed_by,omitempty"`
	ManualSetAt string    `json:"manual_set_at,omitempty"`
	Reminded    bool      `json:"reminded,omitempty"`
	Carded      bool      `json:"carded,omitempty"`
	Card        *fileCard `json:"card,omitempty"`
}

type fileCard struct {
	ChatID    int64  `json:"chat_id"`
	ThreadID  int    `json:"thread_id,omitempty"`
	MessageID int    `json:"message_id"`
	State     string `json:"state,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:         log,
		recordsPath: prefix + ".records.json",
		auditFile:   af,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile != nil {
		err := s.auditFile.Close()
		s.auditFile = nil
		return err
	}
	return nil
}

// LoadRecords reads the snapshot. A missing file means first run (empty
// store); an unreadable file is logged and yields an empty store; an entry
// with an unparseable timestamp keeps the entry and drops just that field.
// None of these is an error: startup must survive a bad snapshot.
func (s *fileStore) LoadRecords(ctx context.Context) (map[string]*boss.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]*boss.Record{}
	b, err := os.ReadFile(s.recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("no records snapshot yet; starting empty", logx.String("path", s.recordsPath))
			return out, nil
		}
		s.log.Warn("records snapshot unreadable; starting empty", logx.String("path", s.recordsPath), logx.Err(err))
		return out, nil
	}

	var raw map[string]fileRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		s.log.Warn("records snapshot corrupt; starting empty", logx.String("path", s.recordsPath), logx.Err(err))
		return out, nil
	}

	for name, fr := range raw {
		r := &boss.Record{
			Period:   fr.Period,
			ChatID:   fr.ChatID,
			ThreadID: fr.ThreadID,
			KilledBy: fr.KilledBy,
			Reminded: fr.Reminded,
			Carded:   fr.Carded,
		}
		r.LastKill = s.parseTime(name, "last_kill", fr.LastKill)
		r.ManualSetAt = s.parseTime(name, "manual_set_at", fr.ManualSetAt)
		if fr.Card != nil {
			state := boss.CardState(fr.Card.State)
			if state != boss.CardSuppressed {
				state = boss.CardActive
			}
			r.Card = &boss.CardRef{
				ChatID:    fr.Card.ChatID,
				ThreadID:  fr.Card.ThreadID,
				MessageID: fr.Card.MessageID,
				State:     state,
			}
		}
		out[name] = r
	}
	return out, nil
}

func (s *fileStore) parseTime(name, field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		s.log.Warn("dropping unparseable timestamp",
			logx.String("boss", name),
			logx.String("field", field),
			logx.String("value", raw))
		return nil
	}
	return &t
}

// SaveRecords writes the full snapshot atomically (tmp + rename).
func (s *fileStore) SaveRecords(ctx context.Context, recs map[string]*boss.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]fileRecord, len(recs))
	for name, r := range recs {
		fr := fileRecord{
			Period:   r.Period,
			ChatID:   r.ChatID,
			ThreadID: r.ThreadID,
			KilledBy: r.KilledBy,
			Reminded: r.Reminded,
			Carded:   r.Carded,
		}
		if r.LastKill != nil {
			fr.LastKill = r.LastKill.Format(timeFormat)
		}
		if r.ManualSetAt != nil {
			fr.ManualSetAt = r.ManualSetAt.Format(timeFormat)
		}
		if r.Card != nil {
			fr.Card = &fileCard{
				ChatID:    r.Card.ChatID,
				ThreadID:  r.Card.ThreadID,
				MessageID: r.Card.MessageID,
				State:     string(r.Card.State),
			}
		}
		raw[name] = fr
	}

	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.recordsPath + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.recordsPath)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}
