//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bossbot/internal/boss"
	logx "bossbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadRecords(ctx context.Context) (map[string]*boss.Record, error) {
	out := map[string]*boss.Record{}
	if s == nil || s.db == nil {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, period, last_kill, chat_id, thread_id, killed_by, manual_set_at,
		        reminded, carded, card_chat_id, card_thread_id, card_message_id, card_state
		   FROM bosses`)
	if err != nil {
		s.log.Warn("bosses table unreadable; starting empty", logx.Err(err))
		return out, nil
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, killedBy, cardState   string
			lastKill, manualSetAt       sql.NullString
			period, threadID            int
			chatID                      int64
			reminded, carded            int
			cardChatID                  sql.NullInt64
			cardThreadID, cardMessageID sql.NullInt64
		)
		if err := rows.Scan(&name, &period, &lastKill, &chatID, &threadID, &killedBy, &manualSetAt,
			&reminded, &carded, &cardChatID, &cardThreadID, &cardMessageID, &cardState); err != nil {
			s.log.Warn("skipping unreadable boss row", logx.Err(err))
			continue
		}
		r := &boss.Record{
			Period:   period,
			ChatID:   chatID,
			ThreadID: threadID,
			KilledBy: killedBy,
			Reminded: reminded != 0,
			Carded:   carded != 0,
		}
		r.LastKill = s.parseTime(name, "last_kill", lastKill)
		r.ManualSetAt = s.parseTime(name, "manual_set_at", manualSetAt)
		if cardChatID.Valid && cardMessageID.Valid {
			state := boss.CardState(cardState)
			if state != boss.CardSuppressed {
				state = boss.CardActive
			}
			r.Card = &boss.CardRef{
				ChatID:    cardChatID.Int64,
				ThreadID:  int(cardThreadID.Int64),
				MessageID: int(cardMessageID.Int64),
				State:     state,
			}
		}
		out[name] = r
	}
	return out, rows.Err()
}

func (s *sqliteStore) parseTime(name, field string, raw sql.NullString) *time.Time {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, raw.String)
	if err != nil {
		s.log.Warn("dropping unparseable timestamp",
			logx.String("boss", name),
			logx.String("field", field),
			logx.String("value", raw.String))
		return nil
	}
	return &t
}

func (s *sqliteStore) SaveRecords(ctx context.Context, recs map[string]*boss.Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bosses`); err != nil {
		return err
	}
	for name, r := range recs {
		var lastKill, manualSetAt any
		if r.LastKill != nil {
			lastKill = r.LastKill.Format(timeFormat)
		}
		if r.ManualSetAt != nil {
			manualSetAt = r.ManualSetAt.Format(timeFormat)
		}
		var cardChatID, cardThreadID, cardMessageID any
		cardState := ""
		if r.Card != nil {
			cardChatID = r.Card.ChatID
			cardThreadID = r.Card.ThreadID
			cardMessageID = r.Card.MessageID
			cardState = string(r.Card.State)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bosses(name, period, last_kill, chat_id, thread_id, killed_by, manual_set_at,
			                    reminded, carded, card_chat_id, card_thread_id, card_message_id, card_state)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			name, r.Period, lastKill, r.ChatID, r.ThreadID, r.KilledBy, manualSetAt,
			boolInt(r.Reminded), boolInt(r.Carded), cardChatID, cardThreadID, cardMessageID, cardState,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, chat_id, action, boss, detail) VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Actor, e.ChatID, e.Action, e.Boss, e.Detail,
	)
	return err
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
