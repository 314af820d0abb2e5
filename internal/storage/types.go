package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (JSON snapshot + audit jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty, "file" is used. "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action against a boss record.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor,omitempty"`
	ChatID int64     `json:"chat_id,omitempty"`
	Action string    `json:"action"`
	Boss   string    `json:"boss,omitempty"`
	Detail string    `json:"detail,omitempty"`
}
