package config

// Config is the full bot configuration.
//
// Files may be JSON or YAML; YAML is coerced to JSON and decoded strictly,
// so unknown keys are rejected in both formats.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Tracker  TrackerConfig  `json:"tracker"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound sends. 0 uses the adapter default.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TrackerConfig controls the respawn tracker.
//
// All durations are Go duration strings (e.g. "90s", "3m").
//
// Defaults (when fields are omitted/zero):
//   - early_warning: "3m"
//   - anti_dup_grace: "180s"
//   - check_interval: "60s"
//   - default_period_minutes: 120
type TrackerConfig struct {
	EarlyWarning string `json:"early_warning,omitempty"`
	AntiDupGrace string `json:"anti_dup_grace,omitempty"`

	// CheckInterval is the reconcile pass cadence. Changing it requires a
	// restart; the other tracker fields apply on hot reload.
	CheckInterval string `json:"check_interval,omitempty"`

	DefaultPeriodMinutes int `json:"default_period_minutes,omitempty"`

	// Catalog maps boss name -> respawn period in minutes. It is used only
	// when a boss is first referenced; existing records keep their period.
	Catalog map[string]int `json:"catalog,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "file" (default): JSON snapshot + JSONL audit log
//   - "sqlite": SQLite database file (build with -tags sqlite)
//   - "none": in-memory only (state is lost on restart)
//
// Example:
//
//	"storage": { "driver": "file", "path": "./bossbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
