package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  owner_user_ids: [42, 43]
  poll_timeout: "15s"
logging:
  level: "debug"
  console: true
tracker:
  early_warning: "5m"
  anti_dup_grace: "120s"
  default_period_minutes: 90
  catalog:
    Hydra: 60
    Chronos: 240
storage:
  driver: "file"
  path: "./data/store"
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Tracker.DefaultPeriodMinutes != 90 {
		t.Fatalf("default period = %d", cfg.Tracker.DefaultPeriodMinutes)
	}
	if cfg.Tracker.Catalog["Chronos"] != 240 {
		t.Fatalf("catalog = %v", cfg.Tracker.Catalog)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc", "owner_user_ids": [42]},
  "logging": {"level": "info", "console": true},
  "tracker": {"check_interval": "30s"}
}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.CheckInterval != "30s" {
		t.Fatalf("check_interval = %q", cfg.Tracker.CheckInterval)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  totally_unknown: true
`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "a"}} {"more": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationField("tracker.early_warning", "5m")
	if err != nil || d != 5*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("tracker.early_warning", "soon"); err == nil {
		t.Fatal("expected error for bad duration")
	}

	d, err = ParseDurationOrDefault("tracker.check_interval", "", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("empty default: %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("tracker.check_interval", "90s", time.Minute)
	if err != nil || d != 90*time.Second {
		t.Fatalf("explicit value: %v, %v", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "a"}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	sub := m.Subscribe(1)
	next := &Config{}
	m.Commit(next)
	m.publish(next)

	select {
	case got := <-sub:
		if got != next {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("nothing delivered to subscriber")
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
}
