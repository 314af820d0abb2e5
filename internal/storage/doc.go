// Package storage persists the boss record snapshot and the kill audit log.
//
// It currently supports:
//   - A human-inspectable JSON snapshot + JSONL audit ("file" driver)
//   - An optional SQLite database ("sqlite" driver, build tag)
package storage
