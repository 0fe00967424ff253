// Package cache is the local persistent tier: a sqlite-backed key-value
// store holding the last-known-good copy of every record. All operations are
// synchronous; there is no expiration or invalidation policy.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veo1flow-25/teman-cors/internal/model"
)

// MaxLogEntries caps the local audit mirror.
const MaxLogEntries = 50

type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path. Use ":memory:" in
// tests. WAL and a busy timeout keep concurrent readers from tripping over
// the single writer.
func Open(path string) (*Cache, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the raw value stored under key, or ok=false when absent.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var value string
	err := c.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

// Put upserts key. Writing the same key twice is last-value-wins.
func (c *Cache) Put(key string, value []byte) error {
	_, err := c.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, string(value))
	return err
}

func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

// GetJSON unmarshals the value under key into out. Absent keys leave out
// untouched and return ok=false.
func (c *Cache) GetJSON(key string, out interface{}) (bool, error) {
	raw, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache key %s holds invalid JSON: %w", key, err)
	}
	return true, nil
}

// PutJSON marshals value and upserts it under key.
func (c *Cache) PutJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Put(key, raw)
}

// Users returns the mock user directory. Empty when never written.
func (c *Cache) Users() ([]model.UserProfile, error) {
	var users []model.UserProfile
	if _, err := c.GetJSON(model.KeyMockUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Cache) SaveUsers(users []model.UserProfile) error {
	return c.PutJSON(model.KeyMockUsers, users)
}

// Logs returns the local audit mirror, newest first.
func (c *Cache) Logs() ([]model.AuditLogEntry, error) {
	var logs []model.AuditLogEntry
	if _, err := c.GetJSON(model.KeyMockLogs, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// PushLog prepends entry to the local audit mirror and trims it to
// MaxLogEntries.
func (c *Cache) PushLog(entry model.AuditLogEntry) error {
	logs, err := c.Logs()
	if err != nil {
		return err
	}
	logs = append([]model.AuditLogEntry{entry}, logs...)
	if len(logs) > MaxLogEntries {
		logs = logs[:MaxLogEntries]
	}
	return c.PutJSON(model.KeyMockLogs, logs)
}
