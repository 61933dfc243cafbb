// Package prefs persists user preferences (voice, speech engine, voice
// consent) in a local SQLite database.
package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Well-known preference keys.
const (
	KeyVoice        = "tts_voice"
	KeyEngine       = "tts_engine"
	KeyVoiceConsent = "voice_consent"
)

// Store is a SQLite-backed key/value preference store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the preference database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the value for key. Missing keys return ok=false, not an error.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts a preference.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes a preference. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key)
	return err
}

// VoiceConsent reports whether the user granted voice interaction consent.
// Absence of the preference means no consent.
func (s *Store) VoiceConsent(ctx context.Context) (bool, error) {
	v, ok, err := s.Get(ctx, KeyVoiceConsent)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// SetVoiceConsent records the consent decision.
func (s *Store) SetVoiceConsent(ctx context.Context, granted bool) error {
	v := "false"
	if granted {
		v = "true"
	}
	return s.Set(ctx, KeyVoiceConsent, v)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
