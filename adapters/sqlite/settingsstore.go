package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/ports"
)

var (
	_ ports.SettingsStore = (*SettingsStore)(nil)
	_ ports.Source        = (*Source)(nil)
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("setting not found")

// SettingsStore implements ports.SettingsStore using SQLite.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get retrieves a single setting by key.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var encrypted bool

	err := s.db.QueryRowContext(ctx,
		`SELECT value, encrypted FROM settings WHERE key = ?`,
		key,
	).Scan(&value, &encrypted)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, ErrNotFound
		}
		return "", false, err
	}
	return value, encrypted, nil
}

// GetAll retrieves all settings as a flat map.
func (s *SettingsStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// EncryptedKeys lists keys stored with the encrypted marker.
func (s *SettingsStore) EncryptedKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM settings WHERE encrypted = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Set stores a setting, replacing any previous value.
func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, encrypted, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   encrypted = excluded.encrypted,
		   updated_at = excluded.updated_at`,
		key, value, encrypted, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Delete removes a key.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// Source adapts the store to ports.Source: dotted keys fold into nested
// namespaces.
type Source struct {
	store *SettingsStore
	name  string
}

// NewSource creates a configuration source backed by the store. The name
// labels the source in logs and metrics.
func NewSource(store *SettingsStore, name string) *Source {
	return &Source{store: store, name: name}
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "sqlite:" + s.name }

// Load reads all settings and folds them into an ordered mapping.
func (s *Source) Load(ctx context.Context) (*tree.Map, error) {
	flat, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Unflatten(flat), nil
}
