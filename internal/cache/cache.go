// Package cache provides a read-through TTL cache over the mail gateway,
// persisted in a local SQLite database so a restarted client starts warm.
// List and search responses live for a short window, message bodies for a
// longer one; any mutation purges the affected entries.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// Store is the persisted cache backing. Values are stored as JSON with a
// unix-second expiry.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore opens (or creates) the cache database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get loads the entry for key into dest. The second return is false when
// the key is missing or past its expiry; expired rows are deleted on
// sight.
func (s *Store) Get(key string, dest interface{}) (bool, error) {
	var row struct {
		Value     string `db:"value"`
		ExpiresAt int64  `db:"expires_at"`
	}
	err := s.db.Get(&row, "SELECT value, expires_at FROM cache_entries WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cache entry %q: %w", key, err)
	}

	if s.now().Unix() >= row.ExpiresAt {
		s.db.Exec("DELETE FROM cache_entries WHERE key = ?", key)
		return false, nil
	}

	if err := json.Unmarshal([]byte(row.Value), dest); err != nil {
		return false, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with the given TTL, replacing any previous
// entry.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %q: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(data), s.now().Add(ttl).Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *Store) DeleteByPrefix(prefix string) error {
	_, err := s.db.Exec(
		"DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\\'",
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return fmt.Errorf("purging cache prefix %q: %w", prefix, err)
	}
	return nil
}

// Purge removes all entries.
func (s *Store) Purge() error {
	if _, err := s.db.Exec("DELETE FROM cache_entries"); err != nil {
		return fmt.Errorf("purging cache: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so a prefix match stays literal.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
