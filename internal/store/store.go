package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string][]*Subscription
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// A nil logger disables store logging.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{db: db, logger: logger, subs: make(map[string][]*Subscription)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:", nil)
}

func (s *Store) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string][]*Subscription)
	s.mu.Unlock()
	for _, list := range subs {
		for _, sub := range list {
			sub.markClosed()
		}
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS meal_logs (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		meal_name   TEXT NOT NULL,
		calories    INTEGER NOT NULL DEFAULT 0,
		protein     INTEGER NOT NULL DEFAULT 0,
		fat         INTEGER NOT NULL DEFAULT 0,
		carbs       INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		lat         REAL,
		lon         REAL,
		timestamp   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_user_time ON meal_logs(user_id, timestamp DESC);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('daily_goal_kcal', '2000'),
		('analysis_model',  'gemini-2.5-flash'),
		('export_title',    'nutrilog diet log');
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDBPath returns ~/.config/nutrilog/nutrilog.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "nutrilog", "nutrilog.db"), nil
}
