package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Wrap uses an already opened connection as is, without migrating it.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		timestamp REAL NOT NULL,
		track_id TEXT NOT NULL,
		x1 REAL DEFAULT 0,
		y1 REAL DEFAULT 0,
		x2 REAL DEFAULT 0,
		y2 REAL DEFAULT 0,
		confidence REAL DEFAULT 0,
		class_id INTEGER DEFAULT 0,
		source_info TEXT NOT NULL DEFAULT '',
		received_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_track_id ON alerts(track_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
