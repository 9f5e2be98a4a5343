package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open creates and opens the SQLite database at path and runs migrations
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open with DSN options for SQLite pragmas
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// RunMigrations creates all necessary tables
func RunMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		cv_score INTEGER DEFAULT 75,
		quiz_score INTEGER DEFAULT 70,
		created_at DATETIME,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS applications (
		job_id INTEGER PRIMARY KEY,
		cv_score INTEGER NOT NULL DEFAULT 0,
		has_profile_photo BOOLEAN DEFAULT 0,
		qualified BOOLEAN DEFAULT 0,
		degraded BOOLEAN DEFAULT 0,
		quiz_score INTEGER,
		quiz_completed BOOLEAN DEFAULT 0,
		quiz_passed BOOLEAN DEFAULT 0,
		answers TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_title ON jobs(title);
	CREATE INDEX IF NOT EXISTS idx_applications_updated ON applications(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}
