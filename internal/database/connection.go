package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// Connect opens the database of the given type ("sqlite" or "postgres") and
// makes sure the schema exists
func Connect(dbType, dsn string) (*sqlx.DB, error) {
	driver := "sqlite3"
	if dbType == "postgres" {
		driver = "postgres"
	}

	if driver == "sqlite3" && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	log.WithFields(log.Fields{"driver": driver}).Info("database connected")
	return db, nil
}

// InitializeSchema creates the tables if they don't exist
func InitializeSchema(db *sqlx.DB) error {
	autoID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		autoID = "SERIAL PRIMARY KEY"
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"courses", `
			CREATE TABLE IF NOT EXISTS courses (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				language TEXT NOT NULL DEFAULT '',
				level TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				instructor TEXT NOT NULL DEFAULT '',
				thumbnail TEXT NOT NULL DEFAULT '',
				total_lessons INTEGER NOT NULL DEFAULT 0
			)`},
		{"lessons", `
			CREATE TABLE IF NOT EXISTS lessons (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				video_url TEXT NOT NULL DEFAULT '',
				duration INTEGER NOT NULL DEFAULT 0,
				position INTEGER NOT NULL DEFAULT 0,
				size_bytes BIGINT NOT NULL DEFAULT 0,
				completed BOOLEAN NOT NULL DEFAULT false
			)`},
		{"quizzes", `
			CREATE TABLE IF NOT EXISTS quizzes (
				id TEXT PRIMARY KEY,
				lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
				course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				passing_score INTEGER NOT NULL DEFAULT 70,
				xp_reward INTEGER NOT NULL DEFAULT 0,
				questions TEXT NOT NULL DEFAULT '[]'
			)`},
		{"flashcards", `
			CREATE TABLE IF NOT EXISTS flashcards (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
				front TEXT NOT NULL,
				back TEXT NOT NULL,
				pronunciation TEXT NOT NULL DEFAULT '',
				example TEXT NOT NULL DEFAULT '',
				difficulty INTEGER NOT NULL DEFAULT 0,
				last_reviewed TIMESTAMP NULL
			)`},
		{"speaking_exercises", `
			CREATE TABLE IF NOT EXISTS speaking_exercises (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL,
				difficulty TEXT NOT NULL DEFAULT 'beginner',
				duration TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT 'english',
				native_audio TEXT NOT NULL DEFAULT ''
			)`},
		{"kv_store", `
			CREATE TABLE IF NOT EXISTS kv_store (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"progress_snapshots", `
			CREATE TABLE IF NOT EXISTS progress_snapshots (
				user_id TEXT PRIMARY KEY,
				data TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`},
		{"learners", `
			CREATE TABLE IF NOT EXISTS learners (
				user_id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				avatar TEXT NOT NULL DEFAULT '',
				country TEXT NOT NULL DEFAULT '',
				base_weekly_xp INTEGER NOT NULL DEFAULT 0,
				base_total_xp INTEGER NOT NULL DEFAULT 0
			)`},
		{"xp_events", `
			CREATE TABLE IF NOT EXISTS xp_events (
				id ` + autoID + `,
				user_id TEXT NOT NULL,
				amount INTEGER NOT NULL,
				source TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_xp_events_user_time ON xp_events (user_id, created_at)`); err != nil {
		return fmt.Errorf("failed to create xp_events index: %w", err)
	}
	return nil
}
