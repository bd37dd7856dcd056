package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/nihongoquest/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the history database selected by cfg and creates its tables
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.DBType {
	case "postgres", "postgresql":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for DB_TYPE=%s", cfg.DBType)
		}
		return Open("postgres", cfg.DatabaseURL)
	case "", "sqlite", "sqlite3":
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return Open("sqlite3", cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}
}

// Open connects with an explicit driver and DSN and initializes the schema
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates the history tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	statements := sqliteSchema
	if db.DriverName() == "postgres" {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

type schemaStatement struct {
	name string
	sql  string
}

var sqliteSchema = []schemaStatement{
	{"play_sessions table", `
		CREATE TABLE IF NOT EXISTS play_sessions (
			id TEXT PRIMARY KEY,
			slot INTEGER NOT NULL,
			player_name TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT 'normal',
			started_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP,
			play_seconds REAL NOT NULL DEFAULT 0
		)
	`},
	{"review_answers table", `
		CREATE TABLE IF NOT EXISTS review_answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT '',
			slot INTEGER NOT NULL,
			script TEXT NOT NULL,
			item_id TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			stage_before TEXT NOT NULL,
			stage_after TEXT NOT NULL,
			answered_at TIMESTAMP NOT NULL
		)
	`},
	{"review_answers index", `
		CREATE INDEX IF NOT EXISTS idx_review_answers_slot
		ON review_answers (slot, answered_at)
	`},
}

var postgresSchema = []schemaStatement{
	{"play_sessions table", `
		CREATE TABLE IF NOT EXISTS play_sessions (
			id TEXT PRIMARY KEY,
			slot INTEGER NOT NULL,
			player_name TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT 'normal',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			play_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
		)
	`},
	{"review_answers table", `
		CREATE TABLE IF NOT EXISTS review_answers (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			slot INTEGER NOT NULL,
			script TEXT NOT NULL,
			item_id TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			stage_before TEXT NOT NULL,
			stage_after TEXT NOT NULL,
			answered_at TIMESTAMPTZ NOT NULL
		)
	`},
	{"review_answers index", `
		CREATE INDEX IF NOT EXISTS idx_review_answers_slot
		ON review_answers (slot, answered_at)
	`},
}
