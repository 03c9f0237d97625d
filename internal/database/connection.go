package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/example/scry/internal/config"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect opens the configured database, applies the schema and stores the
// connection in DB
func Connect(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Type {
	case "postgres":
		db, err = Open("postgres", cfg.Connection)
	default:
		path := cfg.Path
		if path == "" {
			path = filepath.Join("data", "scry.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = Open("sqlite3", path)
	}
	if err != nil {
		return nil, err
	}

	DB = db
	return db, nil
}

// Open connects with the given driver and migrates the schema.
// SQLite gets a single connection since it has one writer anyway.
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the global connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// Migrate creates the tables if they don't exist
func Migrate(db *sqlx.DB) error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		pk = "BIGSERIAL PRIMARY KEY"
	}

	statements := []struct {
		name  string
		query string
	}{
		{"questions", `
			CREATE TABLE IF NOT EXISTS questions (
				id ` + pk + `,
				user_id BIGINT NOT NULL,
				concept_id TEXT NOT NULL DEFAULT '',
				phrasing_id TEXT NOT NULL DEFAULT '',
				topic TEXT NOT NULL DEFAULT '',
				prompt TEXT NOT NULL,
				options TEXT NOT NULL DEFAULT '[]',
				correct_answer TEXT NOT NULL,
				explanation TEXT NOT NULL DEFAULT '',
				deleted_at TIMESTAMP NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`},
		{"interactions", `
			CREATE TABLE IF NOT EXISTS interactions (
				id ` + pk + `,
				user_id BIGINT NOT NULL,
				question_id BIGINT NOT NULL REFERENCES questions(id),
				answer TEXT NOT NULL,
				is_correct BOOLEAN NOT NULL,
				time_spent_ms BIGINT NOT NULL DEFAULT 0,
				session_id TEXT NOT NULL DEFAULT '',
				attempted_at TIMESTAMP NOT NULL
			)`},
		{"question_progress", `
			CREATE TABLE IF NOT EXISTS question_progress (
				id ` + pk + `,
				user_id BIGINT NOT NULL,
				question_id BIGINT NOT NULL REFERENCES questions(id),
				stage TEXT NOT NULL DEFAULT 'new',
				interval_days INTEGER NOT NULL DEFAULT 0,
				easiness_factor REAL NOT NULL DEFAULT 2.5,
				repetitions INTEGER NOT NULL DEFAULT 0,
				lapses INTEGER NOT NULL DEFAULT 0,
				last_quality INTEGER NOT NULL DEFAULT 3,
				consecutive_right INTEGER NOT NULL DEFAULT 0,
				last_review_date TIMESTAMP NULL,
				next_review_date TIMESTAMP NOT NULL,
				UNIQUE(user_id, question_id)
			)`},
		{"idx_questions_user", `CREATE INDEX IF NOT EXISTS idx_questions_user ON questions(user_id)`},
		{"idx_interactions_question", `CREATE INDEX IF NOT EXISTS idx_interactions_question ON interactions(user_id, question_id)`},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}
