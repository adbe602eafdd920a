package store

import (
	"fmt"
	"strings"
)

// dialect holds the type spellings that differ between backends.
type dialect struct {
	text      string // unbounded text
	shortText string // indexable text (mysql needs a length for keys)
	boolean   string
	timestamp string
}

func dialectFor(driver string) dialect {
	switch driver {
	case "pgx":
		return dialect{text: "TEXT", shortText: "TEXT", boolean: "BOOLEAN", timestamp: "TIMESTAMPTZ"}
	case "mysql":
		return dialect{text: "TEXT", shortText: "VARCHAR(255)", boolean: "BOOLEAN", timestamp: "DATETIME"}
	default: // sqlite
		return dialect{text: "TEXT", shortText: "TEXT", boolean: "BOOLEAN", timestamp: "DATETIME"}
	}
}

func (s *Store) migrate() error {
	d := dialectFor(s.driver)

	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %[2]s PRIMARY KEY,
			tier INTEGER NOT NULL DEFAULT 0,
			banned %[3]s NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`, d.text, d.shortText, d.boolean, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS api_keys (
			id %[2]s PRIMARY KEY,
			user_id %[2]s NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name %[1]s NOT NULL,
			key_hash %[2]s UNIQUE NOT NULL,
			key_prefix %[1]s NOT NULL,
			created_at BIGINT NOT NULL,
			last_used BIGINT
		)`, d.text, d.shortText, d.boolean, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %[2]s PRIMARY KEY,
			email %[2]s UNIQUE NOT NULL,
			password_hash %[1]s NOT NULL,
			name %[1]s NOT NULL,
			is_active %[3]s NOT NULL DEFAULT TRUE,
			last_login_at %[4]s,
			created_at %[4]s NOT NULL,
			updated_at %[4]s NOT NULL
		)`, d.text, d.shortText, d.boolean, d.timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS providers (
			id %[2]s PRIMARY KEY,
			name %[2]s UNIQUE NOT NULL,
			base_url %[1]s NOT NULL,
			api_key %[1]s NOT NULL,
			models_json %[1]s NOT NULL,
			is_active %[3]s NOT NULL DEFAULT TRUE,
			created_at %[4]s NOT NULL,
			updated_at %[4]s NOT NULL
		)`, d.text, d.shortText, d.boolean, d.timestamp),

		// Instance ID, telemetry opt-out, and similar key-value state.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS settings (
			name %[2]s PRIMARY KEY,
			value %[1]s NOT NULL
		)`, d.text, d.shortText),
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS; re-running there yields
	// a "duplicate key name" error which the loop below treats as a
	// no-op for idempotent migrations.
	ine := "IF NOT EXISTS "
	if s.driver == "mysql" {
		ine = ""
	}
	migrations = append(migrations,
		`CREATE INDEX `+ine+`idx_api_keys_user ON api_keys(user_id)`,
	)

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
