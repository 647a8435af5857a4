package store

import (
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{Version: 1, Name: "books_and_chapters", Apply: migrateV001},
}

// migrate enables foreign keys, creates the schema_migrations table and
// applies every migration not yet recorded.
func migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// migrateV001 creates the book and chapter tables. The TOC tree and the
// chapter stylesheet lists are stored as JSON.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			author      TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			source_path TEXT NOT NULL,
			added_at    DATETIME NOT NULL,
			toc         TEXT NOT NULL DEFAULT '[]',
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chapters (
			book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			ord     INTEGER NOT NULL,
			id      TEXT NOT NULL,
			title   TEXT NOT NULL DEFAULT '',
			html    TEXT NOT NULL,
			css     TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (book_id, ord)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
