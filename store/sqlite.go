// Package store persists books in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/simp-lee/epubview/book"
)

// SQLite is a book.Catalog backed by a SQLite database. Chapters live in
// their own table and are always written in the same transaction as the
// book row they belong to.
type SQLite struct {
	db *sql.DB

	getBook     *sql.Stmt
	getChapters *sql.Stmt
}

var _ book.Catalog = (*SQLite)(nil)

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" opens a private in-memory database.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	s, err := New(db)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return s, nil
}

// New wraps an already opened database, applying pending migrations.
func New(db *sql.DB) (*SQLite, error) {
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.prepareStatements(); err != nil {
		return nil, multierr.Append(fmt.Errorf("prepare statements: %w", err), s.closeStatements())
	}
	return s, nil
}

func (s *SQLite) prepareStatements() error {
	var err error

	s.getBook, err = s.db.Prepare(`
		SELECT id, title, author, language, source_path, added_at, toc
		FROM books WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.getChapters, err = s.db.Prepare(`
		SELECT id, title, html, ord, css
		FROM chapters WHERE book_id = ? ORDER BY ord
	`)
	if err != nil {
		return err
	}
	return nil
}

// GetByID loads a book with its TOC and chapters.
func (s *SQLite) GetByID(ctx context.Context, id string) (*book.Book, error) {
	var (
		b       book.Book
		addedAt string
		toc     string
	)
	err := s.getBook.QueryRowContext(ctx, id).Scan(&b.ID, &b.Title, &b.Author, &b.Language, &b.SourcePath, &addedAt, &toc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", book.ErrBookNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query book %s: %w", id, err)
	}
	if b.AddedAt, err = parseTimestamp(addedAt); err != nil {
		return nil, fmt.Errorf("book %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(toc), &b.TOC); err != nil {
		return nil, fmt.Errorf("decode toc of book %s: %w", id, err)
	}

	rows, err := s.getChapters.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("query chapters of book %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ch  book.Chapter
			css string
		)
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.HTML, &ch.Order, &css); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		if err := json.Unmarshal([]byte(css), &ch.CSS); err != nil {
			return nil, fmt.Errorf("decode css of chapter %s: %w", ch.ID, err)
		}
		b.Chapters = append(b.Chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chapters of book %s: %w", id, err)
	}
	return &b, nil
}

// Add inserts a new book.
func (s *SQLite) Add(ctx context.Context, b *book.Book) error {
	toc, err := encodeTOC(b.TOC)
	if err != nil {
		return err
	}
	if b.AddedAt.IsZero() {
		b.AddedAt = time.Now()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO books (id, title, author, language, source_path, added_at, toc)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.Title, b.Author, b.Language, b.SourcePath, b.AddedAt.UTC().Format(time.RFC3339Nano), toc,
		); err != nil {
			return fmt.Errorf("insert book %s: %w", b.ID, err)
		}
		return insertChapters(ctx, tx, b)
	})
}

// Update replaces the stored book, its TOC and every chapter in one
// transaction.
func (s *SQLite) Update(ctx context.Context, b *book.Book) error {
	toc, err := encodeTOC(b.TOC)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE books
			SET title = ?, author = ?, language = ?, source_path = ?, toc = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			b.Title, b.Author, b.Language, b.SourcePath, toc, b.ID,
		)
		if err != nil {
			return fmt.Errorf("update book %s: %w", b.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("%w: %s", book.ErrBookNotFound, b.ID)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chapters WHERE book_id = ?", b.ID); err != nil {
			return fmt.Errorf("delete chapters of book %s: %w", b.ID, err)
		}
		return insertChapters(ctx, tx, b)
	})
}

// Delete removes a book and its chapters.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", book.ErrBookNotFound, id)
	}
	return nil
}

// List returns a summary of every book ordered by title.
func (s *SQLite) List(ctx context.Context) ([]book.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.author, (SELECT COUNT(*) FROM chapters c WHERE c.book_id = b.id)
		FROM books b ORDER BY b.title, b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var out []book.Summary
	for rows.Next() {
		var sum book.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Author, &sum.Chapters); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close releases prepared statements and the database.
func (s *SQLite) Close() error {
	return multierr.Append(s.closeStatements(), s.db.Close())
}

func (s *SQLite) closeStatements() error {
	var err error
	for _, stmt := range []*sql.Stmt{s.getBook, s.getChapters} {
		if stmt != nil {
			err = multierr.Append(err, stmt.Close())
		}
	}
	return err
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertChapters(ctx context.Context, tx *sql.Tx, b *book.Book) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chapters (book_id, ord, id, title, html, css)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range b.Chapters {
		css, err := json.Marshal(nonNil(ch.CSS))
		if err != nil {
			return fmt.Errorf("encode css of chapter %s: %w", ch.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, b.ID, ch.Order, ch.ID, ch.Title, ch.HTML, string(css)); err != nil {
			return fmt.Errorf("insert chapter %s: %w", ch.ID, err)
		}
	}
	return nil
}

func encodeTOC(toc []book.TocEntry) (string, error) {
	data, err := json.Marshal(nonNil(toc))
	if err != nil {
		return "", fmt.Errorf("encode toc: %w", err)
	}
	return string(data), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// parseTimestamp accepts the formats SQLite and this package write.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}
