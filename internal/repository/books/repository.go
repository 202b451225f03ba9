// Package books persists the book catalog in Postgres.
package books

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkstream/bookqa/internal/domain"
)

// Repository stores books and their sections.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a Postgres book repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a book and its sections in one transaction. Re-creating an
// existing id replaces its sections (re-ingestion).
func (r *Repository) Create(ctx context.Context, book domain.Book) error {
	id, err := uuid.Parse(book.ID)
	if err != nil {
		return fmt.Errorf("%w: invalid book id %q", domain.ErrValidation, book.ID)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO books (id, title, author, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = $2, author = $3`,
		id, book.Title, book.Author, book.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM book_sections WHERE book_id = $1`, id); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}

	for i, s := range book.Sections {
		_, err = tx.Exec(ctx, `
			INSERT INTO book_sections (id, book_id, position, title, content, page_start, page_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), id, i, s.Title, s.Content, s.PageStart, s.PageEnd,
		)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns a book with its sections in ingestion order.
func (r *Repository) Get(ctx context.Context, id string) (domain.Book, error) {
	bookID, err := uuid.Parse(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("%w: %q", domain.ErrBookNotFound, id)
	}

	var book domain.Book
	err = r.db.QueryRow(ctx,
		`SELECT id, title, author, created_at FROM books WHERE id = $1`, bookID,
	).Scan(&book.ID, &book.Title, &book.Author, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Book{}, fmt.Errorf("%w: %q", domain.ErrBookNotFound, id)
		}
		return domain.Book{}, fmt.Errorf("select book: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT title, content, page_start, page_end
		FROM book_sections WHERE book_id = $1 ORDER BY position`, bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("select sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.Section
		if err := rows.Scan(&s.Title, &s.Content, &s.PageStart, &s.PageEnd); err != nil {
			return domain.Book{}, fmt.Errorf("scan section: %w", err)
		}
		book.Sections = append(book.Sections, s)
	}
	if err := rows.Err(); err != nil {
		return domain.Book{}, fmt.Errorf("iterate sections: %w", err)
	}

	return book, nil
}

// Exists reports whether a book id is known. An unparseable id is simply
// unknown, not an error.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	bookID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check book existence: %w", err)
	}
	return exists, nil
}

// Ping reports Postgres connectivity for health checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
