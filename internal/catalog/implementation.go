// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bookwise/internal/storage"
)

const bookColumns = `id, owner_email, title, author, category, image, description, rating, quantity, created_at, updated_at`

// postgresStore implements Store on top of the shared storage client.
type postgresStore struct {
	client *storage.Client
}

// NewPostgresStore creates the Postgres-backed catalog store.
func NewPostgresStore(client *storage.Client) Store {
	return &postgresStore{client: client}
}

func (s *postgresStore) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	book := &Book{}
	if err := s.client.Querier(ctx).GetContext(ctx, book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &storage.Failure{Op: "get book", Err: err}
	}
	return book, nil
}

func (s *postgresStore) Insert(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (id, owner_email, title, author, category, image, description, rating, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.client.Querier(ctx).ExecContext(ctx, query,
		book.ID, book.OwnerEmail, book.Title, book.Author, book.Category,
		book.Image, book.Description, book.Rating, book.Quantity,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return &storage.Failure{Op: "insert book", Err: err}
	}
	return nil
}

func (s *postgresStore) Upsert(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (id, owner_email, title, author, category, image, description, rating, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    category = EXCLUDED.category,
		    image = EXCLUDED.image,
		    description = EXCLUDED.description,
		    rating = EXCLUDED.rating,
		    quantity = EXCLUDED.quantity,
		    updated_at = NOW()
	`
	_, err := s.client.Querier(ctx).ExecContext(ctx, query,
		book.ID, book.OwnerEmail, book.Title, book.Author, book.Category,
		book.Image, book.Description, book.Rating, book.Quantity,
	)
	if err != nil {
		return &storage.Failure{Op: "upsert book", Err: err}
	}
	return nil
}

// DecrementQuantity takes copies out of stock. The quantity guard in the
// WHERE clause keeps the count non-negative even if a caller skipped the
// stock check.
func (s *postgresStore) DecrementQuantity(ctx context.Context, id uuid.UUID, by int) error {
	query := `
		UPDATE books
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`
	res, err := s.client.Querier(ctx).ExecContext(ctx, query, id, by)
	if err != nil {
		return &storage.Failure{Op: "decrement quantity", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.Failure{Op: "decrement quantity", Err: err}
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

func (s *postgresStore) IncrementQuantity(ctx context.Context, id uuid.UUID, by int) error {
	query := `
		UPDATE books
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.client.Querier(ctx).ExecContext(ctx, query, id, by)
	if err != nil {
		return &storage.Failure{Op: "increment quantity", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.Failure{Op: "increment quantity", Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.client.Querier(ctx).ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return &storage.Failure{Op: "delete book", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.Failure{Op: "delete book", Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListByCategory(ctx context.Context, category string) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE category = $1 ORDER BY title`

	var books []*Book
	if err := s.client.Querier(ctx).SelectContext(ctx, &books, query, category); err != nil {
		return nil, &storage.Failure{Op: "list books by category", Err: err}
	}
	return books, nil
}

func (s *postgresStore) ListTopRated(ctx context.Context, limit int) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books ORDER BY rating DESC, title LIMIT $1`

	var books []*Book
	if err := s.client.Querier(ctx).SelectContext(ctx, &books, query, limit); err != nil {
		return nil, &storage.Failure{Op: "list top rated books", Err: err}
	}
	return books, nil
}

func (s *postgresStore) ListByOwner(ctx context.Context, ownerEmail string) ([]*Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE owner_email = $1 ORDER BY title`

	var books []*Book
	if err := s.client.Querier(ctx).SelectContext(ctx, &books, query, ownerEmail); err != nil {
		return nil, &storage.Failure{Op: "list books by owner", Err: err}
	}
	return books, nil
}
