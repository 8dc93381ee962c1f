// internal/catalog/service.go
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no book matches the given ID.
	ErrNotFound = errors.New("book not found")
	// ErrDuplicate is returned when inserting a book whose ID already exists.
	ErrDuplicate = errors.New("book already exists")
	// ErrInsufficientStock is returned when a decrement would take the
	// quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store is the catalog contract consumed by the borrowing engine. Mutation
// methods join an in-flight atomic unit when the context carries one, so
// quantity changes commit or abort together with the loan records they
// correspond to.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	Insert(ctx context.Context, book *Book) error
	Upsert(ctx context.Context, book *Book) error
	DecrementQuantity(ctx context.Context, id uuid.UUID, by int) error
	IncrementQuantity(ctx context.Context, id uuid.UUID, by int) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCategory(ctx context.Context, category string) ([]*Book, error)
	ListTopRated(ctx context.Context, limit int) ([]*Book, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]*Book, error)
}
