// internal/loans/service.go
package loans

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no loan matches (bookID, borrower).
	ErrNotFound = errors.New("loan not found")
	// ErrDuplicate is returned when a loan for (bookID, borrower) already
	// exists; under concurrent borrows this is how the losing insert
	// surfaces.
	ErrDuplicate = errors.New("loan already exists")
)

// Store is the loan-record contract consumed by the borrowing engine. Only
// the engine writes loans. Mutation methods join an in-flight atomic unit
// when the context carries one.
type Store interface {
	Find(ctx context.Context, bookID uuid.UUID, borrowerEmail string) (*Loan, error)
	CountByBorrower(ctx context.Context, borrowerEmail string) (int, error)
	CountByBook(ctx context.Context, bookID uuid.UUID) (int, error)
	Insert(ctx context.Context, loan *Loan) error
	Delete(ctx context.Context, bookID uuid.UUID, borrowerEmail string) error
	ListByBorrower(ctx context.Context, borrowerEmail string) ([]*Loan, error)
}
