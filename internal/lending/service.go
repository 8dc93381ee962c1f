// internal/lending/service.go
package lending

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookwise/internal/catalog"
	"bookwise/internal/loans"
)

// Service is the borrowing engine: the sole writer of loan records and the
// sole mutator of book quantities. Borrow and Return run as single atomic
// units spanning both stores.
type Service interface {
	Borrow(ctx context.Context, bookID uuid.UUID, borrowerEmail string, returnDate time.Time, borrowerName string) (*loans.Loan, error)
	Return(ctx context.Context, bookID uuid.UUID, borrowerEmail string) error
	ListBorrowed(ctx context.Context, borrowerEmail string) ([]*BorrowedBook, error)
	EditBook(ctx context.Context, bookID uuid.UUID, callerEmail string, fields BookFields) (*catalog.Book, error)
	DeleteBook(ctx context.Context, bookID uuid.UUID, callerEmail string) error
}

// Atomic runs a set of store operations as one all-or-nothing unit: either
// every mutation made inside fn becomes visible, or none does.
type Atomic interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}
