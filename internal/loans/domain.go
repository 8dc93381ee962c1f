// internal/loans/domain.go
package loans

import (
	"time"

	"github.com/google/uuid"
)

// Loan records one active borrowing of a book by a user. BookID is a weak
// reference: the catalog row may disappear out-of-band and readers must
// tolerate it. BorrowDate is stamped by the engine's clock; ReturnDate is
// the borrower's expected return date.
type Loan struct {
	ID            uuid.UUID `json:"id" db:"id"`
	BookID        uuid.UUID `json:"book_id" db:"book_id"`
	BorrowerEmail string    `json:"borrower_email" db:"borrower_email"`
	BorrowerName  string    `json:"borrower_name" db:"borrower_name"`
	BorrowDate    time.Time `json:"borrow_date" db:"borrow_date"`
	ReturnDate    time.Time `json:"return_date" db:"return_date"`
}
