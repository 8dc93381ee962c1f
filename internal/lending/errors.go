// internal/lending/errors.go
package lending

import "errors"

// Deterministic outcomes of the borrow/return workflow. Callers use
// errors.Is to tell business-rule violations and authorization failures
// apart from storage faults, which surface as *storage.Failure.
var (
	ErrAlreadyBorrowed     = errors.New("book already borrowed by this user")
	ErrBorrowLimitExceeded = errors.New("maximum number of borrowed books reached")
	ErrOutOfStock          = errors.New("book is out of stock")
	ErrBookNotFound        = errors.New("book not found")
	ErrLoanNotFound        = errors.New("no matching loan")
	ErrBookLoanedOut       = errors.New("book has outstanding loans")
	ErrForbidden           = errors.New("caller does not own this book")
)
