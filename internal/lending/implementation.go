// internal/lending/implementation.go
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"bookwise/internal/catalog"
	"bookwise/internal/loans"
)

// DefaultMaxLoans caps the number of books a single borrower may hold at
// once when no explicit limit is configured.
const DefaultMaxLoans = 3

// Config carries the engine's policy knobs.
type Config struct {
	MaxLoans int              // per-borrower cap; DefaultMaxLoans when 0
	Now      func() time.Time // engine clock; time.Now when nil
	Logger   zerolog.Logger
}

// service implements the Service interface.
type service struct {
	atomic   Atomic
	books    catalog.Store
	loans    loans.Store
	maxLoans int
	now      func() time.Time
	log      zerolog.Logger

	borrowOutcomes metric.Int64Counter
	returnOutcomes metric.Int64Counter
}

// NewService creates a borrowing engine over the given stores. Both stores
// must be backed by the same storage as the atomic runner, so that their
// operations can join its unit of work.
func NewService(atomic Atomic, books catalog.Store, loanStore loans.Store, cfg Config) Service {
	if cfg.MaxLoans <= 0 {
		cfg.MaxLoans = DefaultMaxLoans
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	meter := otel.Meter("bookwise/lending")
	borrowOutcomes, _ := meter.Int64Counter("lending.borrow.outcomes",
		metric.WithDescription("Borrow attempts by outcome"))
	returnOutcomes, _ := meter.Int64Counter("lending.return.outcomes",
		metric.WithDescription("Return attempts by outcome"))

	return &service{
		atomic:         atomic,
		books:          books,
		loans:          loanStore,
		maxLoans:       cfg.MaxLoans,
		now:            cfg.Now,
		log:            cfg.Logger,
		borrowOutcomes: borrowOutcomes,
		returnOutcomes: returnOutcomes,
	}
}

// Borrow lends one copy of a book to a borrower. The duplicate-loan check,
// the borrow-count check, the stock check, the quantity decrement and the
// loan insert all run inside one atomic unit, so concurrent borrows cannot
// slip past each other between check and write.
func (s *service) Borrow(ctx context.Context, bookID uuid.UUID, borrowerEmail string, returnDate time.Time, borrowerName string) (*loans.Loan, error) {
	var loan *loans.Loan
	err := s.atomic.Atomically(ctx, func(ctx context.Context) error {
		existing, err := s.loans.Find(ctx, bookID, borrowerEmail)
		if err != nil && !errors.Is(err, loans.ErrNotFound) {
			return fmt.Errorf("check existing loan: %w", err)
		}
		if existing != nil {
			return ErrAlreadyBorrowed
		}

		count, err := s.loans.CountByBorrower(ctx, borrowerEmail)
		if err != nil {
			return fmt.Errorf("count loans: %w", err)
		}
		if count >= s.maxLoans {
			return ErrBorrowLimitExceeded
		}

		book, err := s.books.Get(ctx, bookID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("get book: %w", err)
		}
		if book.Quantity <= 0 {
			return ErrOutOfStock
		}

		if err := s.books.DecrementQuantity(ctx, bookID, 1); err != nil {
			if errors.Is(err, catalog.ErrInsufficientStock) {
				return ErrOutOfStock
			}
			return fmt.Errorf("decrement quantity: %w", err)
		}

		loan = &loans.Loan{
			ID:            uuid.New(),
			BookID:        bookID,
			BorrowerEmail: borrowerEmail,
			BorrowerName:  borrowerName,
			BorrowDate:    s.now(),
			ReturnDate:    returnDate,
		}
		if err := s.loans.Insert(ctx, loan); err != nil {
			if errors.Is(err, loans.ErrDuplicate) {
				return ErrAlreadyBorrowed
			}
			return fmt.Errorf("insert loan: %w", err)
		}
		return nil
	})

	s.borrowOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(err))))
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("book_id", bookID.String()).
		Str("borrower", borrowerEmail).
		Time("return_date", returnDate).
		Msg("book borrowed")
	return loan, nil
}

// Return gives one copy back: the quantity increment and the loan deletion
// commit or abort together. A return without a matching loan is a no-op
// that reports ErrLoanNotFound.
func (s *service) Return(ctx context.Context, bookID uuid.UUID, borrowerEmail string) error {
	err := s.atomic.Atomically(ctx, func(ctx context.Context) error {
		if _, err := s.loans.Find(ctx, bookID, borrowerEmail); err != nil {
			if errors.Is(err, loans.ErrNotFound) {
				return ErrLoanNotFound
			}
			return fmt.Errorf("find loan: %w", err)
		}

		if err := s.books.IncrementQuantity(ctx, bookID, 1); err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				// Dangling loan: the book vanished from the catalog
				// out-of-band. Clear the loan so it stops counting
				// against the borrower's limit.
				s.log.Warn().
					Str("book_id", bookID.String()).
					Str("borrower", borrowerEmail).
					Msg("returning loan for a book no longer in the catalog")
			} else {
				return fmt.Errorf("increment quantity: %w", err)
			}
		}

		if err := s.loans.Delete(ctx, bookID, borrowerEmail); err != nil {
			return fmt.Errorf("delete loan: %w", err)
		}
		return nil
	})

	s.returnOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(err))))
	if err != nil {
		return err
	}

	s.log.Info().
		Str("book_id", bookID.String()).
		Str("borrower", borrowerEmail).
		Msg("book returned")
	return nil
}

// ListBorrowed resolves each of the borrower's loans against the catalog.
// Loans whose book no longer resolves are dropped from the result.
func (s *service) ListBorrowed(ctx context.Context, borrowerEmail string) ([]*BorrowedBook, error) {
	list, err := s.loans.ListByBorrower(ctx, borrowerEmail)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	borrowed := make([]*BorrowedBook, 0, len(list))
	for _, loan := range list {
		book, err := s.books.Get(ctx, loan.BookID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve book %s: %w", loan.BookID, err)
		}
		borrowed = append(borrowed, &BorrowedBook{Loan: loan, Book: book})
	}
	return borrowed, nil
}

// EditBook replaces a book's editable fields, upsert-style: a missing book
// is created with the caller as owner, an existing one may only be edited
// by its owner.
func (s *service) EditBook(ctx context.Context, bookID uuid.UUID, callerEmail string, fields BookFields) (*catalog.Book, error) {
	if fields.Quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	var updated *catalog.Book
	err := s.atomic.Atomically(ctx, func(ctx context.Context) error {
		book, err := s.books.Get(ctx, bookID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			book = &catalog.Book{ID: bookID, OwnerEmail: callerEmail}
		case err != nil:
			return fmt.Errorf("get book: %w", err)
		case book.OwnerEmail != callerEmail:
			return ErrForbidden
		}

		book.Title = fields.Title
		book.Author = fields.Author
		book.Category = fields.Category
		book.Image = fields.Image
		book.Description = fields.Description
		book.Rating = fields.Rating
		book.Quantity = fields.Quantity
		book.UpdatedAt = s.now()

		if err := s.books.Upsert(ctx, book); err != nil {
			return fmt.Errorf("upsert book: %w", err)
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBook removes a book from the catalog. Only the owner may delete,
// and deletion is rejected while loans still reference the book.
func (s *service) DeleteBook(ctx context.Context, bookID uuid.UUID, callerEmail string) error {
	return s.atomic.Atomically(ctx, func(ctx context.Context) error {
		book, err := s.books.Get(ctx, bookID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("get book: %w", err)
		}
		if book.OwnerEmail != callerEmail {
			return ErrForbidden
		}

		outstanding, err := s.loans.CountByBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("count outstanding loans: %w", err)
		}
		if outstanding > 0 {
			return ErrBookLoanedOut
		}

		if err := s.books.Delete(ctx, bookID); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, ErrBorrowLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrLoanNotFound):
		return "not_found"
	default:
		return "storage_failure"
	}
}
