// internal/lending/implementation_test.go
package lending_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwise/internal/catalog"
	"bookwise/internal/lending"
	"bookwise/internal/loans"
	"bookwise/internal/memstore"
	"bookwise/internal/storage"
)

var dueDate = time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

func newEngine(store *memstore.Store, maxLoans int) lending.Service {
	return lending.NewService(store, store.Books(), store.Loans(), lending.Config{
		MaxLoans: maxLoans,
		Logger:   zerolog.Nop(),
	})
}

func seedBook(t *testing.T, store *memstore.Store, owner string, quantity int) *catalog.Book {
	t.Helper()
	book := &catalog.Book{
		ID:         uuid.New(),
		OwnerEmail: owner,
		Title:      fmt.Sprintf("Book %s", uuid.NewString()[:8]),
		Author:     "Jane Austen",
		Category:   "novel",
		Rating:     4,
		Quantity:   quantity,
	}
	require.NoError(t, store.Books().Insert(context.Background(), book))
	return book
}

func bookQuantity(t *testing.T, store *memstore.Store, id uuid.UUID) int {
	t.Helper()
	book, err := store.Books().Get(context.Background(), id)
	require.NoError(t, err)
	return book.Quantity
}

func TestBorrowCreatesLoanAndDecrementsQuantity(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 5)

	loan, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, "reader@example.com", loan.BorrowerEmail)
	assert.Equal(t, dueDate, loan.ReturnDate)
	assert.False(t, loan.BorrowDate.IsZero())
	assert.Equal(t, 4, bookQuantity(t, store, book.ID))
}

func TestBorrowStampsBorrowDateFromEngineClock(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	engine := lending.NewService(store, store.Books(), store.Loans(), lending.Config{
		Now:    func() time.Time { return now },
		Logger: zerolog.Nop(),
	})
	book := seedBook(t, store, "owner@example.com", 1)

	loan, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)
	assert.Equal(t, now, loan.BorrowDate)
}

func TestBorrowOutOfStock(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 0)

	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.ErrorIs(t, err, lending.ErrOutOfStock)

	assert.Equal(t, 0, bookQuantity(t, store, book.ID))
	_, err = store.Loans().Find(context.Background(), book.ID, "reader@example.com")
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

func TestBorrowTwiceFailsWithoutMutatingQuantity(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 5)

	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	_, err = engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.ErrorIs(t, err, lending.ErrAlreadyBorrowed)
	assert.Equal(t, 4, bookQuantity(t, store, book.ID))
}

func TestBorrowLimit(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	borrower := "reader@example.com"

	for i := 0; i < 3; i++ {
		book := seedBook(t, store, "owner@example.com", 1)
		_, err := engine.Borrow(context.Background(), book.ID, borrower, dueDate, "Reader")
		require.NoError(t, err)
	}

	// A fourth borrow fails regardless of stock on the fourth book.
	fourth := seedBook(t, store, "owner@example.com", 10)
	_, err := engine.Borrow(context.Background(), fourth.ID, borrower, dueDate, "Reader")
	require.ErrorIs(t, err, lending.ErrBorrowLimitExceeded)
	assert.Equal(t, 10, bookQuantity(t, store, fourth.ID))

	// A different borrower is unaffected.
	_, err = engine.Borrow(context.Background(), fourth.ID, "other@example.com", dueDate, "Other")
	require.NoError(t, err)
}

func TestBorrowMissingBook(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)

	_, err := engine.Borrow(context.Background(), uuid.New(), "reader@example.com", dueDate, "Reader")
	require.ErrorIs(t, err, lending.ErrBookNotFound)
}

func TestBorrowAbortLeavesNoPartialEffect(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 5)

	store.FailNextCommit(errors.New("connection reset by peer"))
	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.Error(t, err)
	assert.True(t, storage.IsFailure(err))

	// The decrement was computed but the commit failed: neither the
	// decrement nor the loan record may be visible afterwards.
	assert.Equal(t, 5, bookQuantity(t, store, book.ID))
	_, err = store.Loans().Find(context.Background(), book.ID, "reader@example.com")
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

func TestReturnRoundTrip(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)
	require.Equal(t, 1, bookQuantity(t, store, book.ID))

	require.NoError(t, engine.Return(context.Background(), book.ID, "reader@example.com"))
	assert.Equal(t, 2, bookQuantity(t, store, book.ID))

	_, err = store.Loans().Find(context.Background(), book.ID, "reader@example.com")
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

func TestReturnWithoutLoan(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	err := engine.Return(context.Background(), book.ID, "reader@example.com")
	require.ErrorIs(t, err, lending.ErrLoanNotFound)

	// No increment without a matching loan deletion.
	assert.Equal(t, 2, bookQuantity(t, store, book.ID))
}

func TestReturnClearsDanglingLoan(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 1)

	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	// The catalog row disappears out-of-band.
	require.NoError(t, store.Books().Delete(context.Background(), book.ID))

	require.NoError(t, engine.Return(context.Background(), book.ID, "reader@example.com"))
	_, err = store.Loans().Find(context.Background(), book.ID, "reader@example.com")
	assert.ErrorIs(t, err, loans.ErrNotFound)
}

func TestLastCopyScenario(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 1)
	ctx := context.Background()

	_, err := engine.Borrow(ctx, book.ID, "alice@example.com", dueDate, "Alice")
	require.NoError(t, err)
	require.Equal(t, 0, bookQuantity(t, store, book.ID))

	_, err = engine.Borrow(ctx, book.ID, "bob@example.com", dueDate, "Bob")
	require.ErrorIs(t, err, lending.ErrOutOfStock)
	require.Equal(t, 0, bookQuantity(t, store, book.ID))

	require.NoError(t, engine.Return(ctx, book.ID, "alice@example.com"))
	require.Equal(t, 1, bookQuantity(t, store, book.ID))

	_, err = engine.Borrow(ctx, book.ID, "bob@example.com", dueDate, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 0, bookQuantity(t, store, book.ID))
}

func TestConcurrentBorrowOfLastCopy(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			borrower := fmt.Sprintf("reader%d@example.com", i)
			_, err := engine.Borrow(context.Background(), book.ID, borrower, dueDate, "Reader")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, lending.ErrOutOfStock)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, bookQuantity(t, store, book.ID))
}

func TestListBorrowedJoinsBookDetails(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	ctx := context.Background()
	first := seedBook(t, store, "owner@example.com", 1)
	second := seedBook(t, store, "owner@example.com", 1)

	_, err := engine.Borrow(ctx, first.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)
	_, err = engine.Borrow(ctx, second.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	borrowed, err := engine.ListBorrowed(ctx, "reader@example.com")
	require.NoError(t, err)
	require.Len(t, borrowed, 2)
	for _, entry := range borrowed {
		assert.Equal(t, entry.Loan.BookID, entry.Book.ID)
		assert.NotEmpty(t, entry.Book.Title)
	}

	other, err := engine.ListBorrowed(ctx, "other@example.com")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestListBorrowedDropsDanglingLoans(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	ctx := context.Background()
	kept := seedBook(t, store, "owner@example.com", 1)
	deleted := seedBook(t, store, "owner@example.com", 1)

	_, err := engine.Borrow(ctx, kept.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)
	_, err = engine.Borrow(ctx, deleted.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	require.NoError(t, store.Books().Delete(ctx, deleted.ID))

	borrowed, err := engine.ListBorrowed(ctx, "reader@example.com")
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, kept.ID, borrowed[0].Book.ID)
}

func TestEditBookReplacesFieldsForOwner(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	updated, err := engine.EditBook(context.Background(), book.ID, "owner@example.com", lending.BookFields{
		Title:    "Persuasion",
		Author:   "Jane Austen",
		Category: "novel",
		Rating:   5,
		Quantity: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "Persuasion", updated.Title)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, "owner@example.com", updated.OwnerEmail)

	stored, err := store.Books().Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persuasion", stored.Title)
}

func TestEditBookForbiddenForNonOwner(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	_, err := engine.EditBook(context.Background(), book.ID, "intruder@example.com", lending.BookFields{Title: "Hijacked"})
	require.ErrorIs(t, err, lending.ErrForbidden)

	stored, err := store.Books().Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Hijacked", stored.Title)
}

func TestEditBookCreatesMissingBookWithCallerAsOwner(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	id := uuid.New()

	created, err := engine.EditBook(context.Background(), id, "owner@example.com", lending.BookFields{
		Title:    "Emma",
		Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", created.OwnerEmail)
	assert.Equal(t, 3, created.Quantity)
}

func TestDeleteBook(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	require.NoError(t, engine.DeleteBook(context.Background(), book.ID, "owner@example.com"))
	_, err := store.Books().Get(context.Background(), book.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDeleteBookForbiddenForNonOwner(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	err := engine.DeleteBook(context.Background(), book.ID, "intruder@example.com")
	require.ErrorIs(t, err, lending.ErrForbidden)

	_, err = store.Books().Get(context.Background(), book.ID)
	assert.NoError(t, err)
}

func TestDeleteBookRejectedWhileLoansOutstanding(t *testing.T) {
	store := memstore.New()
	engine := newEngine(store, 3)
	book := seedBook(t, store, "owner@example.com", 2)

	_, err := engine.Borrow(context.Background(), book.ID, "reader@example.com", dueDate, "Reader")
	require.NoError(t, err)

	err = engine.DeleteBook(context.Background(), book.ID, "owner@example.com")
	require.ErrorIs(t, err, lending.ErrBookLoanedOut)

	// The book survives until the loan is returned.
	_, err = store.Books().Get(context.Background(), book.ID)
	require.NoError(t, err)

	require.NoError(t, engine.Return(context.Background(), book.ID, "reader@example.com"))
	require.NoError(t, engine.DeleteBook(context.Background(), book.ID, "owner@example.com"))
}
