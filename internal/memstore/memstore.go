// internal/memstore/memstore.go

// Package memstore provides in-memory implementations of the catalog and
// loan store contracts with the same all-or-nothing transaction semantics
// as the Postgres stores. It exists so the borrowing engine can be tested
// without a database; it is not safe for durable use.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bookwise/internal/catalog"
	"bookwise/internal/loans"
	"bookwise/internal/storage"
)

type loanKey struct {
	bookID   uuid.UUID
	borrower string
}

// Store holds both record collections behind one mutex. An atomic unit
// snapshots the state up front and restores it when the unit fails, so a
// failed Borrow or Return leaves nothing behind.
type Store struct {
	mu    sync.Mutex
	books map[uuid.UUID]catalog.Book
	loans map[loanKey]loans.Loan

	commitErr error
}

func New() *Store {
	return &Store{
		books: make(map[uuid.UUID]catalog.Book),
		loans: make(map[loanKey]loans.Loan),
	}
}

// Books returns the catalog store view.
func (s *Store) Books() catalog.Store { return &bookStore{s} }

// Loans returns the loan store view.
func (s *Store) Loans() loans.Store { return &loanStore{s} }

type txToken struct{}

// Atomically runs fn under the store mutex. Store calls made with the
// context passed to fn skip re-locking, mirroring how the Postgres stores
// join an in-flight transaction carried on the context.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, loanRecs := s.snapshot()
	if err := fn(context.WithValue(ctx, txToken{}, struct{}{})); err != nil {
		s.books, s.loans = books, loanRecs
		return err
	}
	if s.commitErr != nil {
		err := s.commitErr
		s.commitErr = nil
		s.books, s.loans = books, loanRecs
		return &storage.Failure{Op: "commit", Err: err}
	}
	return nil
}

// FailNextCommit makes the next atomic unit fail after its closure has run,
// with all its effects rolled back. Used to exercise abort behavior.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *Store) snapshot() (map[uuid.UUID]catalog.Book, map[loanKey]loans.Loan) {
	books := make(map[uuid.UUID]catalog.Book, len(s.books))
	for id, b := range s.books {
		books[id] = b
	}
	loanRecs := make(map[loanKey]loans.Loan, len(s.loans))
	for k, l := range s.loans {
		loanRecs[k] = l
	}
	return books, loanRecs
}

func (s *Store) enter(ctx context.Context) func() {
	if ctx.Value(txToken{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// bookStore implements catalog.Store.
type bookStore struct{ s *Store }

func (b *bookStore) Get(ctx context.Context, id uuid.UUID) (*catalog.Book, error) {
	defer b.s.enter(ctx)()
	book, ok := b.s.books[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	out := book
	return &out, nil
}

func (b *bookStore) Insert(ctx context.Context, book *catalog.Book) error {
	defer b.s.enter(ctx)()
	if _, ok := b.s.books[book.ID]; ok {
		return catalog.ErrDuplicate
	}
	b.s.books[book.ID] = *book
	return nil
}

func (b *bookStore) Upsert(ctx context.Context, book *catalog.Book) error {
	defer b.s.enter(ctx)()
	b.s.books[book.ID] = *book
	return nil
}

func (b *bookStore) DecrementQuantity(ctx context.Context, id uuid.UUID, by int) error {
	defer b.s.enter(ctx)()
	book, ok := b.s.books[id]
	if !ok {
		return catalog.ErrNotFound
	}
	if book.Quantity < by {
		return catalog.ErrInsufficientStock
	}
	book.Quantity -= by
	b.s.books[id] = book
	return nil
}

func (b *bookStore) IncrementQuantity(ctx context.Context, id uuid.UUID, by int) error {
	defer b.s.enter(ctx)()
	book, ok := b.s.books[id]
	if !ok {
		return catalog.ErrNotFound
	}
	book.Quantity += by
	b.s.books[id] = book
	return nil
}

func (b *bookStore) Delete(ctx context.Context, id uuid.UUID) error {
	defer b.s.enter(ctx)()
	if _, ok := b.s.books[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(b.s.books, id)
	return nil
}

func (b *bookStore) ListByCategory(ctx context.Context, category string) ([]*catalog.Book, error) {
	defer b.s.enter(ctx)()
	return b.collect(func(book catalog.Book) bool { return book.Category == category }), nil
}

func (b *bookStore) ListTopRated(ctx context.Context, limit int) ([]*catalog.Book, error) {
	defer b.s.enter(ctx)()
	books := b.collect(func(catalog.Book) bool { return true })
	sort.Slice(books, func(i, j int) bool {
		if books[i].Rating != books[j].Rating {
			return books[i].Rating > books[j].Rating
		}
		return books[i].Title < books[j].Title
	})
	if len(books) > limit {
		books = books[:limit]
	}
	return books, nil
}

func (b *bookStore) ListByOwner(ctx context.Context, ownerEmail string) ([]*catalog.Book, error) {
	defer b.s.enter(ctx)()
	return b.collect(func(book catalog.Book) bool { return book.OwnerEmail == ownerEmail }), nil
}

func (b *bookStore) collect(keep func(catalog.Book) bool) []*catalog.Book {
	var books []*catalog.Book
	for _, book := range b.s.books {
		if keep(book) {
			out := book
			books = append(books, &out)
		}
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books
}

// loanStore implements loans.Store.
type loanStore struct{ s *Store }

func (l *loanStore) Find(ctx context.Context, bookID uuid.UUID, borrowerEmail string) (*loans.Loan, error) {
	defer l.s.enter(ctx)()
	loan, ok := l.s.loans[loanKey{bookID, borrowerEmail}]
	if !ok {
		return nil, loans.ErrNotFound
	}
	out := loan
	return &out, nil
}

func (l *loanStore) CountByBorrower(ctx context.Context, borrowerEmail string) (int, error) {
	defer l.s.enter(ctx)()
	count := 0
	for k := range l.s.loans {
		if k.borrower == borrowerEmail {
			count++
		}
	}
	return count, nil
}

func (l *loanStore) CountByBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	defer l.s.enter(ctx)()
	count := 0
	for k := range l.s.loans {
		if k.bookID == bookID {
			count++
		}
	}
	return count, nil
}

func (l *loanStore) Insert(ctx context.Context, loan *loans.Loan) error {
	defer l.s.enter(ctx)()
	key := loanKey{loan.BookID, loan.BorrowerEmail}
	if _, ok := l.s.loans[key]; ok {
		return loans.ErrDuplicate
	}
	l.s.loans[key] = *loan
	return nil
}

func (l *loanStore) Delete(ctx context.Context, bookID uuid.UUID, borrowerEmail string) error {
	defer l.s.enter(ctx)()
	key := loanKey{bookID, borrowerEmail}
	if _, ok := l.s.loans[key]; !ok {
		return loans.ErrNotFound
	}
	delete(l.s.loans, key)
	return nil
}

func (l *loanStore) ListByBorrower(ctx context.Context, borrowerEmail string) ([]*loans.Loan, error) {
	defer l.s.enter(ctx)()
	var list []*loans.Loan
	for k, loan := range l.s.loans {
		if k.borrower == borrowerEmail {
			out := loan
			list = append(list, &out)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].BorrowDate.Equal(list[j].BorrowDate) {
			return list[i].BorrowDate.Before(list[j].BorrowDate)
		}
		return list[i].BookID.String() < list[j].BookID.String()
	})
	return list, nil
}
