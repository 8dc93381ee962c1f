// internal/loans/implementation.go
package loans

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bookwise/internal/storage"
)

const loanColumns = `id, book_id, borrower_email, borrower_name, borrow_date, return_date`

// postgresStore implements Store on top of the shared storage client.
type postgresStore struct {
	client *storage.Client
}

// NewPostgresStore creates the Postgres-backed loan store.
func NewPostgresStore(client *storage.Client) Store {
	return &postgresStore{client: client}
}

func (s *postgresStore) Find(ctx context.Context, bookID uuid.UUID, borrowerEmail string) (*Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE book_id = $1 AND borrower_email = $2`

	loan := &Loan{}
	if err := s.client.Querier(ctx).GetContext(ctx, loan, query, bookID, borrowerEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &storage.Failure{Op: "find loan", Err: err}
	}
	return loan, nil
}

func (s *postgresStore) CountByBorrower(ctx context.Context, borrowerEmail string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM loans WHERE borrower_email = $1`
	if err := s.client.Querier(ctx).GetContext(ctx, &count, query, borrowerEmail); err != nil {
		return 0, &storage.Failure{Op: "count loans by borrower", Err: err}
	}
	return count, nil
}

func (s *postgresStore) CountByBook(ctx context.Context, bookID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM loans WHERE book_id = $1`
	if err := s.client.Querier(ctx).GetContext(ctx, &count, query, bookID); err != nil {
		return 0, &storage.Failure{Op: "count loans by book", Err: err}
	}
	return count, nil
}

func (s *postgresStore) Insert(ctx context.Context, loan *Loan) error {
	query := `
		INSERT INTO loans (id, book_id, borrower_email, borrower_name, borrow_date, return_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.client.Querier(ctx).ExecContext(ctx, query,
		loan.ID, loan.BookID, loan.BorrowerEmail, loan.BorrowerName, loan.BorrowDate, loan.ReturnDate,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return &storage.Failure{Op: "insert loan", Err: err}
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, bookID uuid.UUID, borrowerEmail string) error {
	query := `DELETE FROM loans WHERE book_id = $1 AND borrower_email = $2`
	res, err := s.client.Querier(ctx).ExecContext(ctx, query, bookID, borrowerEmail)
	if err != nil {
		return &storage.Failure{Op: "delete loan", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &storage.Failure{Op: "delete loan", Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListByBorrower(ctx context.Context, borrowerEmail string) ([]*Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_email = $1 ORDER BY borrow_date`

	var list []*Loan
	if err := s.client.Querier(ctx).SelectContext(ctx, &list, query, borrowerEmail); err != nil {
		return nil, &storage.Failure{Op: "list loans by borrower", Err: err}
	}
	return list, nil
}
