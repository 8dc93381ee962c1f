// internal/storage/postgres.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned by store reads when no matching record exists.
var ErrNotFound = errors.New("record not found")

// Failure marks a storage-level fault (transaction abort, transport error,
// timeout) as opposed to a deterministic domain outcome.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string { return fmt.Sprintf("storage %s: %v", f.Op, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

// IsFailure reports whether err carries a storage fault.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// Querier is the statement executor shared by *sqlx.DB and *sqlx.Tx, so
// store methods run the same code inside and outside a transaction.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type txKey struct{}

// Client wraps the Postgres pool and provides the atomic unit of work the
// borrowing engine composes its store operations into.
type Client struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewClient creates a storage client on top of an open Postgres pool.
func NewClient(db *sqlx.DB) *Client {
	return &Client{
		db:     db,
		tracer: otel.Tracer("bookwise/storage"),
	}
}

// DB exposes the underlying pool.
func (c *Client) DB() *sqlx.DB { return c.db }

// Atomically runs fn inside a single serializable transaction. Every store
// call made with the context passed to fn joins that transaction; on error
// the transaction is rolled back and no partial effect remains visible.
func (c *Client) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "storage.atomically")
	defer span.End()

	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return &Failure{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		span.SetAttributes(attribute.Bool("tx.aborted", true))
		if IsSerializationFailure(err) {
			return &Failure{Op: "exec", Err: err}
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		span.SetAttributes(attribute.Bool("tx.aborted", true))
		return &Failure{Op: "commit", Err: err}
	}

	span.SetAttributes(attribute.Bool("tx.committed", true))
	return nil
}

// Querier resolves the executor for ctx: the in-flight transaction when one
// is open, the pool otherwise.
func (c *Client) Querier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return c.db
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, which is how a lost duplicate-insert race surfaces under
// concurrent commits.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (the transaction must be retried by the caller).
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
