// Package store owns the Postgres connection pool and the transaction
// boundary shared by the repositories.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bookrental/internal/apperr"
)

//go:embed schema.sql
var schema string

// Postgres error codes mapped to application errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transactor runs fn inside a single database transaction. The context passed
// to fn carries the transaction; repositories pick it up via Conn.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// Store wraps the pool and traces transactions.
type Store struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// New wraps an open pool.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("bookrental/store"),
	}
}

// Open connects to Postgres, retrying with exponential backoff until the
// database answers a ping or ctx is done.
func Open(ctx context.Context, dsn string) (*Store, error) {
	const (
		maxOpenConnections = 50
		maxIdleConnections = 10
		maxConnLifetime    = time.Hour
		maxConnIdleTime    = 5 * time.Minute
	)

	db, err := backoff.Retry(ctx, func() (*sqlx.DB, error) {
		db, err := sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConnections)
	db.SetMaxIdleConns(maxIdleConnections)
	db.SetConnMaxLifetime(maxConnLifetime)
	db.SetConnMaxIdleTime(maxConnIdleTime)

	return New(db), nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the bootstrap schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Conn returns the transaction carried by ctx, or the pool.
func (s *Store) Conn(ctx context.Context) Queryer {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// WithTx runs fn in a read-committed transaction. A transaction already
// present in ctx is joined instead of nesting. The transaction is rolled back
// when fn returns an error or panics.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	ctx, span := s.tracer.Start(ctx, "store.tx")
	defer span.End()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rolled back")
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	span.SetAttributes(attribute.Bool("tx.committed", true))
	return nil
}

// MapError converts constraint violations into application errors and wraps
// everything else with op.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return apperr.Conflict("resource already exists", err)
		case codeForeignKeyViolation:
			return apperr.Conflict("resource is referenced by other records", err)
		case codeCheckViolation:
			return apperr.Conflict(fmt.Sprintf("constraint %s violated", pqErr.Constraint), err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
