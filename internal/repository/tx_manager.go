package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// Postgres aborts one side of a lock conflict with these codes; the work is
// safe to run again from the start.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TransactionManager runs repository calls in one transaction via the context.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db         *gorm.DB
	maxRetries uint64
	baseDelay  time.Duration
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db, maxRetries: 3, baseDelay: 20 * time.Millisecond}
}

// RunInTx commits when fn returns nil. A call made inside another RunInTx joins
// the outer transaction, so an error anywhere rolls back the whole unit.
// Serialization failures and deadlocks restart fn in a fresh transaction.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey, tx))
		})
		if retryableTxError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey).(*gorm.DB)
	return ok
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
