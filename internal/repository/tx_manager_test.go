package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRetryableTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"not found", gorm.ErrRecordNotFound, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock wrapped", fmt.Errorf("failed to update status: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableTxError(tt.err))
		})
	}
}

func TestRunInTxJoinsOuterTransaction(t *testing.T) {
	// no database: a joined call must not open a transaction of its own
	tm := NewTransactionManager(nil)
	outer := &gorm.DB{}
	ctx := context.WithValue(context.Background(), txKey, outer)

	var seen *gorm.DB
	err := tm.RunInTx(ctx, func(txCtx context.Context) error {
		seen, _ = txCtx.Value(txKey).(*gorm.DB)
		return errors.New("rollback")
	})

	assert.EqualError(t, err, "rollback")
	assert.Same(t, outer, seen)
	assert.True(t, InTx(ctx))
	assert.False(t, InTx(context.Background()))
}
