package database

import (
	"context"
	"fmt"
)

// TxManager runs a unit of work atomically.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// scopeTxManager begins the transaction on the scoped connection. Repositories
// keep using scope.Conn, which is the same session, so their statements join it.
type scopeTxManager struct{}

// NewTxManager returns a TxManager backed by the request's database scope.
func NewTxManager() TxManager {
	return scopeTxManager{}
}

var _ TxManager = scopeTxManager{}

// InTx commits when fn returns nil and rolls back otherwise.
func (scopeTxManager) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	scope, ok := GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
