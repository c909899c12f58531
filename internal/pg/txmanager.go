package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=txmanager.go -destination=txmanager_mock.go -package=pg

// TXManager runs a function inside a database transaction. The wrapped
// function sees the transaction through the context it receives.
type TXManager interface {
	Begin(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type Manager struct {
	db Database
}

func NewTXManager(db Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) Begin(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTX(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

func extractTX(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}
