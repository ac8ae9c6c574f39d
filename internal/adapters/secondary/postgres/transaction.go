package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txRunner runs directory statements inside pool transactions.
type txRunner struct {
	pool *pgxpool.Pool
}

// withTransaction executes fn in a read-write transaction, rolling back on
// error or panic.
func (r txRunner) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.run(ctx, pgx.TxOptions{}, fn)
}

// withReadOnlyTransaction gives fn a consistent snapshot across queries.
func (r txRunner) withReadOnlyTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (r txRunner) run(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
