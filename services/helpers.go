package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adilet07/knockout-system/repositories"
)

// TxRunner demarcates one atomic storage transaction. Any error returned by
// fn rolls the whole transaction back, so partial state is never observable.
// Keeping it behind an interface makes transaction boundaries explicit and
// lets service logic run against in-memory repositories in tests.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
