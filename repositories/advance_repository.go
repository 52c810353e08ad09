package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Adilet07/knockout-system/models"
	"github.com/lib/pq"
)

var (
	ErrAdvanceOperationNotFound = errors.New("advance operation not found")
	// ErrAdvanceOperationExists surfaces the storage-level uniqueness of
	// (tournament_id, round, idempotency_key). An application-level existence
	// check alone would race between two concurrent confirms.
	ErrAdvanceOperationExists   = errors.New("advance operation already exists for this idempotency key")
	ErrAdvanceOperationReverted = errors.New("advance operation already reverted")
)

type AdvanceOperationRepository interface {
	Create(ctx context.Context, exec SQLExecutor, op *models.AdvanceOperation) error
	GetByKey(ctx context.Context, tournamentID string, round models.Round, idempotencyKey string) (*models.AdvanceOperation, error)
	GetByTournamentAndKey(ctx context.Context, tournamentID string, idempotencyKey string) (*models.AdvanceOperation, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]*models.AdvanceOperation, error)
	MarkReverted(ctx context.Context, exec SQLExecutor, id int, revertedAt time.Time) error
}

type postgresAdvanceOperationRepository struct {
	db *sql.DB
}

func NewPostgresAdvanceOperationRepository(db *sql.DB) AdvanceOperationRepository {
	return &postgresAdvanceOperationRepository{db: db}
}

func (r *postgresAdvanceOperationRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAdvanceOperationRepository) Create(ctx context.Context, exec SQLExecutor, op *models.AdvanceOperation) error {
	winnersJSON, err := json.Marshal(op.Winners)
	if err != nil {
		return fmt.Errorf("failed to marshal winners snapshot: %w", err)
	}
	var seedsJSON *string
	if len(op.Seeds) > 0 {
		raw, err := json.Marshal(op.Seeds)
		if err != nil {
			return fmt.Errorf("failed to marshal seeds snapshot: %w", err)
		}
		s := string(raw)
		seedsJSON = &s
	}

	query := `
		INSERT INTO advance_operations
			(tournament_id, round, winners, seeds, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.executor(exec).QueryRowContext(ctx, query,
		op.TournamentID,
		op.Round,
		string(winnersJSON),
		seedsJSON,
		op.IdempotencyKey,
	).Scan(&op.ID, &op.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "advance_operations_tournament_round_key_key" {
			return ErrAdvanceOperationExists
		}
		return fmt.Errorf("failed to insert advance operation for tournament %s: %w", op.TournamentID, err)
	}
	return nil
}

func (r *postgresAdvanceOperationRepository) GetByKey(ctx context.Context, tournamentID string, round models.Round, idempotencyKey string) (*models.AdvanceOperation, error) {
	query := `
		SELECT id, tournament_id, round, winners, seeds, idempotency_key, created_at, reverted_at, reverted
		FROM advance_operations
		WHERE tournament_id = $1 AND round = $2 AND idempotency_key = $3`

	return r.scanOne(r.db.QueryRowContext(ctx, query, tournamentID, round, idempotencyKey))
}

// GetByTournamentAndKey resolves an idempotency key without knowing the round.
// The composite UNIQUE allows the same key in different rounds of one
// tournament, so the most recently created operation wins.
func (r *postgresAdvanceOperationRepository) GetByTournamentAndKey(ctx context.Context, tournamentID string, idempotencyKey string) (*models.AdvanceOperation, error) {
	query := `
		SELECT id, tournament_id, round, winners, seeds, idempotency_key, created_at, reverted_at, reverted
		FROM advance_operations
		WHERE tournament_id = $1 AND idempotency_key = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, tournamentID, idempotencyKey))
}

func (r *postgresAdvanceOperationRepository) ListByTournament(ctx context.Context, tournamentID string) ([]*models.AdvanceOperation, error) {
	query := `
		SELECT id, tournament_id, round, winners, seeds, idempotency_key, created_at, reverted_at, reverted
		FROM advance_operations
		WHERE tournament_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query advance operations for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	ops := make([]*models.AdvanceOperation, 0)
	for rows.Next() {
		op := &models.AdvanceOperation{}
		var winnersJSON string
		var seedsJSON *string
		if scanErr := rows.Scan(
			&op.ID,
			&op.TournamentID,
			&op.Round,
			&winnersJSON,
			&seedsJSON,
			&op.IdempotencyKey,
			&op.CreatedAt,
			&op.RevertedAt,
			&op.Reverted,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan advance operation row: %w", scanErr)
		}
		if err := json.Unmarshal([]byte(winnersJSON), &op.Winners); err != nil {
			return nil, fmt.Errorf("failed to unmarshal winners snapshot for operation %d: %w", op.ID, err)
		}
		if seedsJSON != nil {
			if err := json.Unmarshal([]byte(*seedsJSON), &op.Seeds); err != nil {
				return nil, fmt.Errorf("failed to unmarshal seeds snapshot for operation %d: %w", op.ID, err)
			}
		}
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during advance operation rows iteration: %w", err)
	}
	return ops, nil
}

// MarkReverted flips the operation to reverted. The WHERE clause on the
// reverted flag makes a duplicate call observe AlreadyReverted instead of
// silently rewriting the timestamp.
func (r *postgresAdvanceOperationRepository) MarkReverted(ctx context.Context, exec SQLExecutor, id int, revertedAt time.Time) error {
	query := `UPDATE advance_operations SET reverted = TRUE, reverted_at = $1 WHERE id = $2 AND reverted = FALSE`
	result, err := r.executor(exec).ExecContext(ctx, query, revertedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark advance operation %d reverted: %w", id, err)
	}
	return checkAffectedRows(result, ErrAdvanceOperationReverted)
}

func (r *postgresAdvanceOperationRepository) scanOne(row *sql.Row) (*models.AdvanceOperation, error) {
	op := &models.AdvanceOperation{}
	var winnersJSON string
	var seedsJSON *string

	err := row.Scan(
		&op.ID,
		&op.TournamentID,
		&op.Round,
		&winnersJSON,
		&seedsJSON,
		&op.IdempotencyKey,
		&op.CreatedAt,
		&op.RevertedAt,
		&op.Reverted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdvanceOperationNotFound
		}
		return nil, fmt.Errorf("failed to scan advance operation: %w", err)
	}

	if err := json.Unmarshal([]byte(winnersJSON), &op.Winners); err != nil {
		return nil, fmt.Errorf("failed to unmarshal winners snapshot for operation %d: %w", op.ID, err)
	}
	if seedsJSON != nil {
		if err := json.Unmarshal([]byte(*seedsJSON), &op.Seeds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seeds snapshot for operation %d: %w", op.ID, err)
		}
	}
	return op, nil
}
