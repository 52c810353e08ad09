package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Adilet07/knockout-system/models"
	"github.com/lib/pq"
)

var (
	ErrSubmissionMatchInvalid = errors.New("submission references an unknown match")
)

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, submission *models.Submission) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.Submission, error)
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, submission *models.Submission) error {
	query := `
		INSERT INTO submissions
			(match_id, reporter_id, score_home, score_away, pin, evidence_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		submission.MatchID,
		submission.ReporterID,
		submission.ScoreHome,
		submission.ScoreAway,
		submission.PIN,
		submission.EvidencePath,
	).Scan(&submission.ID, &submission.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "submissions_match_id_fkey" {
			return ErrSubmissionMatchInvalid
		}
		return fmt.Errorf("failed to insert submission for match %d: %w", submission.MatchID, err)
	}
	return nil
}

// ListByMatch returns all submissions for a match in creation order, oldest
// first. The consensus decision consults the last two of this list.
func (r *postgresSubmissionRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.Submission, error) {
	query := `
		SELECT id, match_id, reporter_id, score_home, score_away, pin, evidence_path, created_at
		FROM submissions
		WHERE match_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions for match %d: %w", matchID, err)
	}
	defer rows.Close()

	submissions := make([]*models.Submission, 0)
	for rows.Next() {
		var s models.Submission
		if scanErr := rows.Scan(
			&s.ID,
			&s.MatchID,
			&s.ReporterID,
			&s.ScoreHome,
			&s.ScoreAway,
			&s.PIN,
			&s.EvidencePath,
			&s.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", scanErr)
		}
		submissions = append(submissions, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during submission rows iteration: %w", err)
	}
	return submissions, nil
}
