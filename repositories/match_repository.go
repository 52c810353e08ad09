package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Adilet07/knockout-system/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchTokenConflict    = errors.New("match token already exists")
	ErrMatchScoresIncomplete = errors.New("match scores must both be set or both be null")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID string, round *models.Round, status *models.MatchStatus) ([]*models.Match, error)
	UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	UpdateEvidence(ctx context.Context, id int, side models.MatchSide, key string) error
	DeleteRoundCreatedSince(ctx context.Context, exec SQLExecutor, tournamentID string, round models.Round, since time.Time) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, round, home_id, away_id, home_score, away_score,
	       status, token, pin, evidence_home, evidence_away, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(tournament_id, round, home_id, away_id, home_score, away_score,
			 status, token, pin, evidence_home, evidence_away)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		match.TournamentID,
		match.Round,
		match.HomeID,
		match.AwayID,
		match.HomeScore,
		match.AwayScore,
		match.Status,
		match.Token,
		match.PIN,
		match.EvidenceHome,
		match.EvidenceAway,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.TournamentID,
		&match.Round,
		&match.HomeID,
		&match.AwayID,
		&match.HomeScore,
		&match.AwayScore,
		&match.Status,
		&match.Token,
		&match.PIN,
		&match.EvidenceHome,
		&match.EvidenceAway,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID string, round *models.Round, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if round != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *round)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}

	// Creation order is load-bearing: advancement pairs adjacent matches.
	queryBuilder.WriteString(" ORDER BY created_at ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := rows.Scan(
			&match.ID,
			&match.TournamentID,
			&match.Round,
			&match.HomeID,
			&match.AwayID,
			&match.HomeScore,
			&match.AwayScore,
			&match.Status,
			&match.Token,
			&match.PIN,
			&match.EvidenceHome,
			&match.EvidenceAway,
			&match.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateScoreStatus(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	if (homeScore == nil) != (awayScore == nil) {
		return ErrMatchScoresIncomplete
	}

	query := `UPDATE matches SET home_score = $1, away_score = $2, status = $3 WHERE id = $4`
	result, err := r.executor(exec).ExecContext(ctx, query, homeScore, awayScore, status, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateStatus changes only the status and leaves the score columns alone.
// The dispute path uses it: a disputed decision must not write scores.
func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	query := `UPDATE matches SET status = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update status for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateEvidence(ctx context.Context, id int, side models.MatchSide, key string) error {
	column := "evidence_home"
	if side == models.SideAway {
		column = "evidence_away"
	}

	query := fmt.Sprintf(`UPDATE matches SET %s = $1 WHERE id = $2`, column)
	result, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("failed to update %s for match %d: %w", column, id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// DeleteRoundCreatedSince removes the matches an advance operation produced:
// exactly the rows of the given round created at or after the operation itself.
func (r *postgresMatchRepository) DeleteRoundCreatedSince(ctx context.Context, exec SQLExecutor, tournamentID string, round models.Round, since time.Time) (int64, error) {
	query := `DELETE FROM matches WHERE tournament_id = $1 AND round = $2 AND created_at >= $3`
	result, err := r.executor(exec).ExecContext(ctx, query, tournamentID, round, since)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s matches for tournament %s: %w", round, tournamentID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return rowsAffected, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23505": unique_violation
		if pqErr.Constraint == "matches_token_key" {
			return ErrMatchTokenConflict
		}
	}
	return err
}
