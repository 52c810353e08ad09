package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adilet07/knockout-system/brackets"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
	"github.com/Adilet07/knockout-system/tokens"
)

// advanceRevertWindow is how long a confirmed advance stays undoable.
// Measured against wall clock, matching the stored created_at.
const advanceRevertWindow = 30 * time.Second

// PreviewPairing is one prospective next-round match shown to staff before
// they commit an advance.
type PreviewPairing struct {
	Position int     `json:"position"`
	HomeID   string  `json:"home_id"`
	AwayID   string  `json:"away_id"`
	HomeSeed *string `json:"home_seed,omitempty"`
	AwaySeed *string `json:"away_seed,omitempty"`
}

// AdvanceResult reports a confirmed advance. Replayed is true when the
// idempotency key had already been used and nothing new was created.
type AdvanceResult struct {
	Operation *models.AdvanceOperation `json:"operation"`
	MatchIDs  []int                    `json:"match_ids,omitempty"`
	Replayed  bool                     `json:"replayed"`
}

// AdvanceService runs the preview/confirm/revert protocol that turns a
// round's winners into the next round's matches.
type AdvanceService interface {
	// Preview is a pure dry run: it validates and pairs but persists nothing.
	Preview(ctx context.Context, tournamentID string, round models.Round, winners, seeds []string) ([]PreviewPairing, error)

	// Confirm creates the advance operation and the next-round matches in one
	// transaction. A repeated idempotency key returns success with no further
	// side effects.
	Confirm(ctx context.Context, tournamentID string, round models.Round, winners, seeds []string, idempotencyKey string) (*AdvanceResult, error)

	// Revert undoes a confirmed advance within the revert window, deleting
	// exactly the matches that confirm created.
	Revert(ctx context.Context, tournamentID, idempotencyKey string) (*models.AdvanceOperation, error)
}

type advanceService struct {
	tx          TxRunner
	matchRepo   repositories.MatchRepository
	advanceRepo repositories.AdvanceOperationRepository
	issuer      *tokens.Issuer
	hub         *brackets.Hub
	logger      *slog.Logger

	// now is swapped out in tests; the window itself is not configurable.
	now func() time.Time
}

func NewAdvanceService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	advanceRepo repositories.AdvanceOperationRepository,
	issuer *tokens.Issuer,
	hub *brackets.Hub,
	logger *slog.Logger,
) AdvanceService {
	return &advanceService{
		tx:          tx,
		matchRepo:   matchRepo,
		advanceRepo: advanceRepo,
		issuer:      issuer,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *advanceService) Preview(ctx context.Context, tournamentID string, round models.Round, winners, seeds []string) ([]PreviewPairing, error) {
	_, pairs, err := s.validate(round, winners, seeds)
	if err != nil {
		return nil, err
	}

	pairings := make([]PreviewPairing, 0, len(pairs))
	for i, pair := range pairs {
		pairing := PreviewPairing{
			Position: i + 1,
			HomeID:   pair.Home,
			AwayID:   pair.Away,
		}
		if len(seeds) > 0 {
			homeSeed := seeds[2*i]
			awaySeed := seeds[2*i+1]
			pairing.HomeSeed = &homeSeed
			pairing.AwaySeed = &awaySeed
		}
		pairings = append(pairings, pairing)
	}
	return pairings, nil
}

func (s *advanceService) Confirm(ctx context.Context, tournamentID string, round models.Round, winners, seeds []string, idempotencyKey string) (*AdvanceResult, error) {
	if idempotencyKey == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	// Idempotent replay path, safe for retried requests. Checked before
	// validation: a retry of an already-applied operation succeeds even when
	// its payload would no longer validate.
	existing, err := s.advanceRepo.GetByKey(ctx, tournamentID, round, idempotencyKey)
	if err == nil {
		return &AdvanceResult{Operation: existing, Replayed: true}, nil
	}
	if !errors.Is(err, repositories.ErrAdvanceOperationNotFound) {
		return nil, fmt.Errorf("failed to look up advance operation: %w", err)
	}

	nextRound, pairs, err := s.validate(round, winners, seeds)
	if err != nil {
		return nil, err
	}

	op := &models.AdvanceOperation{
		TournamentID:   tournamentID,
		Round:          round,
		Winners:        winners,
		Seeds:          seeds,
		IdempotencyKey: idempotencyKey,
	}
	matchIDs := make([]int, 0, len(pairs))

	txErr := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.advanceRepo.Create(ctx, exec, op); err != nil {
			return err
		}
		for _, pair := range pairs {
			token, err := s.issuer.GenToken(tokens.DefaultTokenLength)
			if err != nil {
				return err
			}
			pin, err := s.issuer.GenPin(tokens.DefaultPinDigits)
			if err != nil {
				return err
			}
			match := &models.Match{
				TournamentID: tournamentID,
				Round:        nextRound,
				HomeID:       pair.Home,
				AwayID:       pair.Away,
				Status:       models.MatchStatusPending,
				Token:        token,
				PIN:          pin,
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return fmt.Errorf("failed to create %s match: %w", nextRound, err)
			}
			matchIDs = append(matchIDs, match.ID)
		}
		return nil
	})
	if txErr != nil {
		// A concurrent confirm with the same key won the insert race; the
		// storage uniqueness constraint turned our attempt into a replay.
		if errors.Is(txErr, repositories.ErrAdvanceOperationExists) {
			winner, lookupErr := s.advanceRepo.GetByKey(ctx, tournamentID, round, idempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load concurrently created advance operation: %w", lookupErr)
			}
			return &AdvanceResult{Operation: winner, Replayed: true}, nil
		}
		return nil, txErr
	}

	s.logger.Info("advance confirmed",
		slog.String("tournament_id", tournamentID),
		slog.String("round", string(round)),
		slog.String("idempotency_key", idempotencyKey),
		slog.Int("matches", len(matchIDs)))
	s.hub.BroadcastToRoom(roomID(tournamentID), brackets.Event{
		Type:         brackets.EventRoundAdvanced,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"round": nextRound, "match_ids": matchIDs},
	})
	return &AdvanceResult{Operation: op, MatchIDs: matchIDs, Replayed: false}, nil
}

func (s *advanceService) Revert(ctx context.Context, tournamentID, idempotencyKey string) (*models.AdvanceOperation, error) {
	if idempotencyKey == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	op, err := s.advanceRepo.GetByTournamentAndKey(ctx, tournamentID, idempotencyKey)
	if err != nil {
		if errors.Is(err, repositories.ErrAdvanceOperationNotFound) {
			return nil, ErrAdvanceNotFound
		}
		return nil, fmt.Errorf("failed to look up advance operation: %w", err)
	}

	now := s.now()
	if now.Sub(op.CreatedAt) > advanceRevertWindow {
		return nil, fmt.Errorf("%w: confirmed at %s", ErrRevertWindowExpired, op.CreatedAt.Format(time.RFC3339))
	}
	if op.Reverted {
		return nil, ErrAlreadyReverted
	}

	nextRound, ok := op.Round.Next()
	if !ok {
		return nil, fmt.Errorf("%w: operation %d advances from the final", ErrNoNextRound, op.ID)
	}

	var deleted int64
	txErr := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		// Deletes exactly the matches this operation produced: same round,
		// created no earlier than the operation itself.
		var err error
		deleted, err = s.matchRepo.DeleteRoundCreatedSince(ctx, exec, tournamentID, nextRound, op.CreatedAt)
		if err != nil {
			return err
		}
		if err := s.advanceRepo.MarkReverted(ctx, exec, op.ID, now); err != nil {
			if errors.Is(err, repositories.ErrAdvanceOperationReverted) {
				return ErrAlreadyReverted
			}
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	op.Reverted = true
	op.RevertedAt = &now

	s.logger.Info("advance reverted",
		slog.String("tournament_id", tournamentID),
		slog.String("idempotency_key", idempotencyKey),
		slog.Int64("matches_deleted", deleted))
	s.hub.BroadcastToRoom(roomID(tournamentID), brackets.Event{
		Type:         brackets.EventAdvanceReverted,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"round": nextRound, "idempotency_key": idempotencyKey},
	})
	return op, nil
}

// validate applies the shared preview/confirm input rules and returns the
// target round with the prospective pairs.
func (s *advanceService) validate(round models.Round, winners, seeds []string) (models.Round, []brackets.Pair, error) {
	if !round.Valid() {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidRound, round)
	}
	nextRound, ok := round.Next()
	if !ok {
		return "", nil, ErrNoNextRound
	}
	if len(winners) == 0 {
		return "", nil, ErrWinnersListEmpty
	}
	if len(winners)%2 != 0 {
		return "", nil, ErrWinnersListOdd
	}
	if len(seeds) > 0 && len(seeds) != len(winners) {
		return "", nil, ErrSeedsLengthMismatch
	}

	pairs, err := brackets.PairAdjacent(winners)
	if err != nil {
		return "", nil, err
	}
	return nextRound, pairs, nil
}
