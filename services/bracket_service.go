package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adilet07/knockout-system/brackets"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
	"github.com/Adilet07/knockout-system/tokens"
)

type BracketService interface {
	// GenerateRoundOf16 seeds the opening round from exactly 16 player ids,
	// paired by original list order. Returns the ids of the 8 created matches.
	GenerateRoundOf16(ctx context.Context, tournamentID string, playerIDs []string) ([]int, error)

	// AdvanceWinners derives the next round from the confirmed matches of the
	// given round, pairing the winners of adjacent matches in creation order.
	// The final is terminal and yields an empty list.
	AdvanceWinners(ctx context.Context, tournamentID string, round models.Round) ([]int, error)
}

type bracketService struct {
	tx        TxRunner
	matchRepo repositories.MatchRepository
	issuer    *tokens.Issuer
	hub       *brackets.Hub
	logger    *slog.Logger
}

func NewBracketService(
	tx TxRunner,
	matchRepo repositories.MatchRepository,
	issuer *tokens.Issuer,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:        tx,
		matchRepo: matchRepo,
		issuer:    issuer,
		hub:       hub,
		logger:    logger,
	}
}

func (s *bracketService) GenerateRoundOf16(ctx context.Context, tournamentID string, playerIDs []string) ([]int, error) {
	if len(playerIDs) != brackets.RoundOf16Size {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPlayerCount, len(playerIDs))
	}

	pairs, err := brackets.PairAdjacent(playerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to pair round of 16: %w", err)
	}

	matchIDs, err := s.createRound(ctx, tournamentID, models.RoundOf16, pairs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("round of 16 generated",
		slog.String("tournament_id", tournamentID),
		slog.Int("matches", len(matchIDs)))
	s.hub.BroadcastToRoom(roomID(tournamentID), brackets.Event{
		Type:         brackets.EventBracketCreated,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"round": models.RoundOf16, "match_ids": matchIDs},
	})
	return matchIDs, nil
}

func (s *bracketService) AdvanceWinners(ctx context.Context, tournamentID string, round models.Round) ([]int, error) {
	if !round.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRound, round)
	}
	nextRound, ok := round.Next()
	if !ok {
		// The final has no next round; nothing to create.
		return []int{}, nil
	}

	statusConfirmed := models.MatchStatusConfirmed
	confirmed, err := s.matchRepo.ListByTournament(ctx, tournamentID, &round, &statusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to list confirmed %s matches for tournament %s: %w", round, tournamentID, err)
	}
	if len(confirmed) == 0 || len(confirmed)%2 != 0 {
		return nil, fmt.Errorf("%w: round %s has %d confirmed matches", ErrRoundIncomplete, round, len(confirmed))
	}

	winners := make([]string, 0, len(confirmed))
	for _, match := range confirmed {
		winner, ok := match.Winner()
		if !ok {
			return nil, fmt.Errorf("%w: match %d", ErrMatchWithoutWinner, match.ID)
		}
		winners = append(winners, winner)
	}

	pairs, err := brackets.PairAdjacent(winners)
	if err != nil {
		return nil, fmt.Errorf("failed to pair %s winners: %w", round, err)
	}

	matchIDs, err := s.createRound(ctx, tournamentID, nextRound, pairs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("winners advanced",
		slog.String("tournament_id", tournamentID),
		slog.String("from_round", string(round)),
		slog.String("to_round", string(nextRound)),
		slog.Int("matches", len(matchIDs)))
	s.hub.BroadcastToRoom(roomID(tournamentID), brackets.Event{
		Type:         brackets.EventRoundAdvanced,
		TournamentID: tournamentID,
		Payload:      map[string]interface{}{"round": nextRound, "match_ids": matchIDs},
	})
	return matchIDs, nil
}

// createRound persists one match per pair, each stamped with a fresh
// token and PIN, inside a single transaction.
func (s *bracketService) createRound(ctx context.Context, tournamentID string, round models.Round, pairs []brackets.Pair) ([]int, error) {
	matchIDs := make([]int, 0, len(pairs))

	err := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
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
				Round:        round,
				HomeID:       pair.Home,
				AwayID:       pair.Away,
				Status:       models.MatchStatusPending,
				Token:        token,
				PIN:          pin,
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				if errors.Is(err, repositories.ErrMatchTokenConflict) {
					return fmt.Errorf("token collision while creating %s match: %w", round, err)
				}
				return fmt.Errorf("failed to create %s match: %w", round, err)
			}
			matchIDs = append(matchIDs, match.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matchIDs, nil
}

func roomID(tournamentID string) string {
	return "tournament_" + tournamentID
}
