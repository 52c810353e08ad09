package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adilet07/knockout-system/brackets"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
)

// AdminService is the override path for matches consensus could not settle:
// staff set both scores directly and force the status, bypassing the
// dual-report check entirely.
type AdminService interface {
	OverrideResult(ctx context.Context, matchID int, homeScore, awayScore int, status models.MatchStatus) (*models.Match, error)
}

type adminService struct {
	matchRepo repositories.MatchRepository
	hub       *brackets.Hub
	logger    *slog.Logger
}

func NewAdminService(matchRepo repositories.MatchRepository, hub *brackets.Hub, logger *slog.Logger) AdminService {
	return &adminService{matchRepo: matchRepo, hub: hub, logger: logger}
}

func (s *adminService) OverrideResult(ctx context.Context, matchID int, homeScore, awayScore int, status models.MatchStatus) (*models.Match, error) {
	if status != models.MatchStatusConfirmed && status != models.MatchStatusWarning {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOverrideStatus, status)
	}

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	if err := s.matchRepo.UpdateScoreStatus(ctx, nil, match.ID, &homeScore, &awayScore, status); err != nil {
		return nil, fmt.Errorf("failed to override result for match %d: %w", match.ID, err)
	}

	match.HomeScore = &homeScore
	match.AwayScore = &awayScore
	match.Status = status

	s.logger.Info("match result overridden",
		slog.Int("match_id", match.ID),
		slog.Int("home_score", homeScore),
		slog.Int("away_score", awayScore),
		slog.String("status", string(status)))
	if status == models.MatchStatusConfirmed {
		s.hub.BroadcastToRoom(roomID(match.TournamentID), brackets.Event{
			Type:         brackets.EventResultConfirmed,
			TournamentID: match.TournamentID,
			Payload: map[string]interface{}{
				"match_id":   match.ID,
				"home_score": homeScore,
				"away_score": awayScore,
				"overridden": true,
			},
		})
	}
	return match, nil
}
