package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
	"github.com/Adilet07/knockout-system/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TournamentOverview aggregates everything the bracket view needs.
type TournamentOverview struct {
	TournamentID string                     `json:"tournament_id"`
	Matches      []*models.Match            `json:"matches"`
	Operations   []*models.AdvanceOperation `json:"advance_operations"`
}

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID string, round *models.Round, status *models.MatchStatus) ([]*models.Match, error)
	TournamentOverview(ctx context.Context, tournamentID string) (*TournamentOverview, error)

	// VerifyToken checks a submission token against the match's stored token
	// and returns the match on success.
	VerifyToken(ctx context.Context, matchID int, token string) (*models.Match, error)

	// AttachEvidence stores an evidence image for one side of a match and
	// records the object key on the match row. The bytes are never inspected.
	AttachEvidence(ctx context.Context, matchID int, side models.MatchSide, contentType string, reader io.Reader) (*storage.UploadResult, error)
}

type matchService struct {
	matchRepo   repositories.MatchRepository
	advanceRepo repositories.AdvanceOperationRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	advanceRepo repositories.AdvanceOperationRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:   matchRepo,
		advanceRepo: advanceRepo,
		uploader:    uploader,
		logger:      logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID string, round *models.Round, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, round, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %s: %w", tournamentID, err)
	}
	return matches, nil
}

func (s *matchService) TournamentOverview(ctx context.Context, tournamentID string) (*TournamentOverview, error) {
	overview := &TournamentOverview{TournamentID: tournamentID}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches, err := s.matchRepo.ListByTournament(gCtx, tournamentID, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to list matches for tournament %s: %w", tournamentID, err)
		}
		overview.Matches = matches
		return nil
	})
	g.Go(func() error {
		ops, err := s.advanceRepo.ListByTournament(gCtx, tournamentID)
		if err != nil {
			return fmt.Errorf("failed to list advance operations for tournament %s: %w", tournamentID, err)
		}
		overview.Operations = ops
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

func (s *matchService) VerifyToken(ctx context.Context, matchID int, token string) (*models.Match, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(match.Token), []byte(token)) != 1 {
		return nil, ErrInvalidMatchToken
	}
	return match, nil
}

func (s *matchService) AttachEvidence(ctx context.Context, matchID int, side models.MatchSide, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMatchSide, side)
	}
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("evidence/match_%d/%s_%s", match.ID, side, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload evidence for match %d: %w", match.ID, err)
	}

	if err := s.matchRepo.UpdateEvidence(ctx, match.ID, side, result.Key); err != nil {
		// Best effort: do not leave an orphan object behind a failed row update.
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.Error("failed to delete orphaned evidence object",
				slog.String("key", result.Key), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("failed to record evidence key for match %d: %w", match.ID, err)
	}

	s.logger.Info("evidence attached",
		slog.Int("match_id", match.ID),
		slog.String("side", string(side)),
		slog.String("key", result.Key))
	return result, nil
}
