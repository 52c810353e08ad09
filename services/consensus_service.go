package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adilet07/knockout-system/brackets"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
)

// Reasons attached to a disputed consensus outcome.
const (
	ReasonPinMismatch   = "PIN mismatch"
	ReasonScoreMismatch = "Score mismatch"
)

// ConsensusResult is the outcome of evaluating a match's submissions.
// Disputed is a valid terminal state, not an error: it waits for the staff
// override path.
type ConsensusResult struct {
	Status models.MatchStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

type SubmissionInput struct {
	ReporterID   string
	ScoreHome    int
	ScoreAway    int
	PIN          string
	EvidencePath *string
}

type ConsensusService interface {
	// SubmitResult records a report and immediately re-evaluates the match.
	SubmitResult(ctx context.Context, matchID int, input SubmissionInput) (*ConsensusResult, error)

	// ApplySubmission re-evaluates a match from its two most recent
	// submissions. With fewer than two submissions it returns Pending and
	// leaves the match untouched. Re-invoking with no new submissions yields
	// the same result.
	ApplySubmission(ctx context.Context, matchID int) (*ConsensusResult, error)
}

type consensusService struct {
	matchRepo      repositories.MatchRepository
	submissionRepo repositories.SubmissionRepository
	hub            *brackets.Hub
	logger         *slog.Logger

	// Per-match serialization: two near-simultaneous submissions must not
	// each decide against a stale "last two" view.
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewConsensusService(
	matchRepo repositories.MatchRepository,
	submissionRepo repositories.SubmissionRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) ConsensusService {
	return &consensusService{
		matchRepo:      matchRepo,
		submissionRepo: submissionRepo,
		hub:            hub,
		logger:         logger,
		locks:          make(map[int]*sync.Mutex),
	}
}

func (s *consensusService) SubmitResult(ctx context.Context, matchID int, input SubmissionInput) (*ConsensusResult, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	submission := &models.Submission{
		MatchID:      matchID,
		ReporterID:   input.ReporterID,
		ScoreHome:    input.ScoreHome,
		ScoreAway:    input.ScoreAway,
		PIN:          input.PIN,
		EvidencePath: input.EvidencePath,
	}
	if err := s.submissionRepo.Create(ctx, nil, submission); err != nil {
		if errors.Is(err, repositories.ErrSubmissionMatchInvalid) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to record submission for match %d: %w", matchID, err)
	}

	return s.evaluateLocked(ctx, matchID)
}

func (s *consensusService) ApplySubmission(ctx context.Context, matchID int) (*ConsensusResult, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	return s.evaluateLocked(ctx, matchID)
}

func (s *consensusService) evaluateLocked(ctx context.Context, matchID int) (*ConsensusResult, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	submissions, err := s.submissionRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions for match %d: %w", matchID, err)
	}
	if len(submissions) < 2 {
		return &ConsensusResult{Status: models.MatchStatusPending}, nil
	}

	// Only the two most recently created submissions decide. A later report
	// displaces an older one from this window and may flip the outcome.
	older := submissions[len(submissions)-2]
	newer := submissions[len(submissions)-1]

	if older.PIN != newer.PIN {
		return s.dispute(ctx, match, ReasonPinMismatch)
	}
	if older.ScoreHome != newer.ScoreHome || older.ScoreAway != newer.ScoreAway {
		return s.dispute(ctx, match, ReasonScoreMismatch)
	}

	if err := s.matchRepo.UpdateScoreStatus(ctx, nil, match.ID, &newer.ScoreHome, &newer.ScoreAway, models.MatchStatusConfirmed); err != nil {
		return nil, fmt.Errorf("failed to confirm match %d: %w", match.ID, err)
	}

	if match.Status != models.MatchStatusConfirmed {
		s.logger.Info("match confirmed by consensus",
			slog.Int("match_id", match.ID),
			slog.Int("home_score", newer.ScoreHome),
			slog.Int("away_score", newer.ScoreAway))
		s.hub.BroadcastToRoom(roomID(match.TournamentID), brackets.Event{
			Type:         brackets.EventResultConfirmed,
			TournamentID: match.TournamentID,
			Payload: map[string]interface{}{
				"match_id":   match.ID,
				"home_score": newer.ScoreHome,
				"away_score": newer.ScoreAway,
			},
		})
	}
	return &ConsensusResult{Status: models.MatchStatusConfirmed}, nil
}

// dispute records the disputed status without writing scores.
func (s *consensusService) dispute(ctx context.Context, match *models.Match, reason string) (*ConsensusResult, error) {
	if err := s.matchRepo.UpdateStatus(ctx, nil, match.ID, models.MatchStatusDisputed); err != nil {
		return nil, fmt.Errorf("failed to mark match %d disputed: %w", match.ID, err)
	}

	if match.Status != models.MatchStatusDisputed {
		s.logger.Warn("match disputed",
			slog.Int("match_id", match.ID),
			slog.String("reason", reason))
		s.hub.BroadcastToRoom(roomID(match.TournamentID), brackets.Event{
			Type:         brackets.EventResultDisputed,
			TournamentID: match.TournamentID,
			Payload:      map[string]interface{}{"match_id": match.ID, "reason": reason},
		})
	}
	return &ConsensusResult{Status: models.MatchStatusDisputed, Reason: reason}, nil
}

func (s *consensusService) matchLock(matchID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[matchID] = lock
	}
	return lock
}
