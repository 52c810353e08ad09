package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adilet07/knockout-system/brackets"
	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
	"github.com/Adilet07/knockout-system/storage"
	"github.com/Adilet07/knockout-system/tokens"
)

// In-memory repository fakes. Creation timestamps are strictly increasing so
// the creation-order guarantees of the Postgres implementations hold here too.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIssuer() *tokens.Issuer {
	return tokens.NewIssuer()
}

func testHub() *brackets.Hub {
	// Safe without Run: broadcasts to an empty room set are no-ops.
	return brackets.NewHub(testLogger())
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	seq     int
	clock   *fakeClock
	matches map[int]*models.Match
}

func newFakeMatchRepo(clock *fakeClock) *fakeMatchRepo {
	return &fakeMatchRepo{clock: clock, matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.matches {
		if existing.Token == match.Token {
			return repositories.ErrMatchTokenConflict
		}
	}
	r.seq++
	match.ID = r.seq
	match.CreatedAt = r.clock.Now()
	stored := *match
	r.matches[match.ID] = &stored
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID string, round *models.Round, status *models.MatchStatus) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matches := make([]*models.Match, 0)
	for _, match := range r.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if round != nil && match.Round != *round {
			continue
		}
		if status != nil && match.Status != *status {
			continue
		}
		copied := *match
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (r *fakeMatchRepo) UpdateScoreStatus(ctx context.Context, exec repositories.SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.HomeScore = homeScore
	match.AwayScore = awayScore
	match.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Status = status
	return nil
}

func (r *fakeMatchRepo) UpdateEvidence(ctx context.Context, id int, side models.MatchSide, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if side == models.SideAway {
		match.EvidenceAway = &key
	} else {
		match.EvidenceHome = &key
	}
	return nil
}

func (r *fakeMatchRepo) DeleteRoundCreatedSince(ctx context.Context, exec repositories.SQLExecutor, tournamentID string, round models.Round, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, match := range r.matches {
		if match.TournamentID == tournamentID && match.Round == round && !match.CreatedAt.Before(since) {
			delete(r.matches, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	seq         int
	clock       *fakeClock
	submissions map[int][]*models.Submission
	matchRepo   *fakeMatchRepo
}

func newFakeSubmissionRepo(clock *fakeClock, matchRepo *fakeMatchRepo) *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		clock:       clock,
		submissions: make(map[int][]*models.Submission),
		matchRepo:   matchRepo,
	}
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, submission *models.Submission) error {
	if r.matchRepo != nil {
		if _, err := r.matchRepo.GetByID(ctx, submission.MatchID); err != nil {
			return repositories.ErrSubmissionMatchInvalid
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	submission.ID = r.seq
	submission.CreatedAt = r.clock.Now()
	stored := *submission
	r.submissions[submission.MatchID] = append(r.submissions[submission.MatchID], &stored)
	return nil
}

func (r *fakeSubmissionRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]*models.Submission, 0, len(r.submissions[matchID]))
	for _, s := range r.submissions[matchID] {
		copied := *s
		list = append(list, &copied)
	}
	return list, nil
}

type advanceKey struct {
	tournamentID   string
	round          models.Round
	idempotencyKey string
}

type fakeAdvanceRepo struct {
	mu    sync.Mutex
	seq   int
	clock *fakeClock
	ops   map[advanceKey]*models.AdvanceOperation
}

func newFakeAdvanceRepo(clock *fakeClock) *fakeAdvanceRepo {
	return &fakeAdvanceRepo{clock: clock, ops: make(map[advanceKey]*models.AdvanceOperation)}
}

func (r *fakeAdvanceRepo) Create(ctx context.Context, exec repositories.SQLExecutor, op *models.AdvanceOperation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := advanceKey{op.TournamentID, op.Round, op.IdempotencyKey}
	if _, exists := r.ops[key]; exists {
		return repositories.ErrAdvanceOperationExists
	}
	r.seq++
	op.ID = r.seq
	op.CreatedAt = r.clock.Now()
	stored := *op
	r.ops[key] = &stored
	return nil
}

func (r *fakeAdvanceRepo) GetByKey(ctx context.Context, tournamentID string, round models.Round, idempotencyKey string) (*models.AdvanceOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[advanceKey{tournamentID, round, idempotencyKey}]
	if !ok {
		return nil, repositories.ErrAdvanceOperationNotFound
	}
	copied := *op
	return &copied, nil
}

func (r *fakeAdvanceRepo) GetByTournamentAndKey(ctx context.Context, tournamentID string, idempotencyKey string) (*models.AdvanceOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Same key in different rounds: the most recently created operation wins,
	// as in the Postgres implementation.
	var latest *models.AdvanceOperation
	for key, op := range r.ops {
		if key.tournamentID == tournamentID && key.idempotencyKey == idempotencyKey {
			if latest == nil || op.CreatedAt.After(latest.CreatedAt) {
				latest = op
			}
		}
	}
	if latest == nil {
		return nil, repositories.ErrAdvanceOperationNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeAdvanceRepo) ListByTournament(ctx context.Context, tournamentID string) ([]*models.AdvanceOperation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]*models.AdvanceOperation, 0)
	for key, op := range r.ops {
		if key.tournamentID == tournamentID {
			copied := *op
			ops = append(ops, &copied)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops, nil
}

func (r *fakeAdvanceRepo) MarkReverted(ctx context.Context, exec repositories.SQLExecutor, id int, revertedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.ops {
		if op.ID == id {
			if op.Reverted {
				return repositories.ErrAdvanceOperationReverted
			}
			op.Reverted = true
			at := revertedAt
			op.RevertedAt = &at
			return nil
		}
	}
	return repositories.ErrAdvanceOperationNotFound
}

type fakeUploader struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	failNext bool
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string][]byte)}
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failNext {
		u.failNext = false
		return nil, io.ErrUnexpectedEOF
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.uploaded[key] = data
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key, ETag: "etag"}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploaded, key)
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}
