package services

import (
	"context"
	"testing"
	"time"

	"github.com/Adilet07/knockout-system/models"
	"github.com/Adilet07/knockout-system/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type advanceFixture struct {
	svc         AdvanceService
	matchRepo   *fakeMatchRepo
	advanceRepo *fakeAdvanceRepo
	clock       *fakeClock
}

func newAdvanceFixture(t *testing.T) *advanceFixture {
	t.Helper()
	clock := newFakeClock()
	matchRepo := newFakeMatchRepo(clock)
	advanceRepo := newFakeAdvanceRepo(clock)

	svc := NewAdvanceService(fakeTxRunner{}, matchRepo, advanceRepo, newTestIssuer(), testHub(), testLogger()).(*advanceService)
	svc.now = clock.Now

	return &advanceFixture{
		svc:         svc,
		matchRepo:   matchRepo,
		advanceRepo: advanceRepo,
		clock:       clock,
	}
}

func TestPreviewPairsWithoutPersisting(t *testing.T) {
	f := newAdvanceFixture(t)

	pairings, err := f.svc.Preview(context.Background(), "t1", models.RoundQuarter,
		[]string{"p1", "p3", "p5", "p7"}, nil)
	require.NoError(t, err)
	require.Len(t, pairings, 2)

	assert.Equal(t, 1, pairings[0].Position)
	assert.Equal(t, "p1", pairings[0].HomeID)
	assert.Equal(t, "p3", pairings[0].AwayID)
	assert.Nil(t, pairings[0].HomeSeed)
	assert.Equal(t, 2, pairings[1].Position)
	assert.Equal(t, "p5", pairings[1].HomeID)
	assert.Equal(t, "p7", pairings[1].AwayID)

	matches, err := f.matchRepo.ListByTournament(context.Background(), "t1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, matches, "preview must not create matches")

	ops, err := f.advanceRepo.ListByTournament(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, ops, "preview must not record an operation")
}

func TestPreviewCarriesSeeds(t *testing.T) {
	f := newAdvanceFixture(t)

	pairings, err := f.svc.Preview(context.Background(), "t1", models.RoundSemi,
		[]string{"p1", "p5"}, []string{"1", "4"})
	require.NoError(t, err)
	require.Len(t, pairings, 1)

	require.NotNil(t, pairings[0].HomeSeed)
	require.NotNil(t, pairings[0].AwaySeed)
	assert.Equal(t, "1", *pairings[0].HomeSeed)
	assert.Equal(t, "4", *pairings[0].AwaySeed)
}

func TestPreviewValidation(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		round   models.Round
		winners []string
		seeds   []string
		wantErr error
	}{
		{"unknown round", models.Round("R32"), []string{"a", "b"}, nil, ErrInvalidRound},
		{"final is terminal", models.RoundFinal, []string{"a", "b"}, nil, ErrNoNextRound},
		{"empty winners", models.RoundOf16, nil, nil, ErrWinnersListEmpty},
		{"odd winners", models.RoundOf16, []string{"a", "b", "c"}, nil, ErrWinnersListOdd},
		{"seeds length mismatch", models.RoundOf16, []string{"a", "b"}, []string{"1"}, ErrSeedsLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Preview(ctx, "t1", tt.round, tt.winners, tt.seeds)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfirmCreatesOperationAndMatches(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	result, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-qf-1")
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	require.Len(t, result.MatchIDs, 2)
	require.NotNil(t, result.Operation)
	assert.Equal(t, models.RoundQuarter, result.Operation.Round)
	assert.Equal(t, []string{"p1", "p5", "p9", "p13"}, result.Operation.Winners)

	semi := models.RoundSemi
	matches, err := f.matchRepo.ListByTournament(ctx, "t1", &semi, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "p1", matches[0].HomeID)
	assert.Equal(t, "p5", matches[0].AwayID)
	assert.Equal(t, "p9", matches[1].HomeID)
	assert.Equal(t, "p13", matches[1].AwayID)
}

func TestConfirmRequiresIdempotencyKey(t *testing.T) {
	f := newAdvanceFixture(t)

	_, err := f.svc.Confirm(context.Background(), "t1", models.RoundQuarter,
		[]string{"p1", "p5"}, nil, "")
	assert.ErrorIs(t, err, ErrIdempotencyKeyRequired)
}

func TestConfirmReplaysSameKey(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-qf-1")
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-qf-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Operation.ID, second.Operation.ID)

	semi := models.RoundSemi
	matches, err := f.matchRepo.ListByTournament(ctx, "t1", &semi, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2, "replay must not create additional matches")

	ops, err := f.advanceRepo.ListByTournament(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestConfirmReplayWinsOverValidation(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	first, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-qf-1")
	require.NoError(t, err)
	require.False(t, first.Replayed)

	// A retry with a mangled payload (odd winners list) still replays: the
	// existing-operation check runs before input validation.
	second, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9"}, nil, "adv-qf-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Operation.ID, second.Operation.ID)
}

func TestConfirmDistinctKeysCreateDistinctOperations(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter, []string{"p1", "p5"}, nil, "key-a")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "t1", models.RoundSemi, []string{"p1", "p9"}, nil, "key-b")
	require.NoError(t, err)

	ops, err := f.advanceRepo.ListByTournament(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestConfirmLosingInsertRaceTurnsIntoReplay(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	// Seed the operation behind the service's back, as a concurrent confirm
	// would between the existence check and the insert.
	op := &models.AdvanceOperation{
		TournamentID:   "t1",
		Round:          models.RoundQuarter,
		Winners:        []string{"p1", "p5"},
		IdempotencyKey: "adv-qf-1",
	}
	require.NoError(t, f.advanceRepo.Create(ctx, nil, op))

	raced := &racingAdvanceRepo{fakeAdvanceRepo: f.advanceRepo}
	svc := NewAdvanceService(fakeTxRunner{}, f.matchRepo, raced, newTestIssuer(), testHub(), testLogger())

	result, err := svc.Confirm(ctx, "t1", models.RoundQuarter, []string{"p1", "p5"}, nil, "adv-qf-1")
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, op.ID, result.Operation.ID)
	assert.Empty(t, result.MatchIDs)
}

// racingAdvanceRepo hides an existing operation from the pre-insert lookup so
// the storage uniqueness constraint is what stops the duplicate.
type racingAdvanceRepo struct {
	*fakeAdvanceRepo
	lookups int
}

func (r *racingAdvanceRepo) GetByKey(ctx context.Context, tournamentID string, round models.Round, idempotencyKey string) (*models.AdvanceOperation, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, repositories.ErrAdvanceOperationNotFound
	}
	return r.fakeAdvanceRepo.GetByKey(ctx, tournamentID, round, idempotencyKey)
}

func TestRevertWithinWindow(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	// A pre-existing semi final from an earlier advance must survive the revert.
	earlier := &models.Match{
		TournamentID: "t1",
		Round:        models.RoundSemi,
		HomeID:       "x1",
		AwayID:       "x2",
		Status:       models.MatchStatusPending,
		Token:        "tok-earlier",
		PIN:          "111111",
	}
	require.NoError(t, f.matchRepo.Create(ctx, nil, earlier))

	result, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-qf-1")
	require.NoError(t, err)
	require.Len(t, result.MatchIDs, 2)

	f.clock.Advance(10 * time.Second)

	op, err := f.svc.Revert(ctx, "t1", "adv-qf-1")
	require.NoError(t, err)
	assert.True(t, op.Reverted)
	require.NotNil(t, op.RevertedAt)

	semi := models.RoundSemi
	matches, err := f.matchRepo.ListByTournament(ctx, "t1", &semi, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1, "revert must delete exactly the matches the operation created")
	assert.Equal(t, earlier.ID, matches[0].ID)

	stored, err := f.advanceRepo.GetByTournamentAndKey(ctx, "t1", "adv-qf-1")
	require.NoError(t, err)
	assert.True(t, stored.Reverted)
}

func TestRevertAfterWindowExpires(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	result, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5"}, nil, "adv-qf-1")
	require.NoError(t, err)

	f.clock.Advance(31 * time.Second)

	_, err = f.svc.Revert(ctx, "t1", "adv-qf-1")
	assert.ErrorIs(t, err, ErrRevertWindowExpired)

	// The created matches stay in place.
	semi := models.RoundSemi
	matches, err := f.matchRepo.ListByTournament(ctx, "t1", &semi, nil)
	require.NoError(t, err)
	assert.Len(t, matches, len(result.MatchIDs))

	stored, err := f.advanceRepo.GetByTournamentAndKey(ctx, "t1", "adv-qf-1")
	require.NoError(t, err)
	assert.False(t, stored.Reverted)
}

func TestRevertTwice(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter, []string{"p1", "p5"}, nil, "adv-qf-1")
	require.NoError(t, err)

	_, err = f.svc.Revert(ctx, "t1", "adv-qf-1")
	require.NoError(t, err)

	_, err = f.svc.Revert(ctx, "t1", "adv-qf-1")
	assert.ErrorIs(t, err, ErrAlreadyReverted)
}

func TestRevertReusedKeyTargetsMostRecentOperation(t *testing.T) {
	f := newAdvanceFixture(t)
	ctx := context.Background()

	// The same key in two rounds is legal under the composite uniqueness rule.
	_, err := f.svc.Confirm(ctx, "t1", models.RoundQuarter,
		[]string{"p1", "p5", "p9", "p13"}, nil, "adv-1")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, "t1", models.RoundSemi,
		[]string{"p1", "p9"}, nil, "adv-1")
	require.NoError(t, err)

	op, err := f.svc.Revert(ctx, "t1", "adv-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoundSemi, op.Round)

	// The final created by the later confirm is gone; the earlier confirm's
	// semi finals stay.
	finalRound := models.RoundFinal
	finals, err := f.matchRepo.ListByTournament(ctx, "t1", &finalRound, nil)
	require.NoError(t, err)
	assert.Empty(t, finals)

	semi := models.RoundSemi
	semis, err := f.matchRepo.ListByTournament(ctx, "t1", &semi, nil)
	require.NoError(t, err)
	assert.Len(t, semis, 2)

	earlier, err := f.advanceRepo.GetByKey(ctx, "t1", models.RoundQuarter, "adv-1")
	require.NoError(t, err)
	assert.False(t, earlier.Reverted)
}

func TestRevertUnknownKey(t *testing.T) {
	f := newAdvanceFixture(t)

	_, err := f.svc.Revert(context.Background(), "t1", "never-confirmed")
	assert.ErrorIs(t, err, ErrAdvanceNotFound)
}

func TestRevertRequiresIdempotencyKey(t *testing.T) {
	f := newAdvanceFixture(t)

	_, err := f.svc.Revert(context.Background(), "t1", "")
	assert.ErrorIs(t, err, ErrIdempotencyKeyRequired)
}
