package models

import (
	"fmt"
	"time"
)

// Round представляет стадию плей-офф, соответствует ENUM в БД.
type Round string

const (
	RoundOf16    Round = "R16"
	RoundQuarter Round = "QF"
	RoundSemi    Round = "SF"
	RoundFinal   Round = "F"
)

// roundOrder fixes the total order R16 < QF < SF < F.
var roundOrder = []Round{RoundOf16, RoundQuarter, RoundSemi, RoundFinal}

func ParseRound(s string) (Round, error) {
	r := Round(s)
	for _, known := range roundOrder {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown round %q", s)
}

// Next returns the following round. ok is false for the final, which has
// no next round.
func (r Round) Next() (next Round, ok bool) {
	for i, known := range roundOrder {
		if r == known {
			if i+1 < len(roundOrder) {
				return roundOrder[i+1], true
			}
			return "", false
		}
	}
	return "", false
}

func (r Round) Valid() bool {
	for _, known := range roundOrder {
		if r == known {
			return true
		}
	}
	return false
}

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusDisputed  MatchStatus = "disputed"
	// MatchStatusWarning parks a match that needs staff attention without
	// resolving it. Only the admin override path sets it.
	MatchStatusWarning MatchStatus = "warning"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusConfirmed, MatchStatusDisputed, MatchStatusWarning:
		return true
	}
	return false
}

// Match — одна пара сетки. HomeScore/AwayScore либо оба NULL, либо оба заполнены.
type Match struct {
	ID           int         `json:"id"`
	TournamentID string      `json:"tournament_id"`
	Round        Round       `json:"round"`
	HomeID       string      `json:"home_id"`
	AwayID       string      `json:"away_id"`
	HomeScore    *int        `json:"home_score,omitempty"`
	AwayScore    *int        `json:"away_score,omitempty"`
	Status       MatchStatus `json:"status"`
	// Token и PIN — секреты матча; наружу они уходят только через
	// staff-ответ (см. handlers), никогда через общую сериализацию.
	Token        string    `json:"-"`
	PIN          string    `json:"-"`
	EvidenceHome *string   `json:"evidence_home,omitempty"`
	EvidenceAway *string   `json:"evidence_away,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Winner returns the side with the strictly higher confirmed score.
// ok is false while the match is unscored or the scores are level.
func (m *Match) Winner() (playerID string, ok bool) {
	if m.HomeScore == nil || m.AwayScore == nil {
		return "", false
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return m.HomeID, true
	case *m.AwayScore > *m.HomeScore:
		return m.AwayID, true
	}
	return "", false
}
