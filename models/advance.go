package models

import "time"

// AdvanceOperation — audit record of one confirmed "advance winners" call.
// Created once by Confirm, mutated exactly once by Revert, never deleted.
// Winners and Seeds are snapshots: nothing queries them back out per element.
type AdvanceOperation struct {
	ID             int        `json:"id"`
	TournamentID   string     `json:"tournament_id"`
	Round          Round      `json:"round"`
	Winners        []string   `json:"winners"`
	Seeds          []string   `json:"seeds,omitempty"`
	IdempotencyKey string     `json:"idempotency_key"`
	CreatedAt      time.Time  `json:"created_at"`
	RevertedAt     *time.Time `json:"reverted_at,omitempty"`
	Reverted       bool       `json:"reverted"`
}
