package models

import "time"

// Submission — один отчёт о результате матча. Матч может накопить сколько
// угодно отчётов; решение принимают два последних (см. ConsensusService).
type Submission struct {
	ID           int       `json:"id"`
	MatchID      int       `json:"match_id"`
	ReporterID   string    `json:"reporter_id"`
	ScoreHome    int       `json:"score_home"`
	ScoreAway    int       `json:"score_away"`
	PIN          string    `json:"-"`
	EvidencePath *string   `json:"evidence_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
