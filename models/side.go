package models

// MatchSide identifies which participant of a match a piece of evidence
// belongs to.
type MatchSide string

const (
	SideHome MatchSide = "home"
	SideAway MatchSide = "away"
)

func (s MatchSide) Valid() bool {
	return s == SideHome || s == SideAway
}
