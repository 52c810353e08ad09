package brackets

import "errors"

// RoundOf16Size is the fixed entry list length for a knockout cup.
const RoundOf16Size = 16

var (
	ErrNoParticipants  = errors.New("cannot pair an empty participant list")
	ErrOddParticipants = errors.New("cannot pair an odd number of participants")
)

// Pair is one prospective match: two participants in bracket order.
type Pair struct {
	Home string
	Away string
}

// PairAdjacent pairs participants by original list order: (0,1), (2,3), and
// so on. Both round-of-16 seeding and winner advancement use this rule, so
// list order is the bracket order.
func PairAdjacent(ids []string) ([]Pair, error) {
	if len(ids) == 0 {
		return nil, ErrNoParticipants
	}
	if len(ids)%2 != 0 {
		return nil, ErrOddParticipants
	}

	pairs := make([]Pair, 0, len(ids)/2)
	for i := 0; i < len(ids); i += 2 {
		pairs = append(pairs, Pair{Home: ids[i], Away: ids[i+1]})
	}
	return pairs, nil
}
