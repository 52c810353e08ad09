package services

import "errors"

// Общие ошибки сервисного слоя, маппятся на HTTP в handlers.
var (
	// Невалидный ввод: отклоняется сразу, без повторов.
	ErrInvalidPlayerCount     = errors.New("round of 16 requires exactly 16 player ids")
	ErrWinnersListEmpty       = errors.New("winners list must not be empty")
	ErrWinnersListOdd         = errors.New("winners list must contain an even number of players")
	ErrSeedsLengthMismatch    = errors.New("seeds, when provided, must match the winners list length")
	ErrInvalidRound           = errors.New("invalid round")
	ErrInvalidMatchSide       = errors.New("invalid match side")
	ErrInvalidOverrideStatus  = errors.New("override status must be confirmed or warning")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")

	// Невалидное состояние: вызывающий должен сначала завершить раунд.
	ErrRoundIncomplete    = errors.New("round does not have a complete set of confirmed matches")
	ErrMatchWithoutWinner = errors.New("confirmed match has level scores, no winner to advance")
	ErrNoNextRound        = errors.New("the final has no next round")

	// Не найдено
	ErrMatchNotFound   = errors.New("match not found")
	ErrAdvanceNotFound = errors.New("advance operation not found")

	// Откат advance-операции: различимые, нефатальные исходы.
	ErrRevertWindowExpired = errors.New("revert window has expired")
	ErrAlreadyReverted     = errors.New("advance operation already reverted")

	// Доступ
	ErrInvalidMatchToken = errors.New("invalid match token")
)
