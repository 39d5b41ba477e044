package match

import "errors"

var (
	ErrMatchRunning        = errors.New("a match is already running")
	ErrNoMatch             = errors.New("no match is running")
	ErrNotCancellable      = errors.New("match can no longer be cancelled")
	ErrJoinClosed          = errors.New("match is not accepting players")
	ErrInvalidTransition   = errors.New("illegal phase transition")
	ErrInvalidPhase        = errors.New("not allowed in the current phase")
	ErrLoadoutClosed       = errors.New("kit selection is closed")
	ErrUnknownKit          = errors.New("unknown kit")
	ErrNotParticipant      = errors.New("player is not in the match")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPurchasePending     = errors.New("a kit purchase is still in progress")
)
