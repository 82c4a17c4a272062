package scan

import (
	"fmt"

	"petscan/internal/services"
)

var (
	// ErrAttemptPending rejects a capture while a search is in flight.
	ErrAttemptPending = fmt.Errorf("%w: a search is already in progress", services.ErrValidation)
	// ErrInvalidTransition rejects an action that is not valid in the current mode.
	ErrInvalidTransition = fmt.Errorf("%w: action not valid in current mode", services.ErrValidation)
	// ErrNoCandidate rejects a selection that is not among the offered candidates.
	ErrNoCandidate = fmt.Errorf("%w: no such candidate", services.ErrValidation)
	// ErrClosed is returned after Close.
	ErrClosed = fmt.Errorf("%w: scan controller closed", services.ErrConfiguration)
	// ErrStale reports that the session ended while the operation was running.
	ErrStale = fmt.Errorf("%w: session ended before the operation finished", services.ErrValidation)
)

func invalid(mode Mode, action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, mode)
}
