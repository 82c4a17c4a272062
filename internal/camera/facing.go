package camera

import (
	"fmt"
	"strings"
)

// Facing selects which physical camera a session uses.
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

// Opposite returns the other facing.
func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// ParseFacing accepts "front" or "back" in any case.
func ParseFacing(value string) (Facing, error) {
	switch Facing(strings.ToLower(strings.TrimSpace(value))) {
	case FacingFront:
		return FacingFront, nil
	case FacingBack:
		return FacingBack, nil
	default:
		return "", fmt.Errorf("unknown camera facing %q (use front or back)", value)
	}
}
