package driver

import (
	"fmt"
	"strings"
)

// State is the admission state of a driver stack. The four states are
// mutually exclusive.
type State int

const (
	// NullOrigin: no driver attached and no attach attempted since the last detach.
	NullOrigin State = iota
	// Rejected: the last attach named a null or unavailable driver.
	Rejected
	// Forced: a driver is attached without precondition evaluation.
	Forced
	// Explicit: a driver is attached after its precondition succeeded.
	Explicit
)

var stateNames = map[State]string{
	NullOrigin: "null_origin",
	Rejected:   "rejected",
	Forced:     "forced",
	Explicit:   "explicit",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Attached reports whether s holds a driver.
func (s State) Attached() bool {
	return s == Forced || s == Explicit
}

// ParseState accepts the names produced by State.String.
func ParseState(raw string) (State, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for s, name := range stateNames {
		if name == key {
			return s, nil
		}
	}
	return NullOrigin, fmt.Errorf("driver: unknown state %q", raw)
}

// Mode selects how Attach admits a driver.
type Mode string

const (
	ModeForced   Mode = "forced"
	ModeExplicit Mode = "explicit"
)

// ParseMode accepts "forced" or "explicit", case-insensitively.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeForced:
		return ModeForced, nil
	case ModeExplicit:
		return ModeExplicit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

func (m Mode) state() (State, bool) {
	switch m {
	case ModeForced:
		return Forced, true
	case ModeExplicit:
		return Explicit, true
	default:
		return NullOrigin, false
	}
}
