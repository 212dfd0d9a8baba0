package game

import (
	"errors"

	"github.com/udisondev/gridmerge/internal/cellstate"
)

var (
	// ErrOutOfRange is returned when an activated cell fails the proximity check.
	ErrOutOfRange = errors.New("cell is out of interaction range")

	// ErrCorruptSnapshot is returned when imported data fails structural validation.
	// Recoverable: callers fall back to a fresh game.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrInvariantViolation is an internal-consistency fault; never repaired silently.
	ErrInvariantViolation = cellstate.ErrInvariantViolation
)
