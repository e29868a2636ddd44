package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrLastPhase         = errors.New("cannot delete the last phase")
	ErrPhaseOutOfRange   = errors.New("phase index out of range")
	ErrColumnOutOfRange  = errors.New("column index out of range")
	ErrInvalidDepartment = errors.New("invalid department")
)
