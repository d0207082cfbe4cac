package timer

import "errors"

var (
	ErrNotFound           = errors.New("task not found")
	ErrForbidden          = errors.New("not authorized to operate this task timer")
	ErrPreconditionFailed = errors.New("must clock in to start or resume tasks")
	ErrConflict           = errors.New("another task timer is already running")
	ErrInvalidState       = errors.New("invalid task status for this action")
)
