package job

import "errors"

// Sentinel errors for registry operations.
var (
	ErrUnknownJob        = errors.New("job: unknown job")
	ErrDuplicateID       = errors.New("job: duplicate job id")
	ErrJobGone           = errors.New("job: job is no longer running")
	ErrAlreadyRegistered = errors.New("job: cron job already registered")
	ErrNotRegistered     = errors.New("job: cron job not registered")
	ErrEmptyCommand      = errors.New("job: empty command")
)
