package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when stopping a scheduler that was never started
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when the daily schedule cannot be parsed
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
