package tool

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSpawn       = errors.New("tool could not be started")
	ErrNonZeroExit = errors.New("tool exited with non-zero status")
	ErrTimeout     = errors.New("tool timed out")
)

// SpawnError reports an executable that could not be started.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() []error { return []error{ErrSpawn, e.Err} }

// ExitError reports a tool that ran but exited with a non-zero code.
type ExitError struct {
	Executable string
	Code       int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Executable, e.Code)
}

func (e *ExitError) Unwrap() error { return ErrNonZeroExit }

// TimeoutError reports a tool killed after exceeding its deadline.
type TimeoutError struct {
	Executable string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Executable, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }
