package boss

import (
	"fmt"
	"strings"

	"github.com/teranos/boss/errors"
)

var (
	// ErrInvalidArgument rejects a call before any store access
	ErrInvalidArgument = errors.Mark(errors.New("invalid argument"), errors.ErrInvalidRequest)

	// ErrJobNotFound means no job has the given id
	ErrJobNotFound = errors.Mark(errors.New("job not found"), errors.ErrNotFound)

	// ErrJobNotActive means the job exists but has not been claimed
	ErrJobNotActive = errors.Mark(errors.New("job is not active"), errors.ErrConflict)

	// ErrJobAlreadyTerminal means the job was already completed or failed
	ErrJobAlreadyTerminal = errors.Mark(errors.New("job already completed or failed"), errors.ErrConflict)

	// ErrAlreadyResolved is returned by Job.Done once the job's outcome is decided
	ErrAlreadyResolved = errors.New("job already resolved")

	// ErrNotSubscribed is returned by Job.Done on jobs not delivered by Subscribe
	ErrNotSubscribed = errors.New("job was not delivered by a subscription")

	// ErrStopped is returned when registering on a stopped Boss
	ErrStopped = errors.New("boss is stopped")
)

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// JobError is the outcome for one id of a batch operation
type JobError struct {
	ID  string
	Err error
}

func (e JobError) Error() string {
	return fmt.Sprintf("%s: %v", e.ID, e.Err)
}

func (e JobError) Unwrap() error {
	return e.Err
}

// BatchError collects the ids of a batch that could not be resolved.
// The other ids of the batch were resolved.
type BatchError struct {
	Total    int
	Failures []JobError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d of %d jobs could not be resolved: %s",
		len(e.Failures), e.Total, strings.Join(parts, "; "))
}

// Unwrap exposes every per-id error to errors.Is and errors.As
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// FailedIDs lists the ids that could not be resolved, in batch order
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ID
	}
	return ids
}

// ErrorFor returns the error recorded for id, or nil
func (e *BatchError) ErrorFor(id string) error {
	for _, f := range e.Failures {
		if f.ID == id {
			return f.Err
		}
	}
	return nil
}
