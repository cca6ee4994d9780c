package attendance

import (
	"errors"
	"fmt"

	"soldeser/internal/models"
)

var (
	// ErrAlreadyClockedIn: a clock-in was attempted while a session is open.
	ErrAlreadyClockedIn = errors.New("already clocked in")
	// ErrNotClockedIn: a clock-out was attempted with no open session.
	ErrNotClockedIn = errors.New("not clocked in")
	// ErrWorksiteUnavailable: the requested worksite does not exist or is inactive.
	ErrWorksiteUnavailable = errors.New("worksite unavailable")
	// ErrConstraintViolation: the store rejected a device record id that already exists.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStoreFailure wraps any persistence failure. Callers may retry.
	ErrStoreFailure = errors.New("store failure")
	// ErrValidation: malformed input reached the engine.
	ErrValidation = errors.New("validation failed")
)

// AlreadyClockedInError carries the open CLOCK_IN record so clients can show it.
type AlreadyClockedInError struct {
	Open *models.AttendanceRecord
}

func (e *AlreadyClockedInError) Error() string {
	return fmt.Sprintf("already clocked in since %s", e.Open.Timestamp.Format("2006-01-02 15:04"))
}

func (e *AlreadyClockedInError) Is(target error) bool {
	return target == ErrAlreadyClockedIn
}

// IsRetryable reports whether err came from the store and the call may be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
