package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteAssessment means finalize or score retrieval ran before all
	// required responses existed. The caller can collect more and retry.
	ErrIncompleteAssessment = errors.New("assessment is incomplete")

	// ErrSessionClosed means a mutation was attempted on a completed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrAlreadyCompleted is reported by a session store when a finalize lost
	// the race to another finalize of the same session.
	ErrAlreadyCompleted = errors.New("session already completed")

	// ErrPersistenceFailed matches every PersistenceError.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrInvalidCatalog means the catalog is empty or has duplicate ids.
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrInvalidResponse means the item is not part of the sequence or the
	// selection is not one the item offers.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrSessionNotFound means the session does not exist or belongs to
	// another subject.
	ErrSessionNotFound = errors.New("session not found")
)

// PersistenceError wraps a storage collaborator failure. errors.Is matches
// ErrPersistenceFailed, errors.Unwrap returns the collaborator error as is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistenceFailed, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailed
}

// Persistence wraps err as a PersistenceError for op. Nil stays nil. Engine
// sentinels a store may return (not found, closed, already completed) and
// errors that already are a PersistenceError pass through unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrAlreadyCompleted) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func catalogErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...)
}

func responseErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidResponse}, args...)...)
}
