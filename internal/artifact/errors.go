package artifact

import (
	"errors"
	"fmt"
)

// StageError is the single error kind for operational failures: unreadable
// inputs, missing schema keys, I/O errors. It names the stage that failed and
// wraps the cause. Gate failures are never reported through StageError.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fail wraps err as a StageError for stage. A nil err returns nil, and an error
// already attributed to a stage is returned unchanged.
func Fail(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage extracts the originating stage from err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
