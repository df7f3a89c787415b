package recognizer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch reports audio that produced no usable text.
	ErrNoMatch = errors.New("speech not recognized")
	// ErrBackendUnavailable reports a backend that cannot serve requests right now.
	ErrBackendUnavailable = errors.New("recognition backend unavailable")
)

// SetupError reports a session that could not be created.
type SetupError struct {
	Kind string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("set up %s recognizer: %v", e.Kind, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// RecognitionError reports a failed recognize call. Reason is ErrNoMatch or
// ErrBackendUnavailable.
type RecognitionError struct {
	Reason error
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v: %v", e.Reason, e.Err)
}

// Is lets errors.Is match the reason sentinel.
func (e *RecognitionError) Is(target error) bool {
	return target == e.Reason
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// NoMatch builds a RecognitionError with reason ErrNoMatch.
func NoMatch() error {
	return &RecognitionError{Reason: ErrNoMatch}
}

// Unavailable wraps err as a RecognitionError with reason ErrBackendUnavailable.
func Unavailable(err error) error {
	return &RecognitionError{Reason: ErrBackendUnavailable, Err: err}
}
