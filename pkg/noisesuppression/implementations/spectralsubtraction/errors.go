package spectralsubtraction

import (
	"fmt"
)

// ErrInvalidInput is returned before any processing if the signal or the
// config cannot be processed.
type ErrInvalidInput struct {
	Reason string
	Err    error
}

func (e ErrInvalidInput) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e ErrInvalidInput) Unwrap() error {
	return e.Err
}

// ErrProcessingFailure wraps an unexpected failure in the middle of a run.
type ErrProcessingFailure struct {
	Err error
}

func (e ErrProcessingFailure) Error() string {
	return fmt.Sprintf("unable to process the signal: %v", e.Err)
}

func (e ErrProcessingFailure) Unwrap() error {
	return e.Err
}

func errTooShort(length int) ErrInvalidInput {
	return ErrInvalidInput{
		Reason: fmt.Sprintf("Audio file is too short (%d samples). Minimum %d samples required.", length, MinInputSamples),
	}
}
