package noisereduce

import (
	"fmt"
)

const (
	ReasonNotFound = "Input audio file not found"
	ReasonNotAFile = "Path is not a file"
	failurePrefix  = "Noise reduction failed"
)

// ErrInputNotFound is returned if the input path does not resolve to a
// regular file.
type ErrInputNotFound struct {
	Path   string
	Reason string
}

func (e ErrInputNotFound) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}
