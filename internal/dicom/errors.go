package dicom

import (
	"errors"
	"fmt"
)

// ErrNotDICOM marks a file that is not a DICOM dataset: the magic marker is
// absent or the identifying UID set is incomplete. This is a classification
// outcome, not a failure of the run.
var ErrNotDICOM = errors.New("not a DICOM dataset")

// FormatError reports a malformed or truncated DICOM byte stream.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed DICOM at offset %d: %s", e.Offset, e.Reason)
}

func formatErr(offset int, format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
