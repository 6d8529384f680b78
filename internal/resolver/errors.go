package resolver

import (
	"errors"
	"fmt"
)

// ErrToolsetDoesNotExist means no candidate root validated for every target.
var ErrToolsetDoesNotExist = errors.New("toolset does not exist")

// ResolutionError is returned by Resolve when every strategy failed. It
// matches ErrToolsetDoesNotExist and unwraps to the acquisition failure, if
// one happened.
type ResolutionError struct {
	Attempts []Attempt
	Cause    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%v: no valid ndk root among %d candidates", ErrToolsetDoesNotExist, len(e.Attempts))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolutionError) Is(target error) bool { return target == ErrToolsetDoesNotExist }

func (e *ResolutionError) Unwrap() error { return e.Cause }

// InvalidPathError marks a candidate that is not a usable path string. It
// only disqualifies that candidate.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}
