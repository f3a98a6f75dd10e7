package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureUnavailable indicates no capture source or permission.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrInvalidTransition indicates a state machine operation from the wrong state.
	ErrInvalidTransition = errors.New("invalid capture state transition")
	// ErrChunkRejected indicates a chunk arrived outside the recording state.
	ErrChunkRejected = errors.New("chunk rejected")
)

// Reason names why capture could not start.
type Reason string

const (
	ReasonPermissionDenied   Reason = "permission_denied"
	ReasonUnsupportedBrowser Reason = "unsupported_browser"
	ReasonInsecureContext    Reason = "insecure_context"
	ReasonNoCaptureSource    Reason = "no_capture_source"
	ReasonTimeout            Reason = "timeout"
)

// UnavailableError carries the actionable reason behind ErrCaptureUnavailable.
type UnavailableError struct {
	Reason Reason
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture unavailable (%s)", e.Reason)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrCaptureUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

// TransitionError reports the rejected operation and the state it was attempted from.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid capture state transition: cannot %s while %s", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ReasonOf extracts the unavailability reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Reason, true
	}
	return "", false
}
