package workflow

import "errors"

var (
	// ErrUnknownAnnotation indicates the annotation is not on the session timeline.
	ErrUnknownAnnotation = errors.New("unknown annotation")
	// ErrUnknownStep indicates no step carries the requested number.
	ErrUnknownStep = errors.New("unknown workflow step")
	// ErrStepSequenceGap indicates step numbers are not exactly 1..N.
	ErrStepSequenceGap = errors.New("workflow step sequence has a gap")
	// ErrInvalidStep indicates a step failed validation.
	ErrInvalidStep = errors.New("invalid workflow step")
)
