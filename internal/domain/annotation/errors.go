package annotation

import "errors"

var (
	// ErrNotFound indicates the annotation is not on the timeline.
	ErrNotFound = errors.New("annotation not found")
	// ErrInvalidAnnotation indicates the annotation failed validation.
	ErrInvalidAnnotation = errors.New("invalid annotation")
	// ErrDuplicateID indicates an annotation with the same id is already on the timeline.
	ErrDuplicateID = errors.New("duplicate annotation id")
)
