package workflow

import (
	"fmt"
	"strings"
	"time"
)

// ElapsedSource reports how far into the recording the session is.
type ElapsedSource interface {
	ElapsedMs() int64
}

// AnnotationIndex answers whether an annotation exists on the session timeline.
type AnnotationIndex interface {
	Contains(id string) bool
}

// Recorder authors the workflow steps of one recording. Steps can be begun
// live during capture or appended after the recording stops.
//
// Recorder is not safe for concurrent use.
type Recorder struct {
	recordingID string
	elapsed     ElapsedSource
	annotations AnnotationIndex
	steps       []Step
	now         func() time.Time
}

// NewRecorder creates an empty recorder bound to a recording.
func NewRecorder(recordingID string, elapsed ElapsedSource, annotations AnnotationIndex) *Recorder {
	return &Recorder{
		recordingID: recordingID,
		elapsed:     elapsed,
		annotations: annotations,
		now:         time.Now,
	}
}

// RecordingID returns the owning recording.
func (r *Recorder) RecordingID() string { return r.recordingID }

// Len returns the number of steps.
func (r *Recorder) Len() int { return len(r.steps) }

// Steps returns a copy of the steps in order.
func (r *Recorder) Steps() []Step {
	out := make([]Step, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.clone()
	}
	return out
}

// BeginStep opens the next step at the current elapsed time.
func (r *Recorder) BeginStep(title, description string) (Step, error) {
	if strings.TrimSpace(title) == "" {
		return Step{}, fmt.Errorf("%w: title is required", ErrInvalidStep)
	}
	step := Step{
		Number:        r.lastNumber() + 1,
		Title:         title,
		Description:   description,
		TimestampMs:   r.elapsed.ElapsedMs(),
		AnnotationIDs: []string{},
	}
	r.steps = append(r.steps, step)
	return step.clone(), nil
}

// AppendStep adds a fully described step. A zero Number takes the next
// number; an explicit Number must be greater than every existing one.
func (r *Recorder) AppendStep(step Step) (Step, error) {
	if strings.TrimSpace(step.Title) == "" {
		return Step{}, fmt.Errorf("%w: title is required", ErrInvalidStep)
	}
	duration := r.elapsed.ElapsedMs()
	if step.TimestampMs < 0 || step.TimestampMs > duration {
		return Step{}, fmt.Errorf("%w: timestamp %dms outside recording [0, %d]", ErrInvalidStep, step.TimestampMs, duration)
	}
	last := r.lastNumber()
	switch {
	case step.Number == 0:
		step.Number = last + 1
	case step.Number <= last:
		return Step{}, fmt.Errorf("%w: step number %d must be greater than %d", ErrInvalidStep, step.Number, last)
	}

	ids := make([]string, 0, len(step.AnnotationIDs))
	seen := make(map[string]bool, len(step.AnnotationIDs))
	for _, id := range step.AnnotationIDs {
		if !r.annotations.Contains(id) {
			return Step{}, fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	step.AnnotationIDs = ids

	r.steps = append(r.steps, step)
	return step.clone(), nil
}

// AttachAnnotation links an annotation to a step. Attaching the same
// annotation twice is a no-op.
func (r *Recorder) AttachAnnotation(stepNumber int, annotationID string) error {
	i, ok := r.indexOf(stepNumber)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, stepNumber)
	}
	if !r.annotations.Contains(annotationID) {
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, annotationID)
	}
	if r.steps[i].references(annotationID) {
		return nil
	}
	r.steps[i].AnnotationIDs = append(r.steps[i].AnnotationIDs, annotationID)
	return nil
}

// ForgetAnnotation drops every reference to an annotation removed from the timeline.
func (r *Recorder) ForgetAnnotation(annotationID string) {
	for i := range r.steps {
		kept := r.steps[i].AnnotationIDs[:0]
		for _, id := range r.steps[i].AnnotationIDs {
			if id != annotationID {
				kept = append(kept, id)
			}
		}
		r.steps[i].AnnotationIDs = kept
	}
}

// MoveStep moves the step numbered from to position to, then renumbers every
// step 1..N in its new order.
func (r *Recorder) MoveStep(from, to int) error {
	i, ok := r.indexOf(from)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, from)
	}
	if to < 1 || to > len(r.steps) {
		return fmt.Errorf("%w: position %d outside 1..%d", ErrInvalidStep, to, len(r.steps))
	}
	step := r.steps[i]
	rest := append(r.steps[:i:i], r.steps[i+1:]...)
	moved := make([]Step, 0, len(r.steps))
	moved = append(moved, rest[:to-1]...)
	moved = append(moved, step)
	moved = append(moved, rest[to-1:]...)
	for n := range moved {
		moved[n].Number = n + 1
	}
	r.steps = moved
	return nil
}

// Load replaces the whole document, typically with one read back from storage.
func (r *Recorder) Load(doc *Documentation) error {
	if doc.RecordingID() != r.recordingID {
		return fmt.Errorf("%w: document belongs to recording %s", ErrInvalidStep, doc.RecordingID())
	}
	r.steps = doc.Steps()
	return nil
}

// Finalize checks the step sequence and returns an immutable document.
func (r *Recorder) Finalize() (*Documentation, error) {
	if err := checkSequence(r.steps); err != nil {
		return nil, err
	}
	for _, s := range r.steps {
		for _, id := range s.AnnotationIDs {
			if !r.annotations.Contains(id) {
				return nil, fmt.Errorf("%w: step %d references %s", ErrUnknownAnnotation, s.Number, id)
			}
		}
	}
	return newDocumentation(r.recordingID, r.steps, r.now()), nil
}

func (r *Recorder) indexOf(number int) (int, bool) {
	for i, s := range r.steps {
		if s.Number == number {
			return i, true
		}
	}
	return 0, false
}

func (r *Recorder) lastNumber() int {
	last := 0
	for _, s := range r.steps {
		if s.Number > last {
			last = s.Number
		}
	}
	return last
}
