package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step is a numbered checkpoint in a documented procedure.
type Step struct {
	Number         int      `json:"step_number"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	ExpectedResult string   `json:"expected_result,omitempty"`
	TimestampMs    int64    `json:"timestamp_ms"`
	AnnotationIDs  []string `json:"annotation_ids"`
}

func (s Step) clone() Step {
	s.AnnotationIDs = append([]string{}, s.AnnotationIDs...)
	return s
}

func (s Step) references(annotationID string) bool {
	for _, id := range s.AnnotationIDs {
		if id == annotationID {
			return true
		}
	}
	return false
}

// Documentation is a finalized, read-only workflow document.
type Documentation struct {
	recordingID string
	steps       []Step
	finalizedAt time.Time
}

// Restore rebuilds a finalized document from storage. The steps must be
// numbered 1..N in order.
func Restore(recordingID string, steps []Step, finalizedAt time.Time) (*Documentation, error) {
	if err := checkSequence(steps); err != nil {
		return nil, err
	}
	return newDocumentation(recordingID, steps, finalizedAt), nil
}

func newDocumentation(recordingID string, steps []Step, finalizedAt time.Time) *Documentation {
	copied := make([]Step, len(steps))
	for i, s := range steps {
		copied[i] = s.clone()
	}
	return &Documentation{recordingID: recordingID, steps: copied, finalizedAt: finalizedAt}
}

// RecordingID returns the recording the document describes.
func (d *Documentation) RecordingID() string { return d.recordingID }

// FinalizedAt returns when the document was finalized.
func (d *Documentation) FinalizedAt() time.Time { return d.finalizedAt }

// Len returns the number of steps.
func (d *Documentation) Len() int { return len(d.steps) }

// Steps returns a copy of the steps in order.
func (d *Documentation) Steps() []Step {
	out := make([]Step, len(d.steps))
	for i, s := range d.steps {
		out[i] = s.clone()
	}
	return out
}

// Step returns the step with the given number.
func (d *Documentation) Step(number int) (Step, bool) {
	if number < 1 || number > len(d.steps) {
		return Step{}, false
	}
	return d.steps[number-1].clone(), true
}

type documentationJSON struct {
	RecordingID string    `json:"recording_id"`
	FinalizedAt time.Time `json:"finalized_at"`
	Steps       []Step    `json:"steps"`
}

// MarshalJSON encodes the document.
func (d *Documentation) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentationJSON{
		RecordingID: d.recordingID,
		FinalizedAt: d.finalizedAt,
		Steps:       d.steps,
	})
}

// UnmarshalJSON decodes and re-validates a document.
func (d *Documentation) UnmarshalJSON(b []byte) error {
	var raw documentationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	restored, err := Restore(raw.RecordingID, raw.Steps, raw.FinalizedAt)
	if err != nil {
		return err
	}
	*d = *restored
	return nil
}

func checkSequence(steps []Step) error {
	for i, s := range steps {
		if s.Number != i+1 {
			return fmt.Errorf("%w: expected step %d, found %d", ErrStepSequenceGap, i+1, s.Number)
		}
	}
	return nil
}
