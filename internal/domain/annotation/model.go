package annotation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates annotation payloads.
type Type string

const (
	TypeMarker       Type = "marker"
	TypeLabel        Type = "label"
	TypeDrawing      Type = "drawing"
	TypeVoiceNote    Type = "voice_note"
	TypeHighlight    Type = "highlight"
	TypeWorkflowStep Type = "workflow_step"
)

// Types lists every known annotation type.
var Types = []Type{TypeMarker, TypeLabel, TypeDrawing, TypeVoiceNote, TypeHighlight, TypeWorkflowStep}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Annotation is a timestamped timeline entry keyed to recording elapsed time.
type Annotation struct {
	ID          string    `json:"id"`
	RecordingID string    `json:"recording_id"`
	UserID      string    `json:"user_id"`
	TimestampMs int64     `json:"timestamp_ms"`
	Type        Type      `json:"type"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Payload     Payload   `json:"-"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// Seq is the insertion order on the owning timeline; it breaks timestamp ties.
	Seq int64 `json:"seq"`
}

type annotationJSON struct {
	wireAnnotation
	Data json.RawMessage `json:"data"`
}

type wireAnnotation Annotation

// MarshalJSON writes the payload under "data".
func (a Annotation) MarshalJSON() ([]byte, error) {
	data, err := EncodePayload(a.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(annotationJSON{wireAnnotation: wireAnnotation(a), Data: data})
}

// UnmarshalJSON decodes "data" according to "type".
func (a *Annotation) UnmarshalJSON(b []byte) error {
	var raw annotationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", raw.Type, err)
	}
	*a = Annotation(raw.wireAnnotation)
	a.Payload = payload
	return nil
}

// SearchText returns the free text carried by the payload, used for indexing.
func (a Annotation) SearchText() string {
	switch p := a.Payload.(type) {
	case MarkerPayload:
		return p.Label
	case LabelPayload:
		return p.Text
	case VoiceNotePayload:
		return p.Transcription
	case WorkflowStepPayload:
		return p.ExpectedResult
	case DrawingPayload:
		text := ""
		for _, shape := range p.Shapes {
			if shape.Text != nil {
				if text != "" {
					text += " "
				}
				text += *shape.Text
			}
		}
		return text
	default:
		return ""
	}
}
