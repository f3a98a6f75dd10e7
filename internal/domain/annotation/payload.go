package annotation

import (
	"encoding/json"
	"fmt"
)

// Payload is the type-dependent body of an annotation. The set of
// implementations is closed; UnknownPayload carries anything else.
type Payload interface {
	Kind() Type
}

// MarkerPayload marks a point of interest.
type MarkerPayload struct {
	Label string `json:"label,omitempty"`
}

// LabelPayload places text on the frame.
type LabelPayload struct {
	Text     string `json:"text"`
	Position *Point `json:"position,omitempty"`
}

// DrawingPayload holds committed freehand paths and shapes.
type DrawingPayload struct {
	Paths  []DrawingPath  `json:"paths,omitempty"`
	Shapes []DrawingShape `json:"shapes,omitempty"`
}

// VoiceNotePayload references recorded audio and its transcription.
type VoiceNotePayload struct {
	AudioRef      string `json:"audio_ref"`
	DurationMs    int64  `json:"duration_ms,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// HighlightPayload highlights a region of the frame.
type HighlightPayload struct {
	Region Rect `json:"region"`
}

// WorkflowStepPayload ties an annotation to a documented workflow step.
type WorkflowStepPayload struct {
	StepNumber     int    `json:"step_number"`
	ExpectedResult string `json:"expected_result,omitempty"`
}

// UnknownPayload keeps the raw data of an unrecognized type. It never passes validation.
type UnknownPayload struct {
	Type Type
	Raw  json.RawMessage
}

func (MarkerPayload) Kind() Type       { return TypeMarker }
func (LabelPayload) Kind() Type        { return TypeLabel }
func (DrawingPayload) Kind() Type      { return TypeDrawing }
func (VoiceNotePayload) Kind() Type    { return TypeVoiceNote }
func (HighlightPayload) Kind() Type    { return TypeHighlight }
func (WorkflowStepPayload) Kind() Type { return TypeWorkflowStep }
func (p UnknownPayload) Kind() Type    { return p.Type }

// DecodePayload decodes raw according to t. Empty raw yields the zero payload.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch t {
	case TypeMarker:
		return decodeAs[MarkerPayload](raw)
	case TypeLabel:
		return decodeAs[LabelPayload](raw)
	case TypeDrawing:
		return decodeAs[DrawingPayload](raw)
	case TypeVoiceNote:
		return decodeAs[VoiceNotePayload](raw)
	case TypeHighlight:
		return decodeAs[HighlightPayload](raw)
	case TypeWorkflowStep:
		return decodeAs[WorkflowStepPayload](raw)
	default:
		kept := make(json.RawMessage, len(raw))
		copy(kept, raw)
		return UnknownPayload{Type: t, Raw: kept}, nil
	}
}

// EncodePayload encodes p for storage and transport.
func EncodePayload(p Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case UnknownPayload:
		if len(v.Raw) == 0 {
			return json.RawMessage("{}"), nil
		}
		return v.Raw, nil
	case MarkerPayload, LabelPayload, DrawingPayload, VoiceNotePayload, HighlightPayload, WorkflowStepPayload:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", p.Kind(), err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("encoding payload: unsupported type %T", p)
	}
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

func clonePayload(p Payload) Payload {
	switch v := p.(type) {
	case DrawingPayload:
		out := DrawingPayload{}
		for _, path := range v.Paths {
			path.Points = append([]Point(nil), path.Points...)
			out.Paths = append(out.Paths, path)
		}
		for _, shape := range v.Shapes {
			if shape.End != nil {
				end := *shape.End
				shape.End = &end
			}
			if shape.Text != nil {
				text := *shape.Text
				shape.Text = &text
			}
			out.Shapes = append(out.Shapes, shape)
		}
		return out
	case LabelPayload:
		if v.Position != nil {
			pos := *v.Position
			v.Position = &pos
		}
		return v
	case UnknownPayload:
		v.Raw = append(json.RawMessage(nil), v.Raw...)
		return v
	default:
		return p
	}
}
