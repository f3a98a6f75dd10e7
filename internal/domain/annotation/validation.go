package annotation

import (
	"fmt"
	"strings"
)

// Validate checks the annotation and its payload against the rules of its type.
func Validate(a Annotation) error {
	if a.TimestampMs < 0 {
		return fmt.Errorf("%w: timestamp_ms must be >= 0, got %d", ErrInvalidAnnotation, a.TimestampMs)
	}
	if a.Payload == nil {
		return fmt.Errorf("%w: missing %s payload", ErrInvalidAnnotation, a.Type)
	}
	if a.Payload.Kind() != a.Type {
		return fmt.Errorf("%w: %s payload on %s annotation", ErrInvalidAnnotation, a.Payload.Kind(), a.Type)
	}
	return ValidatePayload(a.Payload)
}

// ValidatePayload checks the fields each payload kind requires.
func ValidatePayload(p Payload) error {
	switch v := p.(type) {
	case MarkerPayload:
		return nil
	case LabelPayload:
		if strings.TrimSpace(v.Text) == "" {
			return fmt.Errorf("%w: label text is required", ErrInvalidAnnotation)
		}
		return nil
	case DrawingPayload:
		return validateDrawing(v)
	case VoiceNotePayload:
		if strings.TrimSpace(v.AudioRef) == "" {
			return fmt.Errorf("%w: voice note audio_ref is required", ErrInvalidAnnotation)
		}
		if v.DurationMs < 0 {
			return fmt.Errorf("%w: voice note duration must be >= 0", ErrInvalidAnnotation)
		}
		return nil
	case HighlightPayload:
		if v.Region.Width <= 0 || v.Region.Height <= 0 {
			return fmt.Errorf("%w: highlight region must have a positive size", ErrInvalidAnnotation)
		}
		return nil
	case WorkflowStepPayload:
		if v.StepNumber < 1 {
			return fmt.Errorf("%w: step_number must be >= 1", ErrInvalidAnnotation)
		}
		return nil
	case UnknownPayload:
		return fmt.Errorf("%w: unknown annotation type %q", ErrInvalidAnnotation, v.Type)
	default:
		return fmt.Errorf("%w: unsupported payload %T", ErrInvalidAnnotation, p)
	}
}

func validateDrawing(d DrawingPayload) error {
	if len(d.Paths) == 0 && len(d.Shapes) == 0 {
		return fmt.Errorf("%w: drawing needs at least one path or shape", ErrInvalidAnnotation)
	}
	for i, path := range d.Paths {
		if len(path.Points) == 0 {
			return fmt.Errorf("%w: path %d has no points", ErrInvalidAnnotation, i)
		}
		switch path.Tool {
		case ToolPen, ToolHighlighter, ToolArrow:
		default:
			return fmt.Errorf("%w: path %d has unknown tool %q", ErrInvalidAnnotation, i, path.Tool)
		}
		if path.Width <= 0 {
			return fmt.Errorf("%w: path %d width must be > 0", ErrInvalidAnnotation, i)
		}
	}
	for i, shape := range d.Shapes {
		switch shape.Kind {
		case ShapeRectangle, ShapeCircle, ShapeArrow, ShapeText:
		default:
			return fmt.Errorf("%w: shape %d has unknown kind %q", ErrInvalidAnnotation, i, shape.Kind)
		}
		if shape.Kind.NeedsEnd() && shape.End == nil {
			return fmt.Errorf("%w: %s shape %d needs an end point", ErrInvalidAnnotation, shape.Kind, i)
		}
		if shape.Text != nil && shape.Kind != ShapeText {
			return fmt.Errorf("%w: only text shapes carry text", ErrInvalidAnnotation)
		}
	}
	return nil
}
