package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var unavailable *capture.UnavailableError
	if errors.As(err, &unavailable) {
		return &APIError{
			Code:         "CAPTURE_UNAVAILABLE",
			Message:      err.Error(),
			Details:      map[string]string{"reason": string(unavailable.Reason)},
			RecoveryHint: captureHint(unavailable.Reason),
		}
	}

	var transition *capture.TransitionError
	if errors.As(err, &transition) {
		return &APIError{
			Code:         "INVALID_TRANSITION",
			Message:      err.Error(),
			Details:      map[string]string{"state": string(transition.From), "operation": transition.Op},
			RecoveryHint: "Check recording_status for the current state",
		}
	}

	switch {
	case errors.Is(err, coordinator.ErrPersistenceFailure):
		return &APIError{Code: "PERSISTENCE_FAILED", Message: err.Error(), RecoveryHint: "The bundle is kept; call retry_persist"}
	case errors.Is(err, coordinator.ErrTimeout):
		return &APIError{Code: "TIMEOUT", Message: err.Error(), RecoveryHint: "Retry the operation"}
	case errors.Is(err, coordinator.ErrNoSession):
		return &APIError{Code: "NO_SESSION", Message: "no capture session", RecoveryHint: "Call start_recording first"}
	case errors.Is(err, coordinator.ErrRecordingExists), errors.Is(err, recording.ErrRecordingExists):
		return &APIError{Code: "RECORDING_EXISTS", Message: err.Error(), RecoveryHint: "Choose another recording_id or omit it"}
	case errors.Is(err, coordinator.ErrSessionActive):
		return &APIError{Code: "SESSION_ACTIVE", Message: err.Error(), RecoveryHint: "Stop or discard the current recording"}
	case errors.Is(err, coordinator.ErrStaleSession):
		return &APIError{Code: "STALE_SESSION", Message: "the recording was discarded", RecoveryHint: "Start a new recording"}
	case errors.Is(err, coordinator.ErrNothingPending):
		return &APIError{Code: "NOTHING_PENDING", Message: "no bundle awaiting persistence"}
	case errors.Is(err, coordinator.ErrPersistInFlight):
		return &APIError{Code: "PERSIST_IN_FLIGHT", Message: "persistence already in progress", RecoveryHint: "Wait and retry"}
	case errors.Is(err, coordinator.ErrClosed):
		return &APIError{Code: "UNAVAILABLE", Message: "server is shutting down"}
	case errors.Is(err, capture.ErrChunkRejected):
		return &APIError{Code: "CHUNK_REJECTED", Message: err.Error(), RecoveryHint: "Chunks are only accepted while recording"}
	case errors.Is(err, annotation.ErrNotFound):
		return &APIError{Code: "ANNOTATION_NOT_FOUND", Message: "annotation not found", RecoveryHint: "Check ID spelling"}
	case errors.Is(err, annotation.ErrDuplicateID):
		return &APIError{Code: "DUPLICATE_ANNOTATION", Message: err.Error(), RecoveryHint: "Omit id to have one generated"}
	case errors.Is(err, annotation.ErrInvalidAnnotation):
		return &APIError{Code: "INVALID_ANNOTATION", Message: err.Error()}
	case errors.Is(err, workflow.ErrStepSequenceGap):
		return &APIError{Code: "STEP_SEQUENCE_GAP", Message: err.Error(), RecoveryHint: "Use move_step to renumber"}
	case errors.Is(err, workflow.ErrUnknownStep):
		return &APIError{Code: "STEP_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, workflow.ErrUnknownAnnotation):
		return &APIError{Code: "ANNOTATION_NOT_FOUND", Message: err.Error(), RecoveryHint: "Attach annotations from this recording"}
	case errors.Is(err, workflow.ErrInvalidStep):
		return &APIError{Code: "INVALID_STEP", Message: err.Error()}
	case errors.Is(err, recording.ErrRecordingNotFound):
		return &APIError{Code: "RECORDING_NOT_FOUND", Message: "recording not found", RecoveryHint: "Call list_recordings"}
	case errors.Is(err, recording.ErrChunkNotFound):
		return &APIError{Code: "CHUNK_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, recording.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

func captureHint(reason capture.Reason) string {
	switch reason {
	case capture.ReasonPermissionDenied:
		return "Ask the user to allow screen capture"
	case capture.ReasonInsecureContext:
		return "Serve the page over HTTPS"
	case capture.ReasonUnsupportedBrowser, capture.ReasonNoCaptureSource:
		return "Use a browser with screen capture support"
	case capture.ReasonTimeout:
		return "The permission prompt went unanswered; retry"
	default:
		return ""
	}
}

func invalidParams(format string, args ...any) *APIError {
	return &APIError{Code: "INVALID_PARAMS", Message: fmt.Sprintf(format, args...)}
}
