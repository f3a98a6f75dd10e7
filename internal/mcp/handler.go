package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/rpggio/screenmark/internal/device"
	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// Handler dispatches MCP tool calls.
type Handler struct {
	coordinators Coordinators
	recordings   RecordingService
	activity     ActivityService
	toleranceMs  int64
}

// NewHandler creates a new MCP handler.
func NewHandler(services Services, defaultToleranceMs int64) *Handler {
	return &Handler{
		coordinators: services.Coordinators,
		recordings:   services.Recordings,
		activity:     services.Activity,
		toleranceMs:  defaultToleranceMs,
	}
}

// Handle dispatches a tool call for the user in ctx.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	userID := coordinator.IdentityFromContext(ctx)

	switch method {
	case "recording_status", "start_recording", "pause_recording", "resume_recording",
		"stop_recording", "discard_recording", "push_chunk", "revoke_permission",
		"add_annotation", "remove_annotation", "active_annotations", "list_annotations",
		"begin_step", "append_step", "attach_annotation", "move_step", "list_steps",
		"publish_workflow", "retry_persist", "pending_bundles":
		c, err := h.coordinators.For(userID)
		if err != nil {
			return nil, mapError(err)
		}
		return h.handleSession(ctx, c, method, params)
	}

	switch method {
	case "list_recordings":
		var req ListRecordingsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		recs, err := h.recordings.List(ctx, userID, recording.ListOptions{Limit: req.Limit, Offset: req.Offset})
		if err != nil {
			return nil, mapError(err)
		}
		if recs == nil {
			recs = []recording.Recording{}
		}
		return ListRecordingsResponse{Recordings: recs}, nil
	case "get_recording":
		var req RecordingIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(h.recordings.Get(ctx, userID, req.RecordingID))
	case "playback_active":
		var req PlaybackActiveParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		playback, err := h.recordings.Playback(ctx, userID, req.RecordingID)
		if err != nil {
			return nil, mapError(err)
		}
		tolerance := h.tolerance(req.ToleranceMs)
		return AnnotationsResponse{
			OffsetMs:    &req.OffsetMs,
			ToleranceMs: &tolerance,
			Annotations: playback.ActiveAt(req.OffsetMs, tolerance),
		}, nil
	case "search_annotations":
		var req SearchAnnotationsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		results, err := h.recordings.Search(ctx, userID, req.Query, recording.SearchOptions{
			RecordingID: req.RecordingID,
			Types:       req.Types,
			Limit:       req.Limit,
			Offset:      req.Offset,
		})
		if err != nil {
			return nil, mapError(err)
		}
		if results == nil {
			results = []recording.SearchResult{}
		}
		return SearchAnnotationsResponse{Results: results}, nil
	case "get_chunk":
		var req GetChunkParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		chunk, err := h.recordings.Chunk(ctx, userID, req.RecordingID, req.Seq)
		if err != nil {
			return nil, mapError(err)
		}
		return ChunkResponse{
			Seq:        chunk.Seq,
			OffsetMs:   chunk.OffsetMs,
			Size:       chunk.Size,
			ReceivedAt: chunk.ReceivedAt,
			Data:       chunk.Data,
		}, nil
	case "get_recent_activity":
		var req GetRecentActivityParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		entries, err := h.activity.GetRecentActivity(ctx, userID, activity.ListActivityOptions{
			RecordingID:  req.RecordingID,
			ActivityType: req.ActivityType,
			Limit:        req.Limit,
			Offset:       req.Offset,
		})
		if err != nil {
			return nil, mapError(err)
		}
		if entries == nil {
			entries = []activity.ActivityEntry{}
		}
		return GetRecentActivityResponse{Activity: entries}, nil
	default:
		return nil, &APIError{Code: "UNKNOWN_TOOL", Message: "unknown tool: " + method}
	}
}

func (h *Handler) handleSession(ctx context.Context, c *coordinator.Coordinator, method string, params json.RawMessage) (any, error) {
	switch method {
	case "recording_status":
		return wrap(c.Status(ctx))
	case "start_recording":
		var req StartRecordingParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		ctx = device.WithReport(ctx, device.Report{
			Capabilities:      req.Capabilities,
			PermissionGranted: req.PermissionGranted,
			Location:          req.Location,
		})
		return wrap(c.Start(ctx, coordinator.StartRequest{
			RecordingID:  req.RecordingID,
			WithLocation: req.WithLocation,
		}))
	case "pause_recording":
		pending, err := decodePending(params)
		if err != nil {
			return nil, err
		}
		return wrap(c.Pause(ctx, pending...))
	case "resume_recording":
		return wrap(c.Resume(ctx))
	case "stop_recording":
		pending, err := decodePending(params)
		if err != nil {
			return nil, err
		}
		return stopResult(c.Stop(ctx, pending...))
	case "revoke_permission":
		return stopResult(c.OnPermissionRevoked(ctx))
	case "discard_recording":
		if err := c.Discard(ctx); err != nil {
			return nil, mapError(err)
		}
		return DiscardResponse{Discarded: true}, nil
	case "push_chunk":
		var req PushChunkParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, invalidParams("data is not base64: %v", err)
		}
		chunk, err := c.OnChunk(ctx, data)
		if err != nil {
			return nil, mapError(err)
		}
		return ChunkResponse{Seq: chunk.Seq, OffsetMs: chunk.OffsetMs, Size: chunk.Size, ReceivedAt: chunk.ReceivedAt}, nil
	case "add_annotation":
		var req AddAnnotationParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		payload, err := annotation.DecodePayload(req.Type, req.Data)
		if err != nil {
			return nil, invalidParams("data does not match type %q: %v", req.Type, err)
		}
		return wrap(c.Annotate(ctx, coordinator.AnnotateRequest{
			ID:          req.ID,
			Type:        req.Type,
			Title:       req.Title,
			Description: req.Description,
			Payload:     payload,
			Color:       req.Color,
			OffsetMs:    req.OffsetMs,
		}))
	case "remove_annotation":
		var req AnnotationIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if err := c.RemoveAnnotation(ctx, req.ID); err != nil {
			return nil, mapError(err)
		}
		return map[string]string{"removed": req.ID}, nil
	case "active_annotations":
		var req ActiveAnnotationsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		tolerance := h.tolerance(req.ToleranceMs)
		active, err := c.ActiveAt(ctx, req.OffsetMs, tolerance)
		if err != nil {
			return nil, mapError(err)
		}
		return AnnotationsResponse{OffsetMs: &req.OffsetMs, ToleranceMs: &tolerance, Annotations: active}, nil
	case "list_annotations":
		all, err := c.Annotations(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return AnnotationsResponse{Annotations: all}, nil
	case "begin_step":
		var req BeginStepParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(c.BeginStep(ctx, req.Title, req.Description))
	case "append_step":
		var req AppendStepParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(c.AppendStep(ctx, workflow.Step{
			Number:         req.StepNumber,
			Title:          req.Title,
			Description:    req.Description,
			ExpectedResult: req.ExpectedResult,
			TimestampMs:    req.TimestampMs,
			AnnotationIDs:  req.AnnotationIDs,
		}))
	case "attach_annotation":
		var req AttachAnnotationParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if err := c.AttachAnnotation(ctx, req.StepNumber, req.AnnotationID); err != nil {
			return nil, mapError(err)
		}
		return steps(c.WorkflowSteps(ctx))
	case "move_step":
		var req MoveStepParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return steps(c.MoveStep(ctx, req.From, req.To))
	case "list_steps":
		return steps(c.WorkflowSteps(ctx))
	case "publish_workflow":
		return wrap(c.PublishWorkflow(ctx))
	case "retry_persist":
		var req RetryPersistParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return stopResult(c.RetryPersist(ctx, req.RecordingID))
	case "pending_bundles":
		pending, err := c.PendingBundles(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		if pending == nil {
			pending = []coordinator.PendingBundle{}
		}
		return PendingBundlesResponse{Pending: pending}, nil
	default:
		return nil, &APIError{Code: "UNKNOWN_TOOL", Message: "unknown tool: " + method}
	}
}

func (h *Handler) tolerance(requested *int64) int64 {
	if requested != nil {
		return *requested
	}
	return h.toleranceMs
}

// stopResult keeps the summary of a bundle whose hand-off failed: the caller
// still learns what was captured alongside the error.
func stopResult(result *coordinator.StopResult, err error) (any, error) {
	if err != nil {
		apiErr := MapError(err)
		if apiErr == nil {
			return nil, err
		}
		if result != nil {
			apiErr.Details = result
		}
		return nil, apiErr
	}
	return result, nil
}

func steps(list []workflow.Step, err error) (any, error) {
	if err != nil {
		return nil, mapError(err)
	}
	if list == nil {
		list = []workflow.Step{}
	}
	return StepsResponse{Steps: list}, nil
}

func wrap[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}

func decodePending(params json.RawMessage) ([][]byte, error) {
	var req PendingChunksParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	pending := make([][]byte, 0, len(req.PendingChunks))
	for i, encoded := range req.PendingChunks {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, invalidParams("pending_chunks[%d] is not base64: %v", i, err)
		}
		pending = append(pending, data)
	}
	return pending, nil
}
