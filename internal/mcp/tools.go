package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

var annotationTypes = []string{"marker", "label", "drawing", "voice_note", "highlight", "workflow_step"}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Recording control
		{
			Name:        "start_recording",
			Description: "Start a capture session. The client reports its capture capabilities and whether the user granted screen capture.",
			InputSchema: object(map[string]any{
				"recording_id": prop("string", "Recording identifier (optional, generated if omitted)"),
				"capabilities": object(map[string]any{
					"supported":          prop("boolean", "Capture API present"),
					"has_screen_capture": prop("boolean", "Screen capture source available"),
					"is_secure_context":  prop("boolean", "Page served over a secure origin"),
				}),
				"permission_granted": prop("boolean", "User accepted the capture prompt"),
				"with_location":      prop("boolean", "Attach the device location to the recording"),
				"location": object(map[string]any{
					"lat":       prop("number", "Latitude"),
					"lon":       prop("number", "Longitude"),
					"accuracy":  prop("number", "Accuracy in meters"),
					"timestamp": prop("string", "RFC 3339 time of the fix"),
				}),
			}, "capabilities", "permission_granted"),
		},
		{
			Name:        "pause_recording",
			Description: "Pause the recording. Elapsed time freezes until resume.",
			InputSchema: object(map[string]any{
				"pending_chunks": map[string]any{
					"type":        "array",
					"description": "Base64 chunks the client still buffers; appended before the pause",
					"items":       map[string]any{"type": "string"},
				},
			}),
		},
		{
			Name:        "resume_recording",
			Description: "Resume a paused recording",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "stop_recording",
			Description: "Stop the recording, finalize the bundle and hand it to storage",
			InputSchema: object(map[string]any{
				"pending_chunks": map[string]any{
					"type":        "array",
					"description": "Base64 chunks the client still buffers; appended before the bundle is finalized",
					"items":       map[string]any{"type": "string"},
				},
			}),
		},
		{
			Name:        "discard_recording",
			Description: "Abandon the current recording without persisting it",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "revoke_permission",
			Description: "Report that the user ended screen sharing; the recording stops and is persisted",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "push_chunk",
			Description: "Deliver one encoded media chunk while recording",
			InputSchema: object(map[string]any{
				"data": prop("string", "Base64-encoded chunk bytes"),
			}, "data"),
		},
		{
			Name:        "recording_status",
			Description: "Current session state, elapsed time and counts",
			InputSchema: object(map[string]any{}),
		},

		// Annotations
		{
			Name:        "add_annotation",
			Description: "Add an annotation at the current elapsed time, or at offset_ms",
			InputSchema: object(map[string]any{
				"id":          prop("string", "Annotation ID (optional, generated if omitted)"),
				"type":        map[string]any{"type": "string", "enum": annotationTypes, "description": "Annotation type"},
				"title":       prop("string", "Short title"),
				"description": prop("string", "Longer description"),
				"data":        prop("object", "Type-specific payload, e.g. {\"text\": ...} for label or {\"paths\": [...], \"shapes\": [...]} for drawing"),
				"color":       prop("string", "Display color"),
				"offset_ms":   prop("integer", "Place the annotation at this elapsed offset instead of now"),
			}, "type"),
		},
		{
			Name:        "remove_annotation",
			Description: "Remove an annotation from the live timeline",
			InputSchema: object(map[string]any{
				"id": prop("string", "Annotation ID"),
			}, "id"),
		},
		{
			Name:        "active_annotations",
			Description: "Annotations within tolerance_ms of offset_ms on the live timeline",
			InputSchema: object(map[string]any{
				"offset_ms":    prop("integer", "Elapsed offset"),
				"tolerance_ms": prop("integer", "Window on either side (defaults to the server setting)"),
			}, "offset_ms"),
		},
		{
			Name:        "list_annotations",
			Description: "All annotations on the live timeline in order",
			InputSchema: object(map[string]any{}),
		},

		// Workflow
		{
			Name:        "begin_step",
			Description: "Open the next workflow step at the current elapsed time",
			InputSchema: object(map[string]any{
				"title":       prop("string", "Step title"),
				"description": prop("string", "Step description"),
			}, "title"),
		},
		{
			Name:        "append_step",
			Description: "Add a workflow step with an explicit timestamp",
			InputSchema: object(map[string]any{
				"step_number":     prop("integer", "Step number (optional, next in sequence if omitted)"),
				"title":           prop("string", "Step title"),
				"description":     prop("string", "Step description"),
				"expected_result": prop("string", "What should happen"),
				"timestamp_ms":    prop("integer", "Elapsed offset of the step"),
				"annotation_ids": map[string]any{
					"type":        "array",
					"description": "Annotations illustrating the step",
					"items":       map[string]any{"type": "string"},
				},
			}, "title", "timestamp_ms"),
		},
		{
			Name:        "attach_annotation",
			Description: "Link a timeline annotation to a workflow step",
			InputSchema: object(map[string]any{
				"step_number":   prop("integer", "Step number"),
				"annotation_id": prop("string", "Annotation ID"),
			}, "step_number", "annotation_id"),
		},
		{
			Name:        "move_step",
			Description: "Move a step to a new position and renumber",
			InputSchema: object(map[string]any{
				"from": prop("integer", "Current step number"),
				"to":   prop("integer", "New step number"),
			}, "from", "to"),
		},
		{
			Name:        "list_steps",
			Description: "Workflow steps authored so far",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "publish_workflow",
			Description: "Finalize the workflow document of a stopped recording",
			InputSchema: object(map[string]any{}),
		},

		// Persistence
		{
			Name:        "retry_persist",
			Description: "Retry handing a finalized bundle to storage",
			InputSchema: object(map[string]any{
				"recording_id": prop("string", "Recording ID (omit for the current recording)"),
			}),
		},
		{
			Name:        "pending_bundles",
			Description: "Bundles that storage has not acknowledged yet",
			InputSchema: object(map[string]any{}),
		},

		// History
		{
			Name:        "list_recordings",
			Description: "Persisted recordings, newest first",
			InputSchema: object(map[string]any{
				"limit":  prop("integer", "Maximum number of results"),
				"offset": prop("integer", "Offset for pagination"),
			}),
		},
		{
			Name:        "get_recording",
			Description: "A persisted recording with its timeline and workflow document",
			InputSchema: object(map[string]any{
				"recording_id": prop("string", "Recording ID"),
			}, "recording_id"),
		},
		{
			Name:        "playback_active",
			Description: "Annotations of a persisted recording within tolerance_ms of offset_ms",
			InputSchema: object(map[string]any{
				"recording_id": prop("string", "Recording ID"),
				"offset_ms":    prop("integer", "Playback offset"),
				"tolerance_ms": prop("integer", "Window on either side (defaults to the server setting)"),
			}, "recording_id", "offset_ms"),
		},
		{
			Name:        "get_chunk",
			Description: "One stored media chunk of a persisted recording, base64 encoded",
			InputSchema: object(map[string]any{
				"recording_id": prop("string", "Recording ID"),
				"seq":          prop("integer", "Chunk sequence number"),
			}, "recording_id", "seq"),
		},
		{
			Name:        "search_annotations",
			Description: "Full-text search over annotation titles, descriptions, labels and transcriptions",
			InputSchema: object(map[string]any{
				"query":        prop("string", "Search query text"),
				"recording_id": prop("string", "Limit to one recording"),
				"types": map[string]any{
					"type":        "array",
					"description": "Filter by annotation types",
					"items":       map[string]any{"type": "string", "enum": annotationTypes},
				},
				"limit":  prop("integer", "Maximum number of results"),
				"offset": prop("integer", "Offset for pagination"),
			}, "query"),
		},
		{
			Name:        "get_recent_activity",
			Description: "Recent recording lifecycle events",
			InputSchema: object(map[string]any{
				"recording_id":  prop("string", "Limit to one recording"),
				"activity_type": prop("string", "Filter by activity type"),
				"limit":         prop("integer", "Maximum number of results"),
				"offset":        prop("integer", "Offset for pagination"),
			}),
		},
	}
}

// registerTools exposes every catalog tool through h.
func registerTools(server *sdkmcp.Server, h *Handler, logger *slog.Logger) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			var args json.RawMessage
			if req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := h.Handle(ctx, name, args)
			if err != nil {
				return errorResult(err, name, logger), nil
			}
			return jsonResult(result)
		})
	}
}

func jsonResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

// errorResult reports err as a tool-level error so the caller can read the
// code and recovery hint.
func errorResult(err error, tool string, logger *slog.Logger) *sdkmcp.CallToolResult {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if logger != nil {
			logger.Error("tool failed", "tool", tool, "error", err)
		}
		apiErr = &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
