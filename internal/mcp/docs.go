package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `screenmark records annotated screen-capture sessions.

Core concepts:
- Recording: one capture session. States: idle -> recording <-> paused -> stopped.
- Elapsed time: wall time spent recording, excluding pauses. Every annotation and step is stamped with it.
- Annotation: a timestamped timeline entry (marker, label, drawing, voice_note, highlight, workflow_step).
- Workflow: numbered steps (1..N, no gaps) that document a procedure shown in the recording.
- Bundle: what stop_recording hands to storage (chunks + timeline + workflow + location).

Default flow:
1) start_recording with the client's capabilities and permission answer.
2) push_chunk as media arrives; add_annotation and begin_step while recording.
3) pause_recording / resume_recording as needed.
4) stop_recording. If it reports PERSISTENCE_FAILED, the bundle is kept: call retry_persist.
5) Optionally edit steps (append_step, attach_annotation, move_step) and publish_workflow.

History:
- list_recordings, get_recording, playback_active (annotations near a playback offset), search_annotations, get_recent_activity.

Docs:
- screenmark://docs/index
- screenmark://docs/annotations
- screenmark://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "screenmark://docs/index",
		Name:        "docs_index",
		Title:       "screenmark docs index",
		Description: "Entry point: tools by phase and what to read next.",
		Content: `# screenmark: Docs Index

## Tools by phase

| Phase | Tools |
|---|---|
| Capture | start_recording, push_chunk, pause_recording, resume_recording, stop_recording, discard_recording, revoke_permission, recording_status |
| Annotate | add_annotation, remove_annotation, active_annotations, list_annotations |
| Document | begin_step, append_step, attach_annotation, move_step, list_steps, publish_workflow |
| Persist | retry_persist, pending_bundles |
| Review | list_recordings, get_recording, playback_active, get_chunk, search_annotations, get_recent_activity |

## Timing

All offsets are milliseconds of recorded time. Paused time does not count.
An annotation added at 3000ms stays at 3000ms no matter how long the
recording is paused afterwards.

Read next: screenmark://docs/annotations, screenmark://docs/errors.
`,
	},
	{
		URI:         "screenmark://docs/annotations",
		Name:        "docs_annotations",
		Title:       "Annotation payloads",
		Description: "The data object expected for each annotation type.",
		Content: `# Annotation payloads

| type | data |
|---|---|
| marker | {"label": "..."} |
| label | {"text": "...", "position": {"x": 0, "y": 0}} (text required) |
| drawing | {"paths": [{"points": [...], "tool": "pen", "width": 2}], "shapes": [{"kind": "rectangle", "start": {...}, "end": {...}}]} |
| voice_note | {"audio_ref": "...", "duration_ms": 1200, "transcription": "..."} |
| highlight | {"region": {"x": 0, "y": 0, "width": 10, "height": 10}} |
| workflow_step | {"step_number": 1, "expected_result": "..."} |

Drawing rules:
- A path needs at least one point, a tool (pen, highlighter, arrow) and a positive width.
- rectangle, circle and arrow shapes need both start and end. Only text shapes carry text.
- Only committed drawings are stored. In-progress strokes stay on the client.

Annotations at the same timestamp keep the order they were added in.
`,
	},
	{
		URI:         "screenmark://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Tool error codes and how to recover.",
		Content: `# Error codes

Tool errors carry {code, message, details, recovery_hint}.

- CAPTURE_UNAVAILABLE: details.reason is one of permission_denied, unsupported_browser, insecure_context, no_capture_source, timeout. No session was created.
- INVALID_TRANSITION: the operation is not allowed in the current state (details.state). Pausing, resuming or stopping with no session reports state idle.
- RECORDING_EXISTS: the requested recording_id is already stored. Pick another one or omit it.
- NO_SESSION / SESSION_ACTIVE / STALE_SESSION: session bookkeeping; check recording_status.
- PERSISTENCE_FAILED: storage did not acknowledge the bundle. Nothing is lost; call retry_persist. details holds the bundle summary.
- TIMEOUT: a collaborator did not answer in time.
- INVALID_ANNOTATION, DUPLICATE_ANNOTATION, ANNOTATION_NOT_FOUND: annotation input problems.
- STEP_SEQUENCE_GAP, STEP_NOT_FOUND, INVALID_STEP: workflow numbering problems; move_step renumbers.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
