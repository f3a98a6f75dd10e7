package mcp

import (
	"encoding/json"
	"time"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

type StartRecordingParams struct {
	RecordingID       string               `json:"recording_id,omitempty"`
	Capabilities      capture.Capabilities `json:"capabilities"`
	PermissionGranted bool                 `json:"permission_granted"`
	WithLocation      bool                 `json:"with_location,omitempty"`
	Location          *recording.Location  `json:"location,omitempty"`
}

// PendingChunksParams carries the chunks the client still holds when it
// pauses or stops.
type PendingChunksParams struct {
	// Base64-encoded, in capture order.
	PendingChunks []string `json:"pending_chunks,omitempty"`
}

type PushChunkParams struct {
	Data string `json:"data"`
}

type AddAnnotationParams struct {
	ID          string          `json:"id,omitempty"`
	Type        annotation.Type `json:"type"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Color       string          `json:"color,omitempty"`
	OffsetMs    *int64          `json:"offset_ms,omitempty"`
}

type AnnotationIDParams struct {
	ID string `json:"id"`
}

type ActiveAnnotationsParams struct {
	OffsetMs    int64  `json:"offset_ms"`
	ToleranceMs *int64 `json:"tolerance_ms,omitempty"`
}

type BeginStepParams struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type AppendStepParams struct {
	StepNumber     int      `json:"step_number,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	ExpectedResult string   `json:"expected_result,omitempty"`
	TimestampMs    int64    `json:"timestamp_ms"`
	AnnotationIDs  []string `json:"annotation_ids,omitempty"`
}

type AttachAnnotationParams struct {
	StepNumber   int    `json:"step_number"`
	AnnotationID string `json:"annotation_id"`
}

type MoveStepParams struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type RetryPersistParams struct {
	RecordingID string `json:"recording_id,omitempty"`
}

type ListRecordingsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type RecordingIDParams struct {
	RecordingID string `json:"recording_id"`
}

type PlaybackActiveParams struct {
	RecordingID string `json:"recording_id"`
	OffsetMs    int64  `json:"offset_ms"`
	ToleranceMs *int64 `json:"tolerance_ms,omitempty"`
}

type SearchAnnotationsParams struct {
	Query       string   `json:"query"`
	RecordingID string   `json:"recording_id,omitempty"`
	Types       []string `json:"types,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}

type GetChunkParams struct {
	RecordingID string `json:"recording_id"`
	Seq         int    `json:"seq"`
}

type GetRecentActivityParams struct {
	RecordingID  string                 `json:"recording_id,omitempty"`
	ActivityType *activity.ActivityType `json:"activity_type,omitempty"`
	Limit        int                    `json:"limit,omitempty"`
	Offset       int                    `json:"offset,omitempty"`
}

type ChunkResponse struct {
	Seq        int       `json:"seq"`
	OffsetMs   int64     `json:"offset_ms"`
	Size       int       `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
	Data       []byte    `json:"data,omitempty"`
}

type AnnotationsResponse struct {
	OffsetMs    *int64                  `json:"offset_ms,omitempty"`
	ToleranceMs *int64                  `json:"tolerance_ms,omitempty"`
	Annotations []annotation.Annotation `json:"annotations"`
}

type StepsResponse struct {
	Steps []workflow.Step `json:"steps"`
}

type DiscardResponse struct {
	Discarded bool `json:"discarded"`
}

type ListRecordingsResponse struct {
	Recordings []recording.Recording `json:"recordings"`
}

type SearchAnnotationsResponse struct {
	Results []recording.SearchResult `json:"results"`
}

type PendingBundlesResponse struct {
	Pending []coordinator.PendingBundle `json:"pending"`
}

type GetRecentActivityResponse struct {
	Activity []activity.ActivityEntry `json:"activity"`
}
