package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeRecordingStarted   ActivityType = "recording_started"
	TypeRecordingPaused    ActivityType = "recording_paused"
	TypeRecordingResumed   ActivityType = "recording_resumed"
	TypeRecordingStopped   ActivityType = "recording_stopped"
	TypeRecordingDiscarded ActivityType = "recording_discarded"
	TypePermissionRevoked  ActivityType = "permission_revoked"
	TypeAnnotationAdded    ActivityType = "annotation_added"
	TypeAnnotationRemoved  ActivityType = "annotation_removed"
	TypePersisted          ActivityType = "persisted"
	TypePersistFailed      ActivityType = "persist_failed"
	TypeWorkflowPublished  ActivityType = "workflow_published"
)

// ActivityEntry represents an event in the activity log
type ActivityEntry struct {
	ID           int64        `json:"id"`
	UserID       string       `json:"user_id"`
	RecordingID  string       `json:"recording_id"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	OffsetMs     *int64       `json:"offset_ms,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
