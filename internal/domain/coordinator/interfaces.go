package coordinator

import (
	"context"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// CapabilityDetector reports what the capturing client supports.
type CapabilityDetector interface {
	DetectCapabilities(ctx context.Context) (capture.Capabilities, error)
}

// CaptureSource asks the user for capture permission and hands back the device.
type CaptureSource interface {
	RequestPermission(ctx context.Context) (capture.Device, error)
}

// Geolocator looks up the client's position.
type Geolocator interface {
	RequestLocation(ctx context.Context) (recording.Location, error)
}

// BundleStore is the persistence sink for finalized sessions.
type BundleStore interface {
	SaveBundle(ctx context.Context, bundle *recording.Bundle) (string, error)
	SaveWorkflow(ctx context.Context, userID, recordingID string, doc *workflow.Documentation) error
	Exists(ctx context.Context, recordingID string) (bool, error)
}

// ActivityLogger records lifecycle events.
type ActivityLogger interface {
	LogActivity(ctx context.Context, userID string, entry *activity.ActivityEntry) error
}
