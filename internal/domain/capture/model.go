package capture

import "time"

// State is a capture session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// Chunk is one opaque encoded media fragment handed back by the capture primitive.
type Chunk struct {
	Seq        int       `json:"seq"`
	OffsetMs   int64     `json:"offset_ms"`
	Data       []byte    `json:"-"`
	Size       int       `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
}

// Capabilities is what the capability-detection collaborator reports about the client.
type Capabilities struct {
	Supported        bool `json:"supported"`
	HasScreenCapture bool `json:"has_screen_capture"`
	IsSecureContext  bool `json:"is_secure_context"`
}

// CheckCapabilities returns an UnavailableError naming the first missing capability.
func CheckCapabilities(caps Capabilities) error {
	switch {
	case !caps.Supported:
		return &UnavailableError{Reason: ReasonUnsupportedBrowser}
	case !caps.IsSecureContext:
		return &UnavailableError{Reason: ReasonInsecureContext}
	case !caps.HasScreenCapture:
		return &UnavailableError{Reason: ReasonNoCaptureSource}
	}
	return nil
}
