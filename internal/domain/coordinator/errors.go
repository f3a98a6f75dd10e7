package coordinator

import "errors"

var (
	// ErrTimeout indicates a bounded wait on a collaborator expired.
	ErrTimeout = errors.New("timed out waiting for collaborator")
	// ErrPersistenceFailure indicates the bundle sink rejected or never acknowledged the bundle.
	// The bundle stays pending and can be retried.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrNoSession indicates no capture session is loaded.
	ErrNoSession = errors.New("no capture session")
	// ErrSessionActive indicates a session is already starting or capturing.
	ErrSessionActive = errors.New("capture session already active")
	// ErrRecordingExists indicates a requested recording ID is already stored.
	ErrRecordingExists = errors.New("recording id already stored")
	// ErrStaleSession indicates the session was discarded while the operation was in flight.
	ErrStaleSession = errors.New("capture session was discarded")
	// ErrNothingPending indicates there is no bundle awaiting persistence.
	ErrNothingPending = errors.New("no bundle awaiting persistence")
	// ErrPersistInFlight indicates a hand-off for the bundle is already running.
	ErrPersistInFlight = errors.New("persistence already in progress")
	// ErrClosed indicates the coordinator has shut down.
	ErrClosed = errors.New("coordinator closed")
)
