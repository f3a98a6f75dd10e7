package recording

import "errors"

var (
	// ErrRecordingNotFound indicates the recording doesn't exist for the user.
	ErrRecordingNotFound = errors.New("recording not found")
	ErrChunkNotFound     = errors.New("chunk not found")
	// ErrRecordingExists indicates the recording ID is taken by a different bundle.
	ErrRecordingExists = errors.New("recording id already in use")
	// ErrInvalidInput indicates a malformed bundle or query.
	ErrInvalidInput = errors.New("invalid recording input")
)
