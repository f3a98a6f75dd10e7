package capture

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Session is the recording state machine for one capture lifecycle.
//
// Session is not safe for concurrent use; the coordinator serializes every
// call on its event loop.
type Session struct {
	id     string
	clock  Clock
	logger *slog.Logger

	state       State
	startedAt   time.Time
	stoppedAt   time.Time
	pausedAt    time.Time
	totalPaused time.Duration
	chunks      []Chunk

	device   Device
	released bool
}

// NewSession creates an idle session.
func NewSession(id string, clock Clock, logger *slog.Logger) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		id:     id,
		clock:  clock,
		logger: logger,
		state:  StateIdle,
	}
}

// ID returns the recording identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// StartedAt returns the instant of the transition into recording.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// StoppedAt returns the instant of the transition into stopped.
func (s *Session) StoppedAt() time.Time { return s.stoppedAt }

// Start moves Idle to Recording and takes ownership of device.
func (s *Session) Start(device Device) error {
	if s.state != StateIdle {
		return &TransitionError{Op: "start", From: s.state}
	}
	if device == nil {
		return &UnavailableError{Reason: ReasonNoCaptureSource}
	}
	s.device = device
	s.startedAt = s.clock.Now()
	s.state = StateRecording
	s.logger.Debug("capture started", "recording_id", s.id)
	return nil
}

// Pause freezes elapsed accumulation. Chunks still buffered by the device, and
// any pending chunks handed in by the caller, are appended first.
func (s *Session) Pause(pending ...[]byte) error {
	switch s.state {
	case StatePaused:
		return nil
	case StateRecording:
	default:
		return &TransitionError{Op: "pause", From: s.state}
	}
	for _, data := range pending {
		s.appendChunk(data)
	}
	s.flushDevice()
	s.pausedAt = s.clock.Now()
	s.state = StatePaused
	return nil
}

// Resume restarts elapsed accumulation.
func (s *Session) Resume() error {
	switch s.state {
	case StateRecording:
		return nil
	case StatePaused:
	default:
		return &TransitionError{Op: "resume", From: s.state}
	}
	s.totalPaused += s.clock.Now().Sub(s.pausedAt)
	s.pausedAt = time.Time{}
	s.state = StateRecording
	return nil
}

// Stop finalizes the chunk sequence and releases the device. Pending chunks
// handed in by the caller are appended when stopping from recording; a
// paused session already took its chunks at pause.
func (s *Session) Stop(pending ...[]byte) error {
	now := s.clock.Now()
	switch s.state {
	case StateRecording:
		for _, data := range pending {
			s.appendChunk(data)
		}
		s.flushDevice()
	case StatePaused:
		if len(pending) > 0 {
			s.logger.Warn("dropping chunks handed in after pause", "recording_id", s.id, "count", len(pending))
		}
		s.totalPaused += now.Sub(s.pausedAt)
		s.pausedAt = time.Time{}
	default:
		return &TransitionError{Op: "stop", From: s.state}
	}
	s.stoppedAt = now
	s.state = StateStopped
	if err := s.Release(); err != nil {
		s.logger.Warn("releasing capture device", "recording_id", s.id, "error", err)
	}
	return nil
}

// Release hands the device back. It is safe to call more than once.
func (s *Session) Release() error {
	if s.device == nil || s.released {
		return nil
	}
	s.released = true
	if err := s.device.Release(); err != nil {
		return fmt.Errorf("releasing device: %w", err)
	}
	return nil
}

// Released reports whether the device has been handed back.
func (s *Session) Released() bool { return s.device == nil || s.released }

// AppendChunk records a chunk delivered by the capture source. Chunks outside
// the recording state are logged and rejected.
func (s *Session) AppendChunk(data []byte) (Chunk, error) {
	if s.state != StateRecording {
		s.logger.Warn("chunk arrived outside recording",
			"recording_id", s.id, "state", s.state, "size", len(data))
		return Chunk{}, fmt.Errorf("%w: session is %s", ErrChunkRejected, s.state)
	}
	return s.appendChunk(data), nil
}

// Chunks returns the chunk sequence in arrival order.
func (s *Session) Chunks() []Chunk {
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// ChunkCount returns the number of appended chunks.
func (s *Session) ChunkCount() int { return len(s.chunks) }

// Elapsed returns recording time with paused intervals excluded.
func (s *Session) Elapsed() time.Duration {
	var end time.Time
	switch s.state {
	case StateIdle:
		return 0
	case StateRecording:
		end = s.clock.Now()
	case StatePaused:
		end = s.pausedAt
	case StateStopped:
		end = s.stoppedAt
	}
	elapsed := end.Sub(s.startedAt) - s.totalPaused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedMs returns Elapsed in milliseconds.
func (s *Session) ElapsedMs() int64 { return s.Elapsed().Milliseconds() }

func (s *Session) appendChunk(data []byte) Chunk {
	buf := make([]byte, len(data))
	copy(buf, data)
	chunk := Chunk{
		Seq:        len(s.chunks),
		OffsetMs:   s.ElapsedMs(),
		Data:       buf,
		Size:       len(buf),
		ReceivedAt: s.clock.Now(),
	}
	s.chunks = append(s.chunks, chunk)
	return chunk
}

func (s *Session) flushDevice() {
	if s.device == nil || s.released {
		return
	}
	for _, data := range s.device.Flush() {
		s.appendChunk(data)
	}
}
