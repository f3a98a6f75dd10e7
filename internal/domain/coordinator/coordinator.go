package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds every wait on a collaborator unless configured otherwise.
const DefaultTimeout = 10 * time.Second

const tracerName = "github.com/rpggio/screenmark/internal/domain/coordinator"

// Config wires a coordinator to its collaborators.
type Config struct {
	Detector   CapabilityDetector
	Source     CaptureSource
	Locator    Geolocator     // optional
	Store      BundleStore
	Activities ActivityLogger // optional
	Clock      capture.Clock
	Logger     *slog.Logger
	Tracer     trace.Tracer

	PermissionTimeout  time.Duration
	GeolocationTimeout time.Duration
	PersistTimeout     time.Duration
}

// Coordinator drives one capture session at a time. Every command runs to
// completion on a single event-loop goroutine; collaborator calls happen off
// the loop and their results are applied only if the session they belong to
// is still current.
type Coordinator struct {
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	activity *activityWriter

	events    chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the event loop.
	generation uint64
	active     *workspace
	pending    map[string]*pendingBundle
}

// workspace is the in-memory state of the loaded session.
type workspace struct {
	generation uint64
	userID     string
	session    *capture.Session
	timeline   *annotation.Timeline
	recorder   *workflow.Recorder
	location   *recording.Location
	starting   bool
	persisted  bool

	// ctx scopes permission and geolocation requests; discard cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// pendingBundle is a finalized bundle the sink has not acknowledged yet.
type pendingBundle struct {
	bundle   *recording.Bundle
	userID   string
	inFlight bool
	lastErr  error

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a coordinator and starts its event loop. Close stops it.
func New(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = capture.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	if cfg.PermissionTimeout <= 0 {
		cfg.PermissionTimeout = DefaultTimeout
	}
	if cfg.GeolocationTimeout <= 0 {
		cfg.GeolocationTimeout = DefaultTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultTimeout
	}

	c := &Coordinator{
		cfg:      cfg,
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		activity: newActivityWriter(cfg.Activities, cfg.Logger),
		events:   make(chan func()),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pending:  make(map[string]*pendingBundle),
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (c *Coordinator) do(ctx context.Context, fn func() error) error {
	var err error
	finished := make(chan struct{})
	event := func() {
		defer close(finished)
		err = fn()
	}
	select {
	case c.events <- event:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
	<-finished
	return err
}

// post queues fn on the event loop without waiting for it.
func (c *Coordinator) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// Close discards any loaded session, releases the capture device and stops
// the event loop. Bundles still pending persistence are dropped.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		_ = c.do(context.Background(), func() error {
			if ws := c.active; ws != nil {
				ws.cancel()
				if err := ws.session.Release(); err != nil {
					c.logger.Warn("releasing capture device on close", "recording_id", ws.session.ID(), "error", err)
				}
			}
			for id, p := range c.pending {
				c.logger.Warn("dropping unpersisted bundle on close", "recording_id", id)
				p.cancel()
			}
			c.active = nil
			c.pending = map[string]*pendingBundle{}
			return nil
		})
		close(c.done)
		// An event already handed to the loop may still run and log activity.
		<-c.stopped
		c.activity.close()
	})
}

// current reports whether ws is still the loaded session.
func (c *Coordinator) current(ws *workspace) bool {
	return ws != nil && c.active == ws && ws.generation == c.generation
}

// loaded returns the session if one has been granted a device.
func (c *Coordinator) loaded() (*workspace, error) {
	if c.active == nil || c.active.starting {
		return nil, ErrNoSession
	}
	return c.active, nil
}

// transitioning returns the session a state transition applies to. With no
// session loaded, or one still waiting on permission, the transition is
// rejected as coming from idle.
func (c *Coordinator) transitioning(op string) (*workspace, error) {
	if c.active == nil || c.active.starting {
		return nil, &capture.TransitionError{Op: op, From: capture.StateIdle}
	}
	return c.active, nil
}

// capturing returns the session if it is recording or paused.
func (c *Coordinator) capturing(op string) (*workspace, error) {
	ws, err := c.loaded()
	if err != nil {
		return nil, err
	}
	if state := ws.session.State(); state != capture.StateRecording && state != capture.StatePaused {
		return nil, &capture.TransitionError{Op: op, From: state}
	}
	return ws, nil
}

// Status describes the loaded session.
type Status struct {
	RecordingID     string              `json:"recording_id,omitempty"`
	State           capture.State       `json:"state"`
	Starting        bool                `json:"starting,omitempty"`
	ElapsedMs       int64               `json:"elapsed_ms"`
	ChunkCount      int                 `json:"chunk_count"`
	AnnotationCount int                 `json:"annotation_count"`
	StepCount       int                 `json:"step_count"`
	Persisted       bool                `json:"persisted"`
	Location        *recording.Location `json:"location,omitempty"`
	Pending         []string            `json:"pending_recordings,omitempty"`
}

// Status returns a snapshot of the loaded session and pending bundles.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, func() error {
		status = c.status()
		return nil
	})
	return status, err
}

func (c *Coordinator) status() Status {
	status := Status{State: capture.StateIdle}
	if ws := c.active; ws != nil {
		status.RecordingID = ws.session.ID()
		status.State = ws.session.State()
		status.Starting = ws.starting
		status.ElapsedMs = ws.session.ElapsedMs()
		status.ChunkCount = ws.session.ChunkCount()
		status.AnnotationCount = ws.timeline.Len()
		status.StepCount = ws.recorder.Len()
		status.Persisted = ws.persisted
		if ws.location != nil {
			loc := *ws.location
			status.Location = &loc
		}
	}
	for id := range c.pending {
		status.Pending = append(status.Pending, id)
	}
	sort.Strings(status.Pending)
	return status
}
