package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StartRequest describes a session start.
type StartRequest struct {
	// RecordingID is generated when empty.
	RecordingID string
	// WithLocation attaches the client position when a Geolocator is configured.
	WithLocation bool
}

// Start constructs a fresh session, asks the capture source for permission
// and moves the session into recording. A stopped session still loaded for
// workflow authoring is replaced. A requested RecordingID the store already
// holds is rejected with ErrRecordingExists.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (Status, error) {
	userID := IdentityFromContext(ctx)
	if req.RecordingID != "" {
		if err := c.checkUnused(ctx, req.RecordingID); err != nil {
			return Status{}, err
		}
	}
	var ws *workspace
	err := c.do(ctx, func() error {
		if prev := c.active; prev != nil {
			if prev.starting || prev.session.State() != capture.StateStopped {
				return ErrSessionActive
			}
		}
		id := req.RecordingID
		if id == "" {
			id = uuid.NewString()
		}
		if _, ok := c.pending[id]; ok {
			return fmt.Errorf("%w: recording %s is awaiting persistence", ErrSessionActive, id)
		}
		ws = c.newWorkspace(ctx, userID, id)
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	device, reqErr := c.requestCapture(ws)

	var status Status
	err = c.do(context.WithoutCancel(ctx), func() error {
		if !c.current(ws) {
			if device != nil {
				c.releaseStale(device, ws)
			}
			return ErrStaleSession
		}
		if reqErr != nil {
			c.active = nil
			ws.cancel()
			return reqErr
		}
		if err := ws.session.Start(device); err != nil {
			c.active = nil
			ws.cancel()
			return err
		}
		ws.starting = false
		c.record(ws, activity.TypeRecordingStarted, "recording started", nil)
		status = c.status()
		return nil
	})
	if errors.Is(err, ErrClosed) && device != nil {
		_ = device.Release()
	}
	if err != nil {
		return Status{}, err
	}

	if req.WithLocation && c.cfg.Locator != nil {
		go c.locate(ws)
	}
	c.logger.Info("recording started", "recording_id", ws.session.ID(), "user_id", userID)
	return status, nil
}

// checkUnused asks the store about id off the event loop.
func (c *Coordinator) checkUnused(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
	defer cancel()
	taken, err := await(ctx, func(ctx context.Context) (bool, error) {
		return c.cfg.Store.Exists(ctx, id)
	}, nil)
	if err != nil {
		return timeoutError("recording id check", c.cfg.PersistTimeout, err)
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrRecordingExists, id)
	}
	return nil
}

func (c *Coordinator) newWorkspace(ctx context.Context, userID, id string) *workspace {
	c.generation++
	session := capture.NewSession(id, c.cfg.Clock, c.logger)
	timeline := annotation.NewTimeline(id)
	wsCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ws := &workspace{
		generation: c.generation,
		userID:     userID,
		session:    session,
		timeline:   timeline,
		recorder:   workflow.NewRecorder(id, session, timeline),
		starting:   true,
		ctx:        wsCtx,
		cancel:     cancel,
	}
	c.active = ws
	return ws
}

// requestCapture gates the start on client capabilities and the permission
// prompt. It runs off the event loop.
func (c *Coordinator) requestCapture(ws *workspace) (capture.Device, error) {
	ctx, span := c.tracer.Start(ws.ctx, "coordinator.request_capture")
	defer span.End()
	span.SetAttributes(attribute.String("recording.id", ws.session.ID()))

	ctx, cancel := context.WithTimeout(ctx, c.cfg.PermissionTimeout)
	defer cancel()

	caps, err := await(ctx, c.cfg.Detector.DetectCapabilities, nil)
	if err == nil {
		err = capture.CheckCapabilities(caps)
	} else if !isUnavailable(err) && ctx.Err() == nil {
		err = &capture.UnavailableError{Reason: capture.ReasonUnsupportedBrowser, Err: err}
	}
	var device capture.Device
	if err == nil {
		device, err = await(ctx, c.cfg.Source.RequestPermission, func(late capture.Device) {
			c.releaseStale(late, ws)
		})
		if err == nil && device == nil {
			err = &capture.UnavailableError{Reason: capture.ReasonNoCaptureSource}
		} else if err != nil && !isUnavailable(err) && ctx.Err() == nil {
			err = &capture.UnavailableError{Reason: capture.ReasonPermissionDenied, Err: err}
		}
	}

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = &capture.UnavailableError{
				Reason: capture.ReasonTimeout,
				Err:    timeoutError("capture permission", c.cfg.PermissionTimeout, context.DeadlineExceeded),
			}
		case ws.ctx.Err() != nil:
			err = ErrStaleSession
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return device, nil
}

func isUnavailable(err error) bool {
	_, ok := capture.ReasonOf(err)
	return ok
}

// releaseStale hands back a device granted to a session that is gone.
func (c *Coordinator) releaseStale(device capture.Device, ws *workspace) {
	if err := device.Release(); err != nil {
		c.logger.Warn("releasing stale capture device", "recording_id", ws.session.ID(), "error", err)
	}
}

// locate attaches the client position to the session. Failures only cost
// the enrichment.
func (c *Coordinator) locate(ws *workspace) {
	ctx, span := c.tracer.Start(ws.ctx, "coordinator.request_location")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GeolocationTimeout)
	defer cancel()

	loc, err := await(ctx, c.cfg.Locator.RequestLocation, nil)
	if err != nil {
		err = timeoutError("geolocation", c.cfg.GeolocationTimeout, err)
		span.RecordError(err)
		c.logger.Warn("geolocation unavailable", "recording_id", ws.session.ID(), "error", err)
		return
	}
	c.post(func() {
		if !c.current(ws) {
			return
		}
		ws.location = &loc
	})
}

// Pause freezes elapsed time. Chunks the caller still holds are appended
// before the pause takes effect.
func (c *Coordinator) Pause(ctx context.Context, pending ...[]byte) (Status, error) {
	var status Status
	err := c.do(ctx, func() error {
		ws, err := c.transitioning("pause")
		if err != nil {
			return err
		}
		wasRecording := ws.session.State() == capture.StateRecording
		if err := ws.session.Pause(pending...); err != nil {
			return err
		}
		if wasRecording {
			elapsed := ws.session.ElapsedMs()
			c.record(ws, activity.TypeRecordingPaused, "recording paused", &elapsed)
		}
		status = c.status()
		return nil
	})
	return status, err
}

// Resume restarts elapsed time.
func (c *Coordinator) Resume(ctx context.Context) (Status, error) {
	var status Status
	err := c.do(ctx, func() error {
		ws, err := c.transitioning("resume")
		if err != nil {
			return err
		}
		wasPaused := ws.session.State() == capture.StatePaused
		if err := ws.session.Resume(); err != nil {
			return err
		}
		if wasPaused {
			elapsed := ws.session.ElapsedMs()
			c.record(ws, activity.TypeRecordingResumed, "recording resumed", &elapsed)
		}
		status = c.status()
		return nil
	})
	return status, err
}

// Stop finalizes the session, releases the device and hands the bundle to
// the store. When the hand-off fails the result is still returned together
// with an ErrPersistenceFailure error, and the bundle stays pending for
// RetryPersist. Chunks the caller still holds are appended first.
func (c *Coordinator) Stop(ctx context.Context, pending ...[]byte) (*StopResult, error) {
	return c.stop(ctx, activity.TypeRecordingStopped, "recording stopped", pending...)
}

// OnPermissionRevoked handles the capture source withdrawing permission
// mid-session. The session is finalized as if stopped.
func (c *Coordinator) OnPermissionRevoked(ctx context.Context) (*StopResult, error) {
	return c.stop(ctx, activity.TypePermissionRevoked, "capture permission revoked")
}

func (c *Coordinator) stop(ctx context.Context, typ activity.ActivityType, summary string, pending ...[]byte) (*StopResult, error) {
	var p *pendingBundle
	err := c.do(ctx, func() error {
		ws, err := c.transitioning("stop")
		if err != nil {
			return err
		}
		if err := ws.session.Stop(pending...); err != nil {
			return err
		}
		p = c.finalize(ws, typ, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.persist(ctx, p)
}

// finalize assembles the bundle of a stopped session and queues it for
// persistence.
func (c *Coordinator) finalize(ws *workspace, typ activity.ActivityType, summary string) *pendingBundle {
	ws.cancel()
	id := ws.session.ID()
	chunks := ws.session.Chunks()
	annotations := ws.timeline.Snapshot()
	bundle := &recording.Bundle{
		RecordingID: id,
		UserID:      ws.userID,
		StartedAt:   ws.session.StartedAt(),
		StoppedAt:   ws.session.StoppedAt(),
		DurationMs:  ws.session.ElapsedMs(),
		Chunks:      chunks,
		Annotations: annotations,
		Thumbnail:   recording.DeriveThumbnail(id, chunks, annotations),
	}
	if ws.recorder.Len() > 0 {
		doc, err := ws.recorder.Finalize()
		if err != nil {
			c.logger.Warn("workflow left out of bundle", "recording_id", id, "error", err)
		} else {
			bundle.Workflow = doc
		}
	}
	if ws.location != nil {
		loc := *ws.location
		bundle.Location = &loc
	}

	pctx, cancel := context.WithCancel(context.WithoutCancel(ws.ctx))
	p := &pendingBundle{bundle: bundle, userID: ws.userID, inFlight: true, ctx: pctx, cancel: cancel}
	c.pending[id] = p

	duration := bundle.DurationMs
	c.record(ws, typ, summary, &duration)
	c.logger.Info(summary, "recording_id", id, "duration_ms", duration, "chunks", len(chunks), "annotations", len(annotations))
	return p
}

// Discard drops the loaded session and everything in flight for it. The
// capture device is released.
func (c *Coordinator) Discard(ctx context.Context) error {
	return c.do(ctx, func() error {
		ws := c.active
		if ws == nil {
			return ErrNoSession
		}
		ws.cancel()
		if err := ws.session.Release(); err != nil {
			c.logger.Warn("releasing capture device on discard", "recording_id", ws.session.ID(), "error", err)
		}
		id := ws.session.ID()
		if p, ok := c.pending[id]; ok {
			p.cancel()
			delete(c.pending, id)
		}
		c.active = nil
		c.generation++
		c.record(ws, activity.TypeRecordingDiscarded, "recording discarded", nil)
		c.logger.Info("recording discarded", "recording_id", id)
		return nil
	})
}

// OnChunk appends a chunk delivered by the capture source. Chunks that
// arrive with no session recording are logged and rejected.
func (c *Coordinator) OnChunk(ctx context.Context, data []byte) (capture.Chunk, error) {
	var chunk capture.Chunk
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			c.logger.Warn("chunk arrived without a capture session", "size", len(data))
			return fmt.Errorf("%w: %w", capture.ErrChunkRejected, err)
		}
		chunk, err = ws.session.AppendChunk(data)
		return err
	})
	return chunk, err
}
