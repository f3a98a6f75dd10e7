package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StopResult summarizes a finalized bundle and its hand-off.
type StopResult struct {
	RecordingID     string                  `json:"recording_id"`
	StorageID       string                  `json:"storage_id,omitempty"`
	Persisted       bool                    `json:"persisted"`
	DurationMs      int64                   `json:"duration_ms"`
	ChunkCount      int                     `json:"chunk_count"`
	AnnotationCount int                     `json:"annotation_count"`
	StepCount       int                     `json:"step_count"`
	Thumbnail       *recording.ThumbnailRef `json:"thumbnail,omitempty"`
	Location        *recording.Location     `json:"location,omitempty"`
}

func summarize(b *recording.Bundle) *StopResult {
	result := &StopResult{
		RecordingID:     b.RecordingID,
		DurationMs:      b.DurationMs,
		ChunkCount:      len(b.Chunks),
		AnnotationCount: len(b.Annotations),
		Thumbnail:       b.Thumbnail,
		Location:        b.Location,
	}
	if b.Workflow != nil {
		result.StepCount = b.Workflow.Len()
	}
	return result
}

// persist hands a pending bundle to the store off the event loop. The caller
// must have marked p in flight on the loop.
func (c *Coordinator) persist(ctx context.Context, p *pendingBundle) (*StopResult, error) {
	bundle := p.bundle
	id := bundle.RecordingID

	pctx, span := c.tracer.Start(p.ctx, "coordinator.persist_bundle",
		trace.WithAttributes(
			attribute.String("recording.id", id),
			attribute.Int("recording.chunks", len(bundle.Chunks)),
			attribute.Int("recording.annotations", len(bundle.Annotations)),
		))
	pctx, cancel := context.WithTimeout(pctx, c.cfg.PersistTimeout)
	storageID, saveErr := await(pctx, func(ctx context.Context) (string, error) {
		return c.cfg.Store.SaveBundle(ctx, bundle)
	}, nil)
	cancel()
	if saveErr != nil {
		saveErr = timeoutError("bundle hand-off", c.cfg.PersistTimeout, saveErr)
		span.RecordError(saveErr)
		span.SetStatus(codes.Error, saveErr.Error())
	}
	span.End()

	var result *StopResult
	err := c.do(context.WithoutCancel(ctx), func() error {
		p.inFlight = false
		if c.pending[id] != p {
			return ErrStaleSession
		}
		result = summarize(bundle)
		ws := c.active
		if ws != nil && ws.session.ID() != id {
			ws = nil
		}
		if saveErr != nil {
			p.lastErr = saveErr
			c.recordFor(p.userID, id, activity.TypePersistFailed, saveErr.Error())
			c.logger.Error("persisting recording", "recording_id", id, "error", saveErr)
			return fmt.Errorf("%w: %w", ErrPersistenceFailure, saveErr)
		}
		delete(c.pending, id)
		p.cancel()
		if ws != nil {
			ws.persisted = true
		}
		result.StorageID = storageID
		result.Persisted = true
		c.recordFor(p.userID, id, activity.TypePersisted, "recording persisted as "+storageID)
		return nil
	})
	return result, err
}

// RetryPersist hands a pending bundle to the store again. An empty
// recordingID selects the loaded session's bundle.
func (c *Coordinator) RetryPersist(ctx context.Context, recordingID string) (*StopResult, error) {
	var p *pendingBundle
	err := c.do(ctx, func() error {
		id := recordingID
		if id == "" && c.active != nil {
			id = c.active.session.ID()
		}
		p = c.pending[id]
		if p == nil {
			return ErrNothingPending
		}
		if p.inFlight {
			return ErrPersistInFlight
		}
		p.inFlight = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("retrying persistence", "recording_id", p.bundle.RecordingID)
	return c.persist(ctx, p)
}

// PendingBundle describes a bundle awaiting persistence.
type PendingBundle struct {
	RecordingID string `json:"recording_id"`
	InFlight    bool   `json:"in_flight"`
	LastError   string `json:"last_error,omitempty"`
}

// PendingBundles lists bundles the store has not acknowledged.
func (c *Coordinator) PendingBundles(ctx context.Context) ([]PendingBundle, error) {
	var out []PendingBundle
	err := c.do(ctx, func() error {
		out = make([]PendingBundle, 0, len(c.pending))
		for id, p := range c.pending {
			entry := PendingBundle{RecordingID: id, InFlight: p.inFlight}
			if p.lastErr != nil {
				entry.LastError = p.lastErr.Error()
			}
			out = append(out, entry)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].RecordingID < out[j].RecordingID })
		return nil
	})
	return out, err
}
