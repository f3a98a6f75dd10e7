package coordinator

import (
	"context"
	"fmt"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
)

// AnnotateRequest is a UI-originated annotation event.
type AnnotateRequest struct {
	ID          string
	Type        annotation.Type
	Title       *string
	Description *string
	Payload     annotation.Payload
	Color       string
	// OffsetMs places the annotation at an earlier point of the recording.
	// When nil the annotation is stamped with the current elapsed time.
	OffsetMs *int64
}

// Annotate stamps the event with the session's elapsed time and the caller's
// identity, then inserts it into the timeline.
func (c *Coordinator) Annotate(ctx context.Context, req AnnotateRequest) (annotation.Annotation, error) {
	userID := IdentityFromContext(ctx)
	var out annotation.Annotation
	err := c.do(ctx, func() error {
		ws, err := c.capturing("annotate")
		if err != nil {
			return err
		}
		elapsed := ws.session.ElapsedMs()
		ts := elapsed
		if req.OffsetMs != nil {
			if *req.OffsetMs < 0 || *req.OffsetMs > elapsed {
				return fmt.Errorf("%w: offset %dms outside recording [0, %d]", annotation.ErrInvalidAnnotation, *req.OffsetMs, elapsed)
			}
			ts = *req.OffsetMs
		}
		inserted, err := ws.timeline.Insert(annotation.Annotation{
			ID:          req.ID,
			RecordingID: ws.session.ID(),
			UserID:      userID,
			TimestampMs: ts,
			Type:        req.Type,
			Title:       req.Title,
			Description: req.Description,
			Payload:     req.Payload,
			Color:       req.Color,
		})
		if err != nil {
			return err
		}
		out = inserted
		c.record(ws, activity.TypeAnnotationAdded, fmt.Sprintf("%s annotation %s", inserted.Type, inserted.ID), &ts)
		return nil
	})
	return out, err
}

// RemoveAnnotation deletes an annotation from the live timeline and from
// any workflow step that references it.
func (c *Coordinator) RemoveAnnotation(ctx context.Context, id string) error {
	return c.do(ctx, func() error {
		ws, err := c.capturing("remove annotation")
		if err != nil {
			return err
		}
		existing, err := ws.timeline.Get(id)
		if err != nil {
			return err
		}
		if err := ws.timeline.Remove(id); err != nil {
			return err
		}
		ws.recorder.ForgetAnnotation(id)
		ts := existing.TimestampMs
		c.record(ws, activity.TypeAnnotationRemoved, fmt.Sprintf("%s annotation %s", existing.Type, id), &ts)
		return nil
	})
}

// ActiveAt returns the loaded session's annotations within toleranceMs of offsetMs.
func (c *Coordinator) ActiveAt(ctx context.Context, offsetMs, toleranceMs int64) ([]annotation.Annotation, error) {
	var out []annotation.Annotation
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		out = ws.timeline.ActiveAt(offsetMs, toleranceMs)
		return nil
	})
	return out, err
}

// Annotations returns the loaded session's timeline in order.
func (c *Coordinator) Annotations(ctx context.Context) ([]annotation.Annotation, error) {
	var out []annotation.Annotation
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		out = ws.timeline.Snapshot()
		return nil
	})
	return out, err
}
