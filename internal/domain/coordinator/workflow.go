package coordinator

import (
	"context"
	"fmt"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// BeginStep opens a workflow step at the current elapsed time.
func (c *Coordinator) BeginStep(ctx context.Context, title, description string) (workflow.Step, error) {
	var step workflow.Step
	err := c.do(ctx, func() error {
		ws, err := c.capturing("begin step")
		if err != nil {
			return err
		}
		step, err = ws.recorder.BeginStep(title, description)
		return err
	})
	return step, err
}

// AppendStep adds a step authored with an explicit timestamp. It works on a
// stopped session too.
func (c *Coordinator) AppendStep(ctx context.Context, step workflow.Step) (workflow.Step, error) {
	var out workflow.Step
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		out, err = ws.recorder.AppendStep(step)
		return err
	})
	return out, err
}

// AttachAnnotation links a timeline annotation to a step.
func (c *Coordinator) AttachAnnotation(ctx context.Context, stepNumber int, annotationID string) error {
	return c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		return ws.recorder.AttachAnnotation(stepNumber, annotationID)
	})
}

// MoveStep reorders a step and renumbers the document.
func (c *Coordinator) MoveStep(ctx context.Context, from, to int) ([]workflow.Step, error) {
	var steps []workflow.Step
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		if err := ws.recorder.MoveStep(from, to); err != nil {
			return err
		}
		steps = ws.recorder.Steps()
		return nil
	})
	return steps, err
}

// WorkflowSteps returns the steps authored so far.
func (c *Coordinator) WorkflowSteps(ctx context.Context) ([]workflow.Step, error) {
	var steps []workflow.Step
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		steps = ws.recorder.Steps()
		return nil
	})
	return steps, err
}

// PublishWorkflow finalizes the workflow document of a stopped session. A
// bundle still awaiting persistence carries the document on its next
// attempt; an already persisted recording gets the document replaced in the
// store.
func (c *Coordinator) PublishWorkflow(ctx context.Context) (*workflow.Documentation, error) {
	var (
		doc     *workflow.Documentation
		userID  string
		storeIt bool
	)
	err := c.do(ctx, func() error {
		ws, err := c.loaded()
		if err != nil {
			return err
		}
		if state := ws.session.State(); state != capture.StateStopped {
			return &capture.TransitionError{Op: "publish workflow", From: state}
		}
		doc, err = ws.recorder.Finalize()
		if err != nil {
			return err
		}
		userID = ws.userID
		if p, ok := c.pending[ws.session.ID()]; ok {
			if p.inFlight {
				return ErrPersistInFlight
			}
			updated := *p.bundle
			updated.Workflow = doc
			p.bundle = &updated
			return nil
		}
		storeIt = true
		return nil
	})
	if err != nil || !storeIt {
		return doc, err
	}

	id := doc.RecordingID()
	sctx, span := c.tracer.Start(ctx, "coordinator.save_workflow")
	defer span.End()
	sctx, cancel := context.WithTimeout(sctx, c.cfg.PersistTimeout)
	defer cancel()
	_, err = await(sctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.cfg.Store.SaveWorkflow(ctx, userID, id, doc)
	}, nil)
	if err != nil {
		err = timeoutError("workflow hand-off", c.cfg.PersistTimeout, err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	_ = c.do(context.WithoutCancel(ctx), func() error {
		c.recordFor(userID, id, activity.TypeWorkflowPublished, fmt.Sprintf("workflow with %d steps", doc.Len()))
		return nil
	})
	return doc, nil
}
