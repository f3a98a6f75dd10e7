package recording

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/rpggio/screenmark/internal/repository"
)

// Service stores finalized bundles and serves them back for playback.
type Service struct {
	repo   Repository
	search SearchRepository
	logger *slog.Logger
}

// NewService creates a new recording service.
func NewService(repo Repository, search SearchRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, search: search, logger: logger}
}

// SaveBundle persists a finalized bundle and returns its durable identifier.
// Saving the same bundle twice is not an error; a different bundle under a
// stored recording ID yields ErrRecordingExists.
func (s *Service) SaveBundle(ctx context.Context, bundle *Bundle) (string, error) {
	if err := validateBundle(bundle); err != nil {
		return "", err
	}
	if err := s.repo.SaveBundle(ctx, bundle); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return bundle.RecordingID, nil
		}
		if errors.Is(err, repository.ErrKeyTaken) {
			return "", fmt.Errorf("%w: %s", ErrRecordingExists, bundle.RecordingID)
		}
		return "", fmt.Errorf("saving bundle: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("recording persisted",
			"recording_id", bundle.RecordingID,
			"chunks", len(bundle.Chunks),
			"annotations", len(bundle.Annotations))
	}
	return bundle.RecordingID, nil
}

// Exists reports whether a recording ID is already stored by any user.
func (s *Service) Exists(ctx context.Context, recordingID string) (bool, error) {
	if recordingID == "" {
		return false, ErrInvalidInput
	}
	ok, err := s.repo.Exists(ctx, recordingID)
	if err != nil {
		return false, fmt.Errorf("checking recording: %w", err)
	}
	return ok, nil
}

// SaveWorkflow replaces the workflow document of a persisted recording.
func (s *Service) SaveWorkflow(ctx context.Context, userID, recordingID string, doc *workflow.Documentation) error {
	if doc == nil || doc.RecordingID() != recordingID {
		return ErrInvalidInput
	}
	if err := s.repo.SaveWorkflow(ctx, userID, recordingID, doc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordingNotFound
		}
		return fmt.Errorf("saving workflow: %w", err)
	}
	return nil
}

// List returns the user's recordings, newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Recording, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	recs, err := s.repo.List(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing recordings: %w", err)
	}
	return recs, nil
}

// Get loads a recording with its timeline and workflow document.
func (s *Service) Get(ctx context.Context, userID, id string) (*Detail, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	annotations, err := s.repo.Annotations(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	doc, err := s.repo.Workflow(ctx, userID, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("loading workflow: %w", err)
	}
	return &Detail{Recording: *rec, Annotations: annotations, Workflow: doc}, nil
}

// Playback is a persisted recording loaded for scrubbing.
type Playback struct {
	Recording Recording
	timeline  *annotation.Timeline
}

// ActiveAt returns the annotations within toleranceMs of offsetMs.
func (p *Playback) ActiveAt(offsetMs, toleranceMs int64) []annotation.Annotation {
	return p.timeline.ActiveAt(offsetMs, toleranceMs)
}

// Replay walks the persisted timeline in order.
func (p *Playback) Replay() iter.Seq[annotation.Annotation] {
	return p.timeline.Replay()
}

// Len returns the number of annotations.
func (p *Playback) Len() int { return p.timeline.Len() }

// Playback loads a recording's timeline.
func (s *Service) Playback(ctx context.Context, userID, id string) (*Playback, error) {
	rec, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	annotations, err := s.repo.Annotations(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	return &Playback{Recording: *rec, timeline: annotation.RestoreTimeline(id, annotations)}, nil
}

// Search runs a full-text query over the user's annotations.
func (s *Service) Search(ctx context.Context, userID, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	results, err := s.search.Search(ctx, userID, query, opts)
	if err != nil {
		return nil, fmt.Errorf("searching annotations: %w", err)
	}
	return results, nil
}

// Chunk returns one media chunk of a persisted recording.
func (s *Service) Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error) {
	if _, err := s.load(ctx, userID, recordingID); err != nil {
		return nil, err
	}
	chunk, err := s.repo.Chunk(ctx, userID, recordingID, seq)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: chunk %d", ErrChunkNotFound, seq)
		}
		return nil, fmt.Errorf("loading chunk: %w", err)
	}
	return chunk, nil
}

func (s *Service) load(ctx context.Context, userID, id string) (*Recording, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	rec, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("loading recording: %w", err)
	}
	return rec, nil
}

func validateBundle(b *Bundle) error {
	if b == nil || b.RecordingID == "" {
		return ErrInvalidInput
	}
	if b.DurationMs < 0 || b.StoppedAt.Before(b.StartedAt) {
		return fmt.Errorf("%w: recording %s has a negative duration", ErrInvalidInput, b.RecordingID)
	}
	for _, a := range b.Annotations {
		if a.RecordingID != b.RecordingID {
			return fmt.Errorf("%w: annotation %s belongs to recording %s", ErrInvalidInput, a.ID, a.RecordingID)
		}
	}
	if b.Workflow != nil && b.Workflow.RecordingID() != b.RecordingID {
		return fmt.Errorf("%w: workflow belongs to recording %s", ErrInvalidInput, b.Workflow.RecordingID())
	}
	return nil
}
