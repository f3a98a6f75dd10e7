package recording

import (
	"context"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// Repository provides persistence for finalized recordings.
type Repository interface {
	SaveBundle(ctx context.Context, bundle *Bundle) error
	SaveWorkflow(ctx context.Context, userID, recordingID string, doc *workflow.Documentation) error
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, userID, id string) (*Recording, error)
	List(ctx context.Context, userID string, opts ListOptions) ([]Recording, error)
	Annotations(ctx context.Context, userID, recordingID string) ([]annotation.Annotation, error)
	Workflow(ctx context.Context, userID, recordingID string) (*workflow.Documentation, error)
	Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error)
}

// SearchRepository provides full-text search over annotations.
type SearchRepository interface {
	Search(ctx context.Context, userID, query string, opts SearchOptions) ([]SearchResult, error)
}
