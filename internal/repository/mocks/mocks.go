package mocks

import (
	"context"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/stretchr/testify/mock"
)

// RecordingRepository is a mock for recording.Repository.
type RecordingRepository struct {
	mock.Mock
}

func (m *RecordingRepository) SaveBundle(ctx context.Context, bundle *recording.Bundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

func (m *RecordingRepository) SaveWorkflow(ctx context.Context, userID, recordingID string, doc *workflow.Documentation) error {
	args := m.Called(ctx, userID, recordingID, doc)
	return args.Error(0)
}

func (m *RecordingRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *RecordingRepository) Get(ctx context.Context, userID, id string) (*recording.Recording, error) {
	args := m.Called(ctx, userID, id)
	if rec, ok := args.Get(0).(*recording.Recording); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordingRepository) List(ctx context.Context, userID string, opts recording.ListOptions) ([]recording.Recording, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]recording.Recording); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordingRepository) Annotations(ctx context.Context, userID, recordingID string) ([]annotation.Annotation, error) {
	args := m.Called(ctx, userID, recordingID)
	if list, ok := args.Get(0).([]annotation.Annotation); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordingRepository) Workflow(ctx context.Context, userID, recordingID string) (*workflow.Documentation, error) {
	args := m.Called(ctx, userID, recordingID)
	if doc, ok := args.Get(0).(*workflow.Documentation); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordingRepository) Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error) {
	args := m.Called(ctx, userID, recordingID, seq)
	if c, ok := args.Get(0).(*capture.Chunk); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// SearchRepository is a mock for recording.SearchRepository.
type SearchRepository struct {
	mock.Mock
}

func (m *SearchRepository) Search(ctx context.Context, userID, query string, opts recording.SearchOptions) ([]recording.SearchResult, error) {
	args := m.Called(ctx, userID, query, opts)
	if list, ok := args.Get(0).([]recording.SearchResult); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, userID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
