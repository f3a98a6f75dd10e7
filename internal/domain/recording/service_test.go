package recording_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/rpggio/screenmark/internal/repository"
	"github.com/rpggio/screenmark/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService() (*recording.Service, *mocks.RecordingRepository, *mocks.SearchRepository) {
	repo := &mocks.RecordingRepository{}
	search := &mocks.SearchRepository{}
	return recording.NewService(repo, search, nil), repo, search
}

func bundle() *recording.Bundle {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &recording.Bundle{
		RecordingID: "rec1",
		UserID:      "user1",
		StartedAt:   start,
		StoppedAt:   start.Add(8 * time.Second),
		DurationMs:  8000,
		Chunks:      []capture.Chunk{{Seq: 0, OffsetMs: 1000, Size: 3}},
		Annotations: []annotation.Annotation{{
			ID: "a1", RecordingID: "rec1", TimestampMs: 500,
			Type: annotation.TypeMarker, Payload: annotation.MarkerPayload{},
		}},
	}
}

func TestService_SaveBundle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	b := bundle()

	repo.On("SaveBundle", ctx, b).Return(nil).Once()
	id, err := svc.SaveBundle(ctx, b)
	require.NoError(t, err)
	require.Equal(t, "rec1", id)

	repo.On("SaveBundle", ctx, b).Return(repository.ErrConflict).Once()
	id, err = svc.SaveBundle(ctx, b)
	require.NoError(t, err, "saving twice is idempotent")
	require.Equal(t, "rec1", id)

	boom := errors.New("database is locked")
	repo.On("SaveBundle", ctx, b).Return(boom).Once()
	_, err = svc.SaveBundle(ctx, b)
	require.ErrorIs(t, err, boom)
	repo.AssertExpectations(t)
}

func TestService_SaveBundleIDTakenByOtherBundle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	b := bundle()

	repo.On("SaveBundle", ctx, b).Return(fmt.Errorf("recording rec1: %w", repository.ErrKeyTaken)).Once()
	id, err := svc.SaveBundle(ctx, b)
	require.ErrorIs(t, err, recording.ErrRecordingExists)
	require.Empty(t, id)
	repo.AssertExpectations(t)
}

func TestService_Exists(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()

	repo.On("Exists", ctx, "rec1").Return(true, nil).Once()
	ok, err := svc.Exists(ctx, "rec1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Exists(ctx, "")
	require.ErrorIs(t, err, recording.ErrInvalidInput)
	repo.AssertExpectations(t)
}

func TestService_SaveBundleValidation(t *testing.T) {
	svc, repo, _ := newService()

	_, err := svc.SaveBundle(context.Background(), nil)
	require.ErrorIs(t, err, recording.ErrInvalidInput)

	b := bundle()
	b.Annotations[0].RecordingID = "other"
	_, err = svc.SaveBundle(context.Background(), b)
	require.ErrorIs(t, err, recording.ErrInvalidInput)

	b = bundle()
	b.StoppedAt = b.StartedAt.Add(-time.Second)
	_, err = svc.SaveBundle(context.Background(), b)
	require.ErrorIs(t, err, recording.ErrInvalidInput)

	repo.AssertNotCalled(t, "SaveBundle", mock.Anything, mock.Anything)
}

func TestService_GetMapsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	repo.On("Get", ctx, "user1", "missing").Return(nil, repository.ErrNotFound)

	_, err := svc.Get(ctx, "user1", "missing")
	require.ErrorIs(t, err, recording.ErrRecordingNotFound)

	_, err = svc.Playback(ctx, "user1", "missing")
	require.ErrorIs(t, err, recording.ErrRecordingNotFound)
}

func TestService_GetWithoutWorkflow(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	b := bundle()

	repo.On("Get", ctx, "user1", "rec1").Return(&recording.Recording{ID: "rec1", UserID: "user1"}, nil)
	repo.On("Annotations", ctx, "user1", "rec1").Return(b.Annotations, nil)
	repo.On("Workflow", ctx, "user1", "rec1").Return(nil, repository.ErrNotFound)

	detail, err := svc.Get(ctx, "user1", "rec1")
	require.NoError(t, err)
	require.Equal(t, "rec1", detail.ID)
	require.Len(t, detail.Annotations, 1)
	require.Nil(t, detail.Workflow)
}

func TestService_PlaybackActiveAt(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	stored := []annotation.Annotation{
		{ID: "late", RecordingID: "rec1", TimestampMs: 3000, Seq: 2, Type: annotation.TypeMarker, Payload: annotation.MarkerPayload{}},
		{ID: "early", RecordingID: "rec1", TimestampMs: 1000, Seq: 0, Type: annotation.TypeMarker, Payload: annotation.MarkerPayload{}},
		{ID: "mid", RecordingID: "rec1", TimestampMs: 1100, Seq: 1, Type: annotation.TypeMarker, Payload: annotation.MarkerPayload{}},
	}
	repo.On("Get", ctx, "user1", "rec1").Return(&recording.Recording{ID: "rec1"}, nil)
	repo.On("Annotations", ctx, "user1", "rec1").Return(stored, nil)

	playback, err := svc.Playback(ctx, "user1", "rec1")
	require.NoError(t, err)
	require.Equal(t, 3, playback.Len())

	active := playback.ActiveAt(1050, 50)
	require.Len(t, active, 2)
	require.Equal(t, "early", active[0].ID)
	require.Equal(t, "mid", active[1].ID)
	require.Empty(t, playback.ActiveAt(2000, 10))
}

func TestService_SaveWorkflow(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()
	doc, err := workflow.Restore("rec1", []workflow.Step{{Number: 1, Title: "one"}}, time.Now())
	require.NoError(t, err)

	repo.On("SaveWorkflow", ctx, "user1", "rec1", doc).Return(nil).Once()
	require.NoError(t, svc.SaveWorkflow(ctx, "user1", "rec1", doc))

	repo.On("SaveWorkflow", ctx, "user1", "rec1", doc).Return(repository.ErrNotFound).Once()
	require.ErrorIs(t, svc.SaveWorkflow(ctx, "user1", "rec1", doc), recording.ErrRecordingNotFound)

	require.ErrorIs(t, svc.SaveWorkflow(ctx, "user1", "rec2", doc), recording.ErrInvalidInput)
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc, _, search := newService()

	_, err := svc.Search(ctx, "user1", "  ", recording.SearchOptions{})
	require.ErrorIs(t, err, recording.ErrInvalidInput)

	search.On("Search", ctx, "user1", "login", recording.SearchOptions{Limit: 50}).
		Return([]recording.SearchResult{{AnnotationID: "a1", RecordingID: "rec1"}}, nil)
	results, err := svc.Search(ctx, "user1", "login", recording.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestDeriveThumbnail(t *testing.T) {
	chunks := []capture.Chunk{
		{Seq: 0, OffsetMs: 1000},
		{Seq: 1, OffsetMs: 2000},
		{Seq: 2, OffsetMs: 3000},
	}
	at := func(ts int64) []annotation.Annotation {
		return []annotation.Annotation{{TimestampMs: ts}}
	}

	require.Nil(t, recording.DeriveThumbnail("rec1", nil, at(10)))
	require.Equal(t, 0, recording.DeriveThumbnail("rec1", chunks, nil).ChunkSeq)
	require.Equal(t, 1, recording.DeriveThumbnail("rec1", chunks, at(1500)).ChunkSeq)
	require.Equal(t, 1, recording.DeriveThumbnail("rec1", chunks, at(2000)).ChunkSeq)
	require.Equal(t, 2, recording.DeriveThumbnail("rec1", chunks, at(9000)).ChunkSeq)

	ref := recording.DeriveThumbnail("rec1", chunks, at(0))
	require.Equal(t, recording.ThumbnailRef{RecordingID: "rec1", ChunkSeq: 0, OffsetMs: 1000}, *ref)
}

func TestService_Chunk(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService()

	repo.On("Get", ctx, "user1", "rec1").Return(&recording.Recording{ID: "rec1"}, nil)
	repo.On("Chunk", ctx, "user1", "rec1", 0).Return(&capture.Chunk{Seq: 0, Data: []byte("abc"), Size: 3}, nil)
	repo.On("Chunk", ctx, "user1", "rec1", 9).Return(nil, repository.ErrNotFound)

	chunk, err := svc.Chunk(ctx, "user1", "rec1", 0)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), chunk.Data)

	_, err = svc.Chunk(ctx, "user1", "rec1", 9)
	require.ErrorIs(t, err, recording.ErrChunkNotFound)

	repo.On("Get", ctx, "user1", "missing").Return(nil, repository.ErrNotFound)
	_, err = svc.Chunk(ctx, "user1", "missing", 0)
	require.ErrorIs(t, err, recording.ErrRecordingNotFound)
}
