package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/rpggio/screenmark/internal/repository"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleBundle(t *testing.T, id, userID string) *recording.Bundle {
	t.Helper()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	text := "Total"

	annotations := []annotation.Annotation{
		{
			ID: id + "-a1", RecordingID: id, UserID: userID, TimestampMs: 1200, Seq: 0,
			Type: annotation.TypeMarker, Title: strPtr("Checkout button"),
			Payload: annotation.MarkerPayload{Label: "checkout stalls"}, Color: "#ff0000",
			CreatedAt: start, UpdatedAt: start,
		},
		{
			ID: id + "-a2", RecordingID: id, UserID: userID, TimestampMs: 1200, Seq: 1,
			Type: annotation.TypeDrawing,
			Payload: annotation.DrawingPayload{Shapes: []annotation.DrawingShape{{
				Kind: annotation.ShapeText, Start: annotation.Point{X: 1, Y: 2}, Text: &text,
			}}},
			CreatedAt: start, UpdatedAt: start,
		},
		{
			ID: id + "-a3", RecordingID: id, UserID: userID, TimestampMs: 4000, Seq: 2,
			Type: annotation.TypeVoiceNote, Description: strPtr("narration"),
			Payload:   annotation.VoiceNotePayload{AudioRef: "blob:1", DurationMs: 900, Transcription: "the spinner never stops"},
			CreatedAt: start, UpdatedAt: start,
		},
	}

	doc, err := workflow.Restore(id, []workflow.Step{
		{Number: 1, Title: "Open cart", TimestampMs: 500},
		{Number: 2, Title: "Press checkout", ExpectedResult: "Payment page", TimestampMs: 1200, AnnotationIDs: []string{id + "-a1", id + "-a2"}},
	}, start.Add(9*time.Second))
	require.NoError(t, err)

	return &recording.Bundle{
		RecordingID: id,
		UserID:      userID,
		StartedAt:   start,
		StoppedAt:   start.Add(8 * time.Second),
		DurationMs:  8000,
		Chunks: []capture.Chunk{
			{Seq: 0, OffsetMs: 1000, Data: []byte("aaa"), Size: 3, ReceivedAt: start.Add(time.Second)},
			{Seq: 1, OffsetMs: 2000, Data: []byte("bbbb"), Size: 4, ReceivedAt: start.Add(2 * time.Second)},
		},
		Annotations: annotations,
		Workflow:    doc,
		Thumbnail:   &recording.ThumbnailRef{RecordingID: id, ChunkSeq: 1, OffsetMs: 2000},
		Location:    &recording.Location{Lat: 52.37, Lon: 4.89, Accuracy: 12, Timestamp: start},
	}
}

func TestRecordingRepository_SaveAndGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	b := sampleBundle(t, "rec1", "u1")
	require.NoError(t, repo.SaveBundle(ctx, b))

	rec, err := repo.Get(ctx, "u1", "rec1")
	require.NoError(t, err)
	require.Equal(t, "rec1", rec.ID)
	require.Equal(t, int64(8000), rec.DurationMs)
	require.Equal(t, 2, rec.ChunkCount)
	require.Equal(t, int64(7), rec.TotalBytes)
	require.Equal(t, 3, rec.AnnotationCount)
	require.Equal(t, 2, rec.StepCount)
	require.True(t, rec.StartedAt.Equal(b.StartedAt))
	require.NotNil(t, rec.Thumbnail)
	require.Equal(t, 1, rec.Thumbnail.ChunkSeq)
	require.NotNil(t, rec.Location)
	require.InDelta(t, 52.37, rec.Location.Lat, 1e-9)
	require.True(t, rec.Location.Timestamp.Equal(b.Location.Timestamp))

	_, err = repo.Get(ctx, "u2", "rec1")
	require.ErrorIs(t, err, repository.ErrNotFound, "recordings are scoped to their user")

	_, err = repo.Get(ctx, "u1", "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordingRepository_SaveTwiceConflicts(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	require.NoError(t, repo.SaveBundle(ctx, sampleBundle(t, "rec1", "u1")))
	err := repo.SaveBundle(ctx, sampleBundle(t, "rec1", "u1"))
	require.ErrorIs(t, err, repository.ErrConflict)

	var chunks int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM recording_chunks WHERE recording_id = 'rec1'`).Scan(&chunks))
	require.Equal(t, 2, chunks, "the failed save left nothing behind")
}

func TestRecordingRepository_SaveDifferentBundleUnderTakenID(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	require.NoError(t, repo.SaveBundle(ctx, sampleBundle(t, "shared", "alice")))

	err := repo.SaveBundle(ctx, sampleBundle(t, "shared", "bob"))
	require.ErrorIs(t, err, repository.ErrKeyTaken)
	require.NotErrorIs(t, err, repository.ErrConflict, "another user's bundle is not a duplicate save")

	later := sampleBundle(t, "shared", "alice")
	later.StartedAt = later.StartedAt.Add(time.Hour)
	later.StoppedAt = later.StoppedAt.Add(time.Hour)
	require.ErrorIs(t, repo.SaveBundle(ctx, later), repository.ErrKeyTaken)

	rec, err := repo.Get(ctx, "alice", "shared")
	require.NoError(t, err)
	require.True(t, rec.StartedAt.Equal(sampleBundle(t, "shared", "alice").StartedAt), "the stored bundle is untouched")
}

func TestRecordingRepository_AnnotationIDsAreScopedToRecording(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	first := sampleBundle(t, "rec1", "u1")
	second := sampleBundle(t, "rec2", "u1")
	for _, b := range []*recording.Bundle{first, second} {
		b.Annotations[0].ID = "note-1"
		b.Workflow = nil
		require.NoError(t, repo.SaveBundle(ctx, b))
	}

	for _, id := range []string{"rec1", "rec2"} {
		got, err := repo.Annotations(ctx, "u1", id)
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, "note-1", got[0].ID)
		require.Equal(t, id, got[0].RecordingID)
	}

	dup := sampleBundle(t, "rec3", "u1")
	dup.Workflow = nil
	dup.Annotations[1].ID = dup.Annotations[0].ID
	err := repo.SaveBundle(ctx, dup)
	require.Error(t, err)
	require.NotErrorIs(t, err, repository.ErrConflict, "a clash inside one bundle is a failed save")
	ok, err := repo.Exists(ctx, "rec3")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordingRepository_Exists(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	ok, err := repo.Exists(ctx, "rec1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.SaveBundle(ctx, sampleBundle(t, "rec1", "u1")))
	ok, err = repo.Exists(ctx, "rec1")
	require.NoError(t, err)
	require.True(t, ok, "existence is checked across users")
}

func TestRecordingRepository_AnnotationsRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	b := sampleBundle(t, "rec1", "u1")
	require.NoError(t, repo.SaveBundle(ctx, b))

	got, err := repo.Annotations(ctx, "u1", "rec1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, a := range got {
		require.Equal(t, b.Annotations[i].ID, a.ID, "timeline order is preserved")
		require.Equal(t, b.Annotations[i].Payload, a.Payload)
		require.Equal(t, b.Annotations[i].Title, a.Title)
		require.Equal(t, b.Annotations[i].Description, a.Description)
	}

	tl := annotation.RestoreTimeline("rec1", got)
	active := tl.ActiveAt(1200, 0)
	require.Len(t, active, 2)

	other, err := repo.Annotations(ctx, "u2", "rec1")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestRecordingRepository_Workflow(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	b := sampleBundle(t, "rec1", "u1")
	require.NoError(t, repo.SaveBundle(ctx, b))

	doc, err := repo.Workflow(ctx, "u1", "rec1")
	require.NoError(t, err)
	require.Equal(t, b.Workflow.Steps(), doc.Steps())
	require.True(t, doc.FinalizedAt().Equal(b.Workflow.FinalizedAt()))

	replacement, err := workflow.Restore("rec1", []workflow.Step{
		{Number: 1, Title: "Only step", TimestampMs: 100, AnnotationIDs: []string{"rec1-a3"}},
	}, b.StoppedAt)
	require.NoError(t, err)
	require.NoError(t, repo.SaveWorkflow(ctx, "u1", "rec1", replacement))

	doc, err = repo.Workflow(ctx, "u1", "rec1")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
	step, ok := doc.Step(1)
	require.True(t, ok)
	require.Equal(t, []string{"rec1-a3"}, step.AnnotationIDs)

	rec, err := repo.Get(ctx, "u1", "rec1")
	require.NoError(t, err)
	require.Equal(t, 1, rec.StepCount)

	err = repo.SaveWorkflow(ctx, "u2", "rec1", replacement)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordingRepository_WorkflowMissing(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	b := sampleBundle(t, "rec1", "u1")
	b.Workflow = nil
	require.NoError(t, repo.SaveBundle(ctx, b))

	_, err := repo.Workflow(ctx, "u1", "rec1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordingRepository_ListAndChunk(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecordingRepository(db)

	older := sampleBundle(t, "rec1", "u1")
	newer := sampleBundle(t, "rec2", "u1")
	newer.StartedAt = newer.StartedAt.Add(time.Hour)
	newer.StoppedAt = newer.StoppedAt.Add(time.Hour)
	require.NoError(t, repo.SaveBundle(ctx, older))
	require.NoError(t, repo.SaveBundle(ctx, newer))
	require.NoError(t, repo.SaveBundle(ctx, sampleBundle(t, "rec3", "u2")))

	recs, err := repo.List(ctx, "u1", recording.ListOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "rec2", recs[0].ID)
	require.Equal(t, "rec1", recs[1].ID)

	recs, err = repo.List(ctx, "u1", recording.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "rec1", recs[0].ID)

	chunk, err := repo.Chunk(ctx, "u1", "rec1", 1)
	require.NoError(t, err)
	require.Equal(t, []byte("bbbb"), chunk.Data)
	require.Equal(t, int64(2000), chunk.OffsetMs)

	_, err = repo.Chunk(ctx, "u1", "rec1", 7)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.Chunk(ctx, "u2", "rec1", 0)
	require.ErrorIs(t, err, repository.ErrNotFound)
}
