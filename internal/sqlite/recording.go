package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/rpggio/screenmark/internal/repository"
)

// RecordingRepository implements recording.Repository for SQLite
type RecordingRepository struct {
	db *DB
}

// NewRecordingRepository creates a new RecordingRepository
func NewRecordingRepository(db *DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

// SaveBundle writes a finalized bundle in one transaction. Saving a bundle
// that is already stored yields repository.ErrConflict; a different bundle
// under a stored recording ID yields repository.ErrKeyTaken.
func (r *RecordingRepository) SaveBundle(ctx context.Context, bundle *recording.Bundle) error {
	if bundle == nil || bundle.RecordingID == "" {
		return repository.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var thumbSeq, thumbOffset sql.NullInt64
	if t := bundle.Thumbnail; t != nil {
		thumbSeq = sql.NullInt64{Int64: int64(t.ChunkSeq), Valid: true}
		thumbOffset = sql.NullInt64{Int64: t.OffsetMs, Valid: true}
	}
	var lat, lon, accuracy sql.NullFloat64
	var locatedAt sql.NullTime
	if l := bundle.Location; l != nil {
		lat = sql.NullFloat64{Float64: l.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: l.Lon, Valid: true}
		accuracy = sql.NullFloat64{Float64: l.Accuracy, Valid: true}
		locatedAt = sql.NullTime{Time: l.Timestamp.UTC(), Valid: !l.Timestamp.IsZero()}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (
			id, user_id, started_at, stopped_at, duration_ms,
			chunk_count, total_bytes, thumbnail_chunk_seq, thumbnail_offset_ms,
			location_lat, location_lon, location_accuracy, location_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		bundle.RecordingID,
		bundle.UserID,
		bundle.StartedAt.UTC(),
		bundle.StoppedAt.UTC(),
		bundle.DurationMs,
		len(bundle.Chunks),
		bundle.TotalBytes(),
		thumbSeq,
		thumbOffset,
		lat,
		lon,
		accuracy,
		locatedAt,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storedBundleConflict(ctx, tx, bundle)
		}
		return fmt.Errorf("failed to insert recording: %w", err)
	}

	for _, c := range bundle.Chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recording_chunks (recording_id, seq, offset_ms, size, data, received_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, bundle.RecordingID, c.Seq, c.OffsetMs, c.Size, c.Data, c.ReceivedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Seq, err)
		}
	}

	for _, a := range bundle.Annotations {
		if err := insertAnnotation(ctx, tx, bundle.UserID, a); err != nil {
			return err
		}
	}

	if bundle.Workflow != nil {
		if err := insertWorkflow(ctx, tx, bundle.UserID, bundle.Workflow); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bundle: %w", err)
	}
	return nil
}

// storedBundleConflict decides whether the row holding bundle's ID is the
// same bundle saved earlier.
func storedBundleConflict(ctx context.Context, tx *sql.Tx, bundle *recording.Bundle) error {
	var userID string
	var startedAt time.Time
	var chunkCount int
	err := tx.QueryRowContext(ctx,
		`SELECT user_id, started_at, chunk_count FROM recordings WHERE id = ?`,
		bundle.RecordingID,
	).Scan(&userID, &startedAt, &chunkCount)
	if err != nil {
		return fmt.Errorf("failed to load stored recording: %w", err)
	}
	if userID == bundle.UserID &&
		startedAt.UnixMilli() == bundle.StartedAt.UnixMilli() &&
		chunkCount == len(bundle.Chunks) {
		return repository.ErrConflict
	}
	return fmt.Errorf("recording %s: %w", bundle.RecordingID, repository.ErrKeyTaken)
}

func insertAnnotation(ctx context.Context, tx *sql.Tx, userID string, a annotation.Annotation) error {
	data, err := annotation.EncodePayload(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode annotation %s: %w", a.ID, err)
	}
	if a.UserID != "" {
		userID = a.UserID
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = a.CreatedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO annotations (
			id, recording_id, user_id, timestamp_ms, seq, type,
			title, description, data, color, search_text, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.RecordingID,
		userID,
		a.TimestampMs,
		a.Seq,
		a.Type,
		a.Title,
		a.Description,
		string(data),
		a.Color,
		a.SearchText(),
		a.CreatedAt.UTC(),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert annotation %s: %w", a.ID, err)
	}
	return nil
}

func insertWorkflow(ctx context.Context, tx *sql.Tx, userID string, doc *workflow.Documentation) error {
	id := doc.RecordingID()
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_docs WHERE recording_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear workflow: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workflow_docs (recording_id, user_id, finalized_at) VALUES (?, ?, ?)`,
		id, userID, doc.FinalizedAt().UTC(),
	); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	for _, step := range doc.Steps() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflow_steps (
				recording_id, step_number, title, description, expected_result, timestamp_ms
			) VALUES (?, ?, ?, ?, ?, ?)
		`, id, step.Number, step.Title, step.Description, step.ExpectedResult, step.TimestampMs)
		if err != nil {
			return fmt.Errorf("failed to insert step %d: %w", step.Number, err)
		}
		for pos, annotationID := range step.AnnotationIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workflow_step_annotations (recording_id, step_number, position, annotation_id)
				VALUES (?, ?, ?, ?)
			`, id, step.Number, pos, annotationID)
			if err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("step %d annotation %s: %w", step.Number, annotationID, repository.ErrForeignKeyViolation)
				}
				return fmt.Errorf("failed to link step %d: %w", step.Number, err)
			}
		}
	}
	return nil
}

// SaveWorkflow replaces the workflow document of an existing recording.
func (r *RecordingRepository) SaveWorkflow(ctx context.Context, userID, recordingID string, doc *workflow.Documentation) error {
	if doc == nil || doc.RecordingID() != recordingID {
		return repository.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recordings WHERE id = ? AND user_id = ?`,
		recordingID, userID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check recording: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}

	if err := insertWorkflow(ctx, tx, userID, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workflow: %w", err)
	}
	return nil
}

const recordingColumns = `
	r.id, r.user_id, r.started_at, r.stopped_at, r.duration_ms,
	r.chunk_count, r.total_bytes, r.thumbnail_chunk_seq, r.thumbnail_offset_ms,
	r.location_lat, r.location_lon, r.location_accuracy, r.location_at, r.created_at,
	(SELECT COUNT(*) FROM annotations a WHERE a.recording_id = r.id) AS annotation_count,
	(SELECT COUNT(*) FROM workflow_steps s WHERE s.recording_id = r.id) AS step_count
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*recording.Recording, error) {
	var rec recording.Recording
	var thumbSeq, thumbOffset sql.NullInt64
	var lat, lon, accuracy sql.NullFloat64
	var locatedAt sql.NullTime
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.StartedAt,
		&rec.StoppedAt,
		&rec.DurationMs,
		&rec.ChunkCount,
		&rec.TotalBytes,
		&thumbSeq,
		&thumbOffset,
		&lat,
		&lon,
		&accuracy,
		&locatedAt,
		&rec.CreatedAt,
		&rec.AnnotationCount,
		&rec.StepCount,
	)
	if err != nil {
		return nil, err
	}
	if thumbSeq.Valid {
		rec.Thumbnail = &recording.ThumbnailRef{
			RecordingID: rec.ID,
			ChunkSeq:    int(thumbSeq.Int64),
			OffsetMs:    thumbOffset.Int64,
		}
	}
	if lat.Valid && lon.Valid {
		rec.Location = &recording.Location{Lat: lat.Float64, Lon: lon.Float64, Accuracy: accuracy.Float64}
		if locatedAt.Valid {
			rec.Location.Timestamp = locatedAt.Time
		}
	}
	return &rec, nil
}

// Exists reports whether any user has stored a recording under id.
func (r *RecordingRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check recording: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a recording summary by ID
func (r *RecordingRepository) Get(ctx context.Context, userID, id string) (*recording.Recording, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings r WHERE r.id = ? AND r.user_id = ?`,
		id, userID,
	)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}
	return rec, nil
}

// List returns the user's recordings, newest first
func (r *RecordingRepository) List(ctx context.Context, userID string, opts recording.ListOptions) ([]recording.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings r WHERE r.user_id = ? ORDER BY r.started_at DESC, r.id`
	args := []interface{}{userID}

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var recs []recording.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recording rows: %w", err)
	}
	return recs, nil
}

// Annotations returns a recording's timeline in timestamp order.
func (r *RecordingRepository) Annotations(ctx context.Context, userID, recordingID string) ([]annotation.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			a.id, a.recording_id, a.user_id, a.timestamp_ms, a.seq, a.type,
			a.title, a.description, a.data, a.color, a.created_at, a.updated_at
		FROM annotations a
		JOIN recordings r ON r.id = a.recording_id
		WHERE a.recording_id = ? AND r.user_id = ?
		ORDER BY a.timestamp_ms, a.seq
	`, recordingID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	annotations := []annotation.Annotation{}
	for rows.Next() {
		var a annotation.Annotation
		var title, description sql.NullString
		var data string
		if err := rows.Scan(
			&a.ID,
			&a.RecordingID,
			&a.UserID,
			&a.TimestampMs,
			&a.Seq,
			&a.Type,
			&title,
			&description,
			&data,
			&a.Color,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if title.Valid {
			a.Title = &title.String
		}
		if description.Valid {
			a.Description = &description.String
		}
		a.Payload, err = annotation.DecodePayload(a.Type, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode annotation %s: %w", a.ID, err)
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return annotations, nil
}

// Workflow loads the workflow document of a recording.
func (r *RecordingRepository) Workflow(ctx context.Context, userID, recordingID string) (*workflow.Documentation, error) {
	var finalizedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT finalized_at FROM workflow_docs WHERE recording_id = ? AND user_id = ?`,
		recordingID, userID,
	).Scan(&finalizedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.step_number, s.title, s.description, s.expected_result, s.timestamp_ms, l.annotation_id
		FROM workflow_steps s
		LEFT JOIN workflow_step_annotations l
			ON l.recording_id = s.recording_id AND l.step_number = s.step_number
		WHERE s.recording_id = ?
		ORDER BY s.step_number, l.position
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow steps: %w", err)
	}
	defer rows.Close()

	var steps []workflow.Step
	for rows.Next() {
		var step workflow.Step
		var annotationID sql.NullString
		if err := rows.Scan(
			&step.Number,
			&step.Title,
			&step.Description,
			&step.ExpectedResult,
			&step.TimestampMs,
			&annotationID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow step: %w", err)
		}
		if n := len(steps); n == 0 || steps[n-1].Number != step.Number {
			steps = append(steps, step)
		}
		if annotationID.Valid {
			last := &steps[len(steps)-1]
			last.AnnotationIDs = append(last.AnnotationIDs, annotationID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow rows: %w", err)
	}

	doc, err := workflow.Restore(recordingID, steps, finalizedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to restore workflow: %w", err)
	}
	return doc, nil
}

// Chunk returns one stored media chunk of a recording.
func (r *RecordingRepository) Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error) {
	var c capture.Chunk
	err := r.db.QueryRowContext(ctx, `
		SELECT c.seq, c.offset_ms, c.size, c.data, c.received_at
		FROM recording_chunks c
		JOIN recordings r ON r.id = c.recording_id
		WHERE c.recording_id = ? AND c.seq = ? AND r.user_id = ?
	`, recordingID, seq, userID).Scan(&c.Seq, &c.OffsetMs, &c.Size, &c.Data, &c.ReceivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return &c, nil
}
