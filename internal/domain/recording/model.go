package recording

import (
	"sort"
	"time"

	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

// Location is the optional geolocation attached to a recording.
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// ThumbnailRef points at the chunk a thumbnail should be cut from.
type ThumbnailRef struct {
	RecordingID string `json:"recording_id"`
	ChunkSeq    int    `json:"chunk_seq"`
	OffsetMs    int64  `json:"offset_ms"`
}

// Bundle is a finalized capture session handed to persistence.
type Bundle struct {
	RecordingID string                  `json:"recording_id"`
	UserID      string                  `json:"user_id"`
	StartedAt   time.Time               `json:"started_at"`
	StoppedAt   time.Time               `json:"stopped_at"`
	DurationMs  int64                   `json:"duration_ms"`
	Chunks      []capture.Chunk         `json:"chunks"`
	Annotations []annotation.Annotation `json:"annotations"`
	Workflow    *workflow.Documentation `json:"workflow,omitempty"`
	Thumbnail   *ThumbnailRef           `json:"thumbnail,omitempty"`
	Location    *Location               `json:"location,omitempty"`
}

// TotalBytes sums the chunk sizes.
func (b *Bundle) TotalBytes() int64 {
	var total int64
	for _, c := range b.Chunks {
		total += int64(c.Size)
	}
	return total
}

// Recording summarizes a persisted bundle.
type Recording struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	StartedAt       time.Time     `json:"started_at"`
	StoppedAt       time.Time     `json:"stopped_at"`
	DurationMs      int64         `json:"duration_ms"`
	ChunkCount      int           `json:"chunk_count"`
	TotalBytes      int64         `json:"total_bytes"`
	AnnotationCount int           `json:"annotation_count"`
	StepCount       int           `json:"step_count"`
	Thumbnail       *ThumbnailRef `json:"thumbnail,omitempty"`
	Location        *Location     `json:"location,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Detail is a recording with its timeline and workflow document.
type Detail struct {
	Recording
	Annotations []annotation.Annotation `json:"annotations"`
	Workflow    *workflow.Documentation `json:"workflow,omitempty"`
}

// SearchResult is one annotation matched by full-text search.
type SearchResult struct {
	AnnotationID string          `json:"annotation_id"`
	RecordingID  string          `json:"recording_id"`
	TimestampMs  int64           `json:"timestamp_ms"`
	Type         annotation.Type `json:"type"`
	Title        *string         `json:"title,omitempty"`
	Snippet      string          `json:"snippet"`
	Rank         float64         `json:"rank"`
}

// DeriveThumbnail picks the chunk covering the earliest annotation, or the
// first chunk when there are no annotations. It returns nil without chunks.
// Annotations must be in timeline order.
func DeriveThumbnail(recordingID string, chunks []capture.Chunk, annotations []annotation.Annotation) *ThumbnailRef {
	if len(chunks) == 0 {
		return nil
	}
	pick := chunks[0]
	if len(annotations) > 0 {
		ts := annotations[0].TimestampMs
		// A chunk's offset marks the end of the media it carries.
		i := sort.Search(len(chunks), func(i int) bool { return chunks[i].OffsetMs >= ts })
		if i == len(chunks) {
			i = len(chunks) - 1
		}
		pick = chunks[i]
	}
	return &ThumbnailRef{RecordingID: recordingID, ChunkSeq: pick.Seq, OffsetMs: pick.OffsetMs}
}
