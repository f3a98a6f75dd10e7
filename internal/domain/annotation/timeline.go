package annotation

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Timeline keeps the annotations of one recording ordered by timestamp,
// ties broken by insertion order.
//
// Timeline is not safe for concurrent use.
type Timeline struct {
	recordingID string
	entries     []Annotation
	index       map[string]int64 // id -> timestamp_ms
	nextSeq     int64
	now         func() time.Time
}

// NewTimeline creates an empty timeline bound to a recording.
func NewTimeline(recordingID string) *Timeline {
	return &Timeline{
		recordingID: recordingID,
		index:       make(map[string]int64),
		now:         time.Now,
	}
}

// RestoreTimeline rebuilds a timeline from persisted annotations. Entries are
// ordered by timestamp, then by their stored sequence.
func RestoreTimeline(recordingID string, annotations []Annotation) *Timeline {
	t := NewTimeline(recordingID)
	sorted := make([]Annotation, len(annotations))
	copy(sorted, annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TimestampMs != sorted[j].TimestampMs {
			return sorted[i].TimestampMs < sorted[j].TimestampMs
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	for _, a := range sorted {
		t.entries = append(t.entries, a)
		t.index[a.ID] = a.TimestampMs
		if a.Seq >= t.nextSeq {
			t.nextSeq = a.Seq + 1
		}
	}
	return t
}

// RecordingID returns the owning recording.
func (t *Timeline) RecordingID() string { return t.recordingID }

// Len returns the number of annotations.
func (t *Timeline) Len() int { return len(t.entries) }

// Insert validates a and places it after every entry with the same or an
// earlier timestamp. An id is generated when none is supplied.
func (t *Timeline) Insert(a Annotation) (Annotation, error) {
	if err := Validate(a); err != nil {
		return Annotation{}, err
	}
	if a.RecordingID == "" {
		a.RecordingID = t.recordingID
	} else if a.RecordingID != t.recordingID {
		return Annotation{}, fmt.Errorf("%w: belongs to recording %s", ErrInvalidAnnotation, a.RecordingID)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := t.index[a.ID]; exists {
		return Annotation{}, fmt.Errorf("%w: %s", ErrDuplicateID, a.ID)
	}

	now := t.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	a.Payload = clonePayload(a.Payload)
	a.Seq = t.nextSeq
	t.nextSeq++

	pos := t.upperBound(a.TimestampMs)
	t.entries = append(t.entries, Annotation{})
	copy(t.entries[pos+1:], t.entries[pos:])
	t.entries[pos] = a
	t.index[a.ID] = a.TimestampMs
	return a, nil
}

// ActiveAt returns the annotations with timestamps inside
// [offsetMs-toleranceMs, offsetMs+toleranceMs], in timeline order. The
// window bounds saturate at the int64 limits.
func (t *Timeline) ActiveAt(offsetMs, toleranceMs int64) []Annotation {
	if toleranceMs < 0 {
		toleranceMs = 0
	}
	from, to := offsetMs-toleranceMs, offsetMs+toleranceMs
	if from > offsetMs {
		from = math.MinInt64
	}
	if to < offsetMs {
		to = math.MaxInt64
	}
	return t.Range(from, to)
}

// Range returns the annotations with fromMs <= timestamp <= toMs.
func (t *Timeline) Range(fromMs, toMs int64) []Annotation {
	if toMs < fromMs {
		return []Annotation{}
	}
	lo := t.lowerBound(fromMs)
	hi := t.upperBound(toMs)
	out := make([]Annotation, hi-lo)
	copy(out, t.entries[lo:hi])
	return out
}

// Remove deletes the annotation with the given id.
func (t *Timeline) Remove(id string) error {
	ts, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for i := t.lowerBound(ts); i < len(t.entries) && t.entries[i].TimestampMs == ts; i++ {
		if t.entries[i].ID == id {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			delete(t.index, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns the annotation with the given id.
func (t *Timeline) Get(id string) (Annotation, error) {
	ts, ok := t.index[id]
	if !ok {
		return Annotation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, a := range t.Range(ts, ts) {
		if a.ID == id {
			return a, nil
		}
	}
	return Annotation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Contains reports whether id is on the timeline.
func (t *Timeline) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Snapshot returns a copy of the timeline in order.
func (t *Timeline) Snapshot() []Annotation {
	out := make([]Annotation, len(t.entries))
	copy(out, t.entries)
	return out
}

// Replay returns a finite sequence over the timeline as of this call. The
// sequence can be ranged over any number of times.
func (t *Timeline) Replay() iter.Seq[Annotation] {
	snapshot := t.Snapshot()
	return func(yield func(Annotation) bool) {
		for _, a := range snapshot {
			if !yield(a) {
				return
			}
		}
	}
}

func (t *Timeline) lowerBound(ts int64) int {
	return sort.Search(len(t.entries), func(i int) bool { return t.entries[i].TimestampMs >= ts })
}

func (t *Timeline) upperBound(ts int64) int {
	return sort.Search(len(t.entries), func(i int) bool { return t.entries[i].TimestampMs > ts })
}
