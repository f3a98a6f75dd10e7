package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/screenmark/internal/domain/activity"
)

const (
	activityQueueSize    = 128
	activityWriteTimeout = 5 * time.Second
)

type activityEvent struct {
	userID string
	entry  *activity.ActivityEntry
}

// activityWriter moves activity logging off the event loop. Entries that do
// not fit in the queue are dropped with a warning.
type activityWriter struct {
	sink   ActivityLogger
	logger *slog.Logger
	queue  chan activityEvent
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newActivityWriter(sink ActivityLogger, logger *slog.Logger) *activityWriter {
	if sink == nil {
		return nil
	}
	w := &activityWriter{
		sink:   sink,
		logger: logger,
		queue:  make(chan activityEvent, activityQueueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *activityWriter) run() {
	defer w.wg.Done()
	for ev := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
		if err := w.sink.LogActivity(ctx, ev.userID, ev.entry); err != nil {
			w.logger.Warn("logging activity", "type", ev.entry.ActivityType, "recording_id", ev.entry.RecordingID, "error", err)
		}
		cancel()
	}
}

func (w *activityWriter) enqueue(userID string, entry *activity.ActivityEntry) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("activity writer closed, dropping entry", "type", entry.ActivityType, "recording_id", entry.RecordingID)
		return
	}
	select {
	case w.queue <- activityEvent{userID: userID, entry: entry}:
	default:
		w.logger.Warn("activity queue full, dropping entry", "type", entry.ActivityType, "recording_id", entry.RecordingID)
	}
}

// close flushes queued entries and stops the writer.
func (w *activityWriter) close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (c *Coordinator) record(ws *workspace, typ activity.ActivityType, summary string, offsetMs *int64) {
	c.activity.enqueue(ws.userID, &activity.ActivityEntry{
		RecordingID:  ws.session.ID(),
		ActivityType: typ,
		Summary:      summary,
		OffsetMs:     offsetMs,
		CreatedAt:    c.cfg.Clock.Now(),
	})
}

func (c *Coordinator) recordFor(userID, recordingID string, typ activity.ActivityType, summary string) {
	c.activity.enqueue(userID, &activity.ActivityEntry{
		RecordingID:  recordingID,
		ActivityType: typ,
		Summary:      summary,
		CreatedAt:    c.cfg.Clock.Now(),
	})
}
