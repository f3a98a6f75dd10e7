package coordinator_test

import (
	"context"
	"sync"
	"time"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeDevice struct {
	mu       sync.Mutex
	buffered [][]byte
	releases int
}

func (d *fakeDevice) Flush() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.buffered
	d.buffered = nil
	return out
}

func (d *fakeDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases++
	return nil
}

func (d *fakeDevice) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

type fakeDetector struct {
	caps capture.Capabilities
	err  error
}

func (d *fakeDetector) DetectCapabilities(context.Context) (capture.Capabilities, error) {
	return d.caps, d.err
}

func capable() *fakeDetector {
	return &fakeDetector{caps: capture.Capabilities{Supported: true, HasScreenCapture: true, IsSecureContext: true}}
}

// fakeSource grants device unless err is set. When gate is non-nil the
// request blocks until gate is closed, ignoring the context.
type fakeSource struct {
	device  *fakeDevice
	err     error
	gate    chan struct{}
	asked   chan struct{}
	askOnce sync.Once
}

func (s *fakeSource) RequestPermission(context.Context) (capture.Device, error) {
	if s.asked != nil {
		s.askOnce.Do(func() { close(s.asked) })
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.device == nil {
		return nil, nil
	}
	return s.device, nil
}

type fakeLocator struct {
	loc   recording.Location
	err   error
	delay time.Duration
}

func (l *fakeLocator) RequestLocation(ctx context.Context) (recording.Location, error) {
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return recording.Location{}, ctx.Err()
		}
	}
	return l.loc, l.err
}

type fakeStore struct {
	mu        sync.Mutex
	bundles   []*recording.Bundle
	workflows map[string]*workflow.Documentation
	errs      []error
	gate      chan struct{}
	calls     int
	taken     map[string]bool
}

func (s *fakeStore) SaveBundle(ctx context.Context, bundle *recording.Bundle) (string, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles = append(s.bundles, bundle)
	return "stored-" + bundle.RecordingID, nil
}

func (s *fakeStore) SaveWorkflow(_ context.Context, _, recordingID string, doc *workflow.Documentation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflows == nil {
		s.workflows = map[string]*workflow.Documentation{}
	}
	s.workflows[recordingID] = doc
	return nil
}

func (s *fakeStore) Exists(_ context.Context, recordingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken[recordingID] {
		return true, nil
	}
	for _, b := range s.bundles {
		if b.RecordingID == recordingID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Saved() []*recording.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*recording.Bundle(nil), s.bundles...)
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeStore) Workflow(recordingID string) *workflow.Documentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workflows[recordingID]
}

type fakeActivities struct {
	mu      sync.Mutex
	entries []activity.ActivityEntry
}

func (a *fakeActivities) LogActivity(_ context.Context, userID string, entry *activity.ActivityEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := *entry
	e.UserID = userID
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeActivities) Types() []activity.ActivityType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]activity.ActivityType, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.ActivityType
	}
	return out
}
