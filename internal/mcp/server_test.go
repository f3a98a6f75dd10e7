package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/screenmark/internal/device"
	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/annotation"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/domain/workflow"
	"github.com/rpggio/screenmark/internal/sqlite"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *testClock
	registry *coordinator.Registry
	services Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	recordings := recording.NewService(sqlite.NewRecordingRepository(db), sqlite.NewSearchRepository(db), nil)
	activities := activity.NewService(sqlite.NewActivityRepository(db), nil)
	reported := device.NewReported(nil)
	clock := &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	registry := coordinator.NewRegistry(coordinator.Config{
		Detector:   reported,
		Source:     reported,
		Locator:    &device.StaticLocator{},
		Store:      recordings,
		Activities: activities,
		Clock:      clock,
	})

	t.Cleanup(func() {
		registry.Close()
		db.Close()
	})

	return &fixture{
		clock:    clock,
		registry: registry,
		services: Services{Coordinators: registry, Recordings: recordings, Activity: activities},
	}
}

func (f *fixture) connect(t *testing.T, cfg Config) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	cfg.Services = f.services
	if cfg.TransportMode == "" {
		cfg.TransportMode = "stdio"
	}
	server := NewServer(cfg)

	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
		serverSession.Wait()
	})
	return session
}

func callTool(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (json.RawMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	result, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)

	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			return json.RawMessage(text.Text), result.IsError
		}
	}
	t.Fatalf("Tool %s returned no text content", name)
	return nil, false
}

func mustCall(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) json.RawMessage {
	t.Helper()
	raw, isError := callTool(t, session, name, args)
	require.False(t, isError, "Tool %s returned error: %s", name, raw)
	return raw
}

func mustFail(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) APIError {
	t.Helper()
	raw, isError := callTool(t, session, name, args)
	require.True(t, isError, "Tool %s unexpectedly succeeded: %s", name, raw)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(raw, &apiErr))
	return apiErr
}

func startArgs() map[string]any {
	return map[string]any{
		"recording_id": "rec1",
		"capabilities": map[string]any{
			"supported":          true,
			"has_screen_capture": true,
			"is_secure_context":  true,
		},
		"permission_granted": true,
	}
}

func TestTools_Catalog(t *testing.T) {
	f := newFixture(t)
	session := f.connect(t, Config{})

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, def := range buildToolCatalog() {
		require.True(t, names[def.Name], "tool %s not registered", def.Name)
	}
}

func TestTools_RecordingFlow(t *testing.T) {
	f := newFixture(t)
	session := f.connect(t, Config{DefaultToleranceMs: 250})

	var status coordinator.Status
	require.NoError(t, json.Unmarshal(mustCall(t, session, "start_recording", startArgs()), &status))
	require.Equal(t, "rec1", status.RecordingID)
	require.Equal(t, "recording", string(status.State))

	f.clock.Advance(time.Second)
	var chunk ChunkResponse
	raw := mustCall(t, session, "push_chunk", map[string]any{"data": base64.StdEncoding.EncodeToString([]byte("frame-1"))})
	require.NoError(t, json.Unmarshal(raw, &chunk))
	require.Equal(t, 0, chunk.Seq)
	require.Equal(t, int64(1000), chunk.OffsetMs)

	mustCall(t, session, "add_annotation", map[string]any{
		"id":    "a1",
		"type":  "label",
		"title": "Checkout",
		"data":  map[string]any{"text": "spinner never stops"},
	})
	mustCall(t, session, "begin_step", map[string]any{"title": "Open checkout"})
	mustCall(t, session, "attach_annotation", map[string]any{"step_number": 1, "annotation_id": "a1"})

	var active AnnotationsResponse
	require.NoError(t, json.Unmarshal(mustCall(t, session, "active_annotations", map[string]any{"offset_ms": 1100}), &active))
	require.Len(t, active.Annotations, 1)
	require.Equal(t, int64(250), *active.ToleranceMs)

	f.clock.Advance(time.Second)
	var stopped coordinator.StopResult
	held := map[string]any{"pending_chunks": []string{base64.StdEncoding.EncodeToString([]byte("frame-2"))}}
	require.NoError(t, json.Unmarshal(mustCall(t, session, "stop_recording", held), &stopped))
	require.True(t, stopped.Persisted)
	require.Equal(t, int64(2000), stopped.DurationMs)
	require.Equal(t, 2, stopped.ChunkCount, "chunks held by the client are flushed into the bundle")
	require.Equal(t, 1, stopped.AnnotationCount)
	require.Equal(t, 1, stopped.StepCount)

	var list ListRecordingsResponse
	require.NoError(t, json.Unmarshal(mustCall(t, session, "list_recordings", nil), &list))
	require.Len(t, list.Recordings, 1)
	require.Equal(t, "rec1", list.Recordings[0].ID)

	var detail struct {
		ID          string            `json:"id"`
		Annotations []json.RawMessage `json:"annotations"`
		Workflow    *struct {
			Steps []struct {
				Title         string   `json:"title"`
				AnnotationIDs []string `json:"annotation_ids"`
			} `json:"steps"`
		} `json:"workflow"`
	}
	require.NoError(t, json.Unmarshal(mustCall(t, session, "get_recording", map[string]any{"recording_id": "rec1"}), &detail))
	require.Len(t, detail.Annotations, 1)
	require.NotNil(t, detail.Workflow)
	require.Equal(t, []string{"a1"}, detail.Workflow.Steps[0].AnnotationIDs)

	require.NoError(t, json.Unmarshal(mustCall(t, session, "playback_active", map[string]any{"recording_id": "rec1", "offset_ms": 1000, "tolerance_ms": 0}), &active))
	require.Len(t, active.Annotations, 1)
	require.NoError(t, json.Unmarshal(mustCall(t, session, "playback_active", map[string]any{"recording_id": "rec1", "offset_ms": 1500, "tolerance_ms": 100}), &active))
	require.Empty(t, active.Annotations)

	var found SearchAnnotationsResponse
	require.NoError(t, json.Unmarshal(mustCall(t, session, "search_annotations", map[string]any{"query": "spinner"}), &found))
	require.Len(t, found.Results, 1)
	require.Equal(t, "a1", found.Results[0].AnnotationID)

	var stored ChunkResponse
	require.NoError(t, json.Unmarshal(mustCall(t, session, "get_chunk", map[string]any{"recording_id": "rec1", "seq": 0}), &stored))
	require.Equal(t, []byte("frame-1"), stored.Data)
	require.NoError(t, json.Unmarshal(mustCall(t, session, "get_chunk", map[string]any{"recording_id": "rec1", "seq": 1}), &stored))
	require.Equal(t, []byte("frame-2"), stored.Data)
	require.Equal(t, int64(2000), stored.OffsetMs)

	require.Eventually(t, func() bool {
		var recent GetRecentActivityResponse
		raw := mustCall(t, session, "get_recent_activity", map[string]any{"recording_id": "rec1"})
		if err := json.Unmarshal(raw, &recent); err != nil {
			return false
		}
		types := map[activity.ActivityType]bool{}
		for _, e := range recent.Activity {
			types[e.ActivityType] = true
		}
		return types[activity.TypeRecordingStarted] && types[activity.TypeRecordingStopped] && types[activity.TypePersisted]
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTools_CaptureUnavailable(t *testing.T) {
	f := newFixture(t)
	session := f.connect(t, Config{})

	args := startArgs()
	args["permission_granted"] = false
	apiErr := mustFail(t, session, "start_recording", args)
	require.Equal(t, "CAPTURE_UNAVAILABLE", apiErr.Code)
	require.Equal(t, map[string]any{"reason": "permission_denied"}, apiErr.Details)

	args = startArgs()
	args["capabilities"] = map[string]any{"supported": true, "has_screen_capture": true, "is_secure_context": false}
	apiErr = mustFail(t, session, "start_recording", args)
	require.Equal(t, map[string]any{"reason": "insecure_context"}, apiErr.Details)

	var status coordinator.Status
	require.NoError(t, json.Unmarshal(mustCall(t, session, "recording_status", nil), &status))
	require.Empty(t, status.RecordingID, "a failed start leaves no session")
}

func TestTools_ErrorsMapToCodes(t *testing.T) {
	f := newFixture(t)
	session := f.connect(t, Config{})

	apiErr := mustFail(t, session, "pause_recording", nil)
	require.Equal(t, "INVALID_TRANSITION", apiErr.Code)
	require.Equal(t, map[string]any{"state": "idle", "operation": "pause"}, apiErr.Details)
	require.Equal(t, "INVALID_TRANSITION", mustFail(t, session, "resume_recording", nil).Code)
	require.Equal(t, "INVALID_TRANSITION", mustFail(t, session, "stop_recording", nil).Code)
	require.Equal(t, "NO_SESSION", mustFail(t, session, "discard_recording", nil).Code)

	mustCall(t, session, "start_recording", startArgs())
	require.Equal(t, "SESSION_ACTIVE", mustFail(t, session, "start_recording", startArgs()).Code)
	require.Equal(t, "INVALID_PARAMS", mustFail(t, session, "push_chunk", map[string]any{"data": "%%%"}).Code)
	require.Equal(t, "INVALID_PARAMS", mustFail(t, session, "stop_recording", map[string]any{"pending_chunks": []string{"%%%"}}).Code)
	require.Equal(t, "INVALID_ANNOTATION", mustFail(t, session, "add_annotation", map[string]any{"type": "label", "data": map[string]any{}}).Code)
	require.Equal(t, "ANNOTATION_NOT_FOUND", mustFail(t, session, "remove_annotation", map[string]any{"id": "nope"}).Code)
	require.Equal(t, "INVALID_TRANSITION", mustFail(t, session, "publish_workflow", nil).Code)

	mustCall(t, session, "pause_recording", nil)
	require.Equal(t, "CHUNK_REJECTED", mustFail(t, session, "push_chunk", map[string]any{"data": "AA=="}).Code)

	mustCall(t, session, "discard_recording", nil)
	require.Equal(t, "RECORDING_NOT_FOUND", mustFail(t, session, "get_recording", map[string]any{"recording_id": "rec1"}).Code)
}

func TestMapError(t *testing.T) {
	require.Nil(t, MapError(nil))
	require.Nil(t, MapError(errors.New("boom")))

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unavailable", &capture.UnavailableError{Reason: capture.ReasonTimeout}, "CAPTURE_UNAVAILABLE"},
		{"transition", fmt.Errorf("pausing: %w", &capture.TransitionError{Op: "pause", From: capture.StateIdle}), "INVALID_TRANSITION"},
		{"persistence", fmt.Errorf("%w: %w", coordinator.ErrPersistenceFailure, errors.New("disk full")), "PERSISTENCE_FAILED"},
		{"timeout", fmt.Errorf("save: %w", coordinator.ErrTimeout), "TIMEOUT"},
		{"stale", coordinator.ErrStaleSession, "STALE_SESSION"},
		{"taken id", fmt.Errorf("%w: rec1", coordinator.ErrRecordingExists), "RECORDING_EXISTS"},
		{"taken id at persist", fmt.Errorf("%w: %w", coordinator.ErrPersistenceFailure, recording.ErrRecordingExists), "PERSISTENCE_FAILED"},
		{"gap", workflow.ErrStepSequenceGap, "STEP_SEQUENCE_GAP"},
		{"duplicate", annotation.ErrDuplicateID, "DUPLICATE_ANNOTATION"},
		{"recording", recording.ErrRecordingNotFound, "RECORDING_NOT_FOUND"},
		{"passthrough", &APIError{Code: "INVALID_PARAMS"}, "INVALID_PARAMS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := MapError(tt.err)
			require.NotNil(t, apiErr)
			require.Equal(t, tt.code, apiErr.Code)
		})
	}

	apiErr := MapError(&capture.UnavailableError{Reason: capture.ReasonPermissionDenied})
	require.Equal(t, map[string]string{"reason": "permission_denied"}, apiErr.Details)
	require.NotEmpty(t, apiErr.RecoveryHint)
}

type resolverStub map[string]string

func (r resolverStub) ResolveUser(_ context.Context, token string) (string, error) {
	if userID, ok := r[token]; ok {
		return userID, nil
	}
	return "", errors.New("unknown key")
}

type headerTransport struct {
	token string
}

func (h headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+h.token)
	return http.DefaultTransport.RoundTrip(req)
}

func TestAuthMiddleware_HTTP(t *testing.T) {
	f := newFixture(t)
	server := NewServer(Config{
		Services:      f.services,
		Resolver:      resolverStub{"sk-alice": "alice"},
		AuthEnabled:   true,
		TransportMode: "http",
	})
	handler := sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return server }, nil)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	connect := func(token string) *sdkmcp.ClientSession {
		client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
		session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
			Endpoint:   ts.URL,
			HTTPClient: &http.Client{Transport: headerTransport{token: token}},
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { session.Close() })
		return session
	}

	alice := connect("sk-alice")
	mustCall(t, alice, "start_recording", startArgs())

	c, err := f.registry.For("alice")
	require.NoError(t, err)
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rec1", status.RecordingID, "the session belongs to the resolved user")

	intruder := connect("sk-wrong")
	_, err = intruder.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: "recording_status", Arguments: map[string]any{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")
}

func TestDocResources(t *testing.T) {
	f := newFixture(t)
	session := f.connect(t, Config{})
	ctx := context.Background()

	list, err := session.ListResources(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list.Resources, len(docResources))

	read, err := session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "screenmark://docs/errors"})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	require.Contains(t, read.Contents[0].Text, "CAPTURE_UNAVAILABLE")
}
