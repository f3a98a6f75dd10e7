// Package testserver runs the full HTTP stack against an in-memory database
// for end-to-end tests.
package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/screenmark/internal/device"
	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	"github.com/rpggio/screenmark/internal/mcp"
	"github.com/rpggio/screenmark/internal/sqlite"
	"github.com/rpggio/screenmark/internal/transport"
)

// Clock is a manually advanced clock shared by every coordinator.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Clock    *Clock
	Registry *coordinator.Registry
	Token    string
	UserID   string

	apiKeys *sqlite.APIKeyRepository
}

// New starts a server with auth enabled and token registered for userID.
func New(t *testing.T, token, userID string) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	recordings := recording.NewService(sqlite.NewRecordingRepository(db), sqlite.NewSearchRepository(db), nil)
	activities := activity.NewService(sqlite.NewActivityRepository(db), nil)
	apiKeys := sqlite.NewAPIKeyRepository(db)
	reported := device.NewReported(nil)
	clock := &Clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}

	registry := coordinator.NewRegistry(coordinator.Config{
		Detector:   reported,
		Source:     reported,
		Locator:    &device.StaticLocator{},
		Store:      recordings,
		Activities: activities,
		Clock:      clock,
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Coordinators: registry,
			Recordings:   recordings,
			Activity:     activities,
		},
		Resolver:           apiKeys,
		AuthEnabled:        true,
		TransportMode:      "http",
		DefaultToleranceMs: 250,
	})

	router := transport.NewServer(transport.Config{
		MCP: sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return mcpServer },
			nil,
		),
		Recordings:         recordings,
		Auth:               transport.AuthMiddleware(apiKeys),
		DefaultToleranceMs: 250,
	})
	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Clock:    clock,
		Registry: registry,
		Token:    token,
		UserID:   userID,
		apiKeys:  apiKeys,
	}
	require.NoError(t, ts.AddAPIKey(token, userID))

	t.Cleanup(func() {
		server.Close()
		registry.Close()
		_ = db.Close()
	})

	return ts
}

func (ts *TestServer) AddAPIKey(token, userID string) error {
	return ts.apiKeys.Create(context.Background(), userID, token, "test")
}

// Connect opens an MCP client session that sends token as a bearer credential.
func (ts *TestServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: ts.Client(token),
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// Client returns an HTTP client that adds token to every request.
func (ts *TestServer) Client(token string) *http.Client {
	return &http.Client{Transport: bearerTransport{token: token}}
}

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}
