package mcp

import (
	"context"
	"log/slog"

	"github.com/rpggio/screenmark/internal/domain/activity"
	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/coordinator"
	"github.com/rpggio/screenmark/internal/domain/recording"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Coordinators hands out the per-user session coordinator.
type Coordinators interface {
	For(userID string) (*coordinator.Coordinator, error)
}

// RecordingService defines persisted-recording operations needed by MCP.
type RecordingService interface {
	List(ctx context.Context, userID string, opts recording.ListOptions) ([]recording.Recording, error)
	Get(ctx context.Context, userID, id string) (*recording.Detail, error)
	Playback(ctx context.Context, userID, id string) (*recording.Playback, error)
	Search(ctx context.Context, userID, query string, opts recording.SearchOptions) ([]recording.SearchResult, error)
	Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Coordinators Coordinators
	Recordings   RecordingService
	Activity     ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      UserResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// DefaultToleranceMs is the ActiveAt window used when a call omits one.
	DefaultToleranceMs int64
	Logger             *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "screenmark",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Later additions wrap earlier ones, so identity is resolved before
	// traffic is logged.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	// Stdio is a local, single-user transport.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(coordinator.AnonymousUser))
	}

	registerTools(server, NewHandler(cfg.Services, cfg.DefaultToleranceMs), cfg.Logger)

	return server
}
