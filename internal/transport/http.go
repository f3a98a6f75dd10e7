package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
)

// RecordingService defines the persisted-recording reads served over REST.
type RecordingService interface {
	List(ctx context.Context, userID string, opts recording.ListOptions) ([]recording.Recording, error)
	Get(ctx context.Context, userID, id string) (*recording.Detail, error)
	Playback(ctx context.Context, userID, id string) (*recording.Playback, error)
	Chunk(ctx context.Context, userID, recordingID string, seq int) (*capture.Chunk, error)
}

// Config wires the HTTP router.
type Config struct {
	// MCP is mounted at /mcp when set.
	MCP        http.Handler
	Recordings RecordingService
	// Auth guards everything except /health. Nil leaves requests anonymous.
	Auth               func(http.Handler) http.Handler
	DefaultToleranceMs int64
	Logger             *slog.Logger
}

// Server holds the REST handlers.
type Server struct {
	recordings         RecordingService
	defaultToleranceMs int64
	logger             *slog.Logger
}

// NewServer creates an HTTP router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "screenmark")
	})

	srv := &Server{
		recordings:         cfg.Recordings,
		defaultToleranceMs: cfg.DefaultToleranceMs,
		logger:             logger,
	}

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
			r.Handle("/mcp/*", cfg.MCP)
		}
		if cfg.Recordings != nil {
			r.Route("/recordings", func(r chi.Router) {
				r.Get("/", srv.handleListRecordings)
				r.Get("/{id}", srv.handleGetRecording)
				r.Get("/{id}/annotations", srv.handleAnnotations)
				r.Get("/{id}/chunks/{seq}", srv.handleChunk)
			})
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
