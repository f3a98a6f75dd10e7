package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/rpggio/screenmark/internal/domain/coordinator"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Logged bodies are cut to this many bytes.
const maxLoggedPayload = 2048

// Base64 media in push_chunk, pause_recording and get_chunk bodies.
var chunkData = regexp.MustCompile(`"(data|pending_chunks)":("[A-Za-z0-9+/=]{64,}"|\[[^\]]{64,}\])`)

// trafficLoggingMiddleware writes one debug line per request and one per
// response. Notifications have no response.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			base := []slog.Attr{
				slog.String("direction", direction),
				slog.String("method", method),
				slog.String("session_id", sessionIDOf(req)),
				slog.String("user_id", coordinator.IdentityFromContext(ctx)),
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp traffic",
				append(base, slog.String("stage", "request"), slog.String("params", renderPayload(paramsOf(req))))...)

			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs := append(base, slog.String("stage", "response"), slog.String("result", renderPayload(result)))
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp traffic", attrs...)
			return result, err
		}
	}
}

// The SDK's request accessors can panic on partially built requests.
func sessionIDOf(req sdkmcp.Request) (id string) {
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if req == nil || req.GetSession() == nil {
		return ""
	}
	return req.GetSession().ID()
}

func paramsOf(req sdkmcp.Request) (params any) {
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	if req == nil {
		return nil
	}
	return req.GetParams()
}

func renderPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	s := chunkData.ReplaceAllString(string(data), `"$1":"<redacted>"`)
	if len(s) > maxLoggedPayload {
		return fmt.Sprintf("%s...(%d bytes)", s[:maxLoggedPayload], len(s))
	}
	return s
}
