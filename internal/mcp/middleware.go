package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/screenmark/internal/domain/coordinator"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// UserResolver resolves a user ID from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver UserResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			userID, err := resolver.ResolveUser(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if userID == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			return next(coordinator.WithIdentity(ctx, userID), method, req)
		}
	}
}

// noAuthMiddleware injects a fixed user when auth is disabled. A user already
// placed in the context by the HTTP layer wins.
func noAuthMiddleware(defaultUser string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if !hasIdentity(ctx) {
				ctx = coordinator.WithIdentity(ctx, defaultUser)
			}
			return next(ctx, method, req)
		}
	}
}

func hasIdentity(ctx context.Context) bool {
	return coordinator.IdentityFromContext(ctx) != coordinator.AnonymousUser
}
