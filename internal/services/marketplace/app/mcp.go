package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcpapi "github.com/Kingl1tz/shoppal/internal/services/marketplace/api/mcp"
	"github.com/Kingl1tz/shoppal/internal/services/marketplace/identity"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServer builds the MCP tool server over deps. A non-empty token signs
// the session in before any tool runs.
func NewMCPServer(ctx context.Context, deps *Dependencies, token string, logger *slog.Logger) (*mcp.Server, *identity.Session, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	session := identity.NewSession(deps.Verifier)
	if token = strings.TrimSpace(token); token != "" {
		who, err := session.SignIn(ctx, token)
		if err != nil {
			return nil, nil, fmt.Errorf("sign in mcp session: %w", err)
		}
		logger.InfoContext(ctx, "mcp session signed in", "user_id", who.ID)
	}
	server, err := mcpapi.NewServer(mcpapi.Config{
		Listings:  deps.Listings,
		Interests: deps.Interests,
		Dashboard: deps.Dashboard,
		Session:   session,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return server, session, nil
}

// RunMCP serves the marketplace tools over stdio until ctx ends or the
// client disconnects.
func RunMCP(ctx context.Context, cfg Config, token string, logger *slog.Logger) error {
	deps, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil && logger != nil {
			logger.Error("close marketplace backends", "error", err)
		}
	}()

	server, _, err := NewMCPServer(ctx, deps, token, logger)
	if err != nil {
		return err
	}
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}
