// Package main runs the Curator MCP server over stdio. It signs in with the
// configured account and exposes that user's session as tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/di"
	"github.com/curatorapp/curator-server/internal/di/providers"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/mcptools"
	"github.com/curatorapp/curator-server/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "curator-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	injector := di.NewContainer(os.Args[1:])
	// stdout carries the protocol.
	do.ProvideValue(injector, providers.LogOutput{Writer: os.Stderr})
	defer func() { _ = injector.Shutdown() }()

	if err := di.Bootstrap(injector); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	authService := do.MustInvoke[*service.AuthService](injector)
	sessions := do.MustInvoke[*providers.SessionManagerHandle](injector)

	if cfg.MCP.Email == "" || cfg.MCP.Password == "" {
		return fmt.Errorf("mcp.email and mcp.password must be set")
	}

	ctx := context.Background()
	resp, err := authService.Login(ctx, service.LoginRequest{Email: cfg.MCP.Email, Password: cfg.MCP.Password})
	if err != nil {
		return fmt.Errorf("sign in as %s: %w", cfg.MCP.Email, err)
	}
	defer func() { _ = authService.Logout(ctx, resp.User.ID, resp.SessionID) }()

	sess, err := sessions.Get(ctx, resp.User.ID)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	log.Info("MCP server ready", "user_id", resp.User.ID, "categories", len(sess.Categories.Categories()))
	return server.ServeStdio(mcptools.NewServer(sess, providers.Version))
}
