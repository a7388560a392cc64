// Package main runs the Curator HTTP server: the REST API, the session
// event stream and the background jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/di"
	"github.com/curatorapp/curator-server/internal/di/providers"
	"github.com/curatorapp/curator-server/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "curator: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	injector := di.WithHTTP(di.NewContainer(os.Args[1:]))
	if err := di.BootstrapHTTP(injector); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	httpServer := do.MustInvoke[*providers.HTTPServerHandle](injector)

	log.Info("Curator ready",
		"version", providers.Version,
		"addr", httpServer.Addr,
		"database", cfg.Database.Driver,
		"youtube", cfg.YouTube.APIKey != "",
	)

	<-ctx.Done()
	stop()
	log.Info("Shutting down")

	// Handles close in reverse dependency order: HTTP first, sessions before the
	// hub, the store last.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	log.Info("Server stopped")
	return nil
}
