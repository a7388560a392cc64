// Package providers contains dependency injection providers for the Curator server.
package providers

import (
	"io"
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/logger"
)

// Args are the command-line arguments configuration is loaded from.
type Args []string

// LogOutput redirects the logger. The MCP server provides os.Stderr so
// stdout stays free for the protocol.
type LogOutput struct {
	io.Writer
}

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args := do.MustInvoke[Args](i)
	return config.Load(args)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	var out io.Writer = os.Stdout
	if o, err := do.Invoke[LogOutput](i); err == nil && o.Writer != nil {
		out = o.Writer
	}

	log := logger.New(logger.Config{
		Writer:      out,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.IsDevelopment(),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Curator server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"database", cfg.Database.Driver,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
