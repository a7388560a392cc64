// Package di provides dependency injection configuration for the Curator server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/curatorapp/curator-server/internal/api"
	"github.com/curatorapp/curator-server/internal/auth"
	"github.com/curatorapp/curator-server/internal/config"
	"github.com/curatorapp/curator-server/internal/di/providers"
	"github.com/curatorapp/curator-server/internal/logger"
	"github.com/curatorapp/curator-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line arguments, without the program name.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, providers.Args(args))
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideHub)
	do.Provide(injector, providers.ProvideVideoIndex)
	do.Provide(injector, providers.ProvideAnalysisCache)
	do.Provide(injector, providers.ProvideStore)

	// Search and sessions
	do.Provide(injector, providers.ProvideSearchProvider)
	do.Provide(injector, providers.ProvideSessionManager)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideAnalysisService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	return injector
}

// WithHTTP adds the API handler and HTTP server providers.
func WithHTTP(injector *do.RootScope) *do.RootScope {
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)
	return injector
}

// Bootstrap initializes the core services. Invoking them in dependency order
// surfaces configuration and storage errors before anything is served.
func Bootstrap(injector *do.RootScope) error {
	steps := []func() error{
		invoke[*config.Config](injector),
		invoke[*logger.Logger](injector),
		invoke[*providers.HubHandle](injector),
		invoke[*providers.VideoIndexHandle](injector),
		invoke[*providers.AnalysisCacheHandle](injector),
		invoke[*providers.StoreHandle](injector),
		invoke[*providers.SearchProviderHandle](injector),
		invoke[*providers.SessionManagerHandle](injector),
		invoke[*auth.TokenService](injector),
		invoke[*service.AuthService](injector),
		invoke[*service.AnalysisService](injector),
		invoke[*providers.SessionCleanupJob](injector),
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// BootstrapHTTP initializes the core services and starts the HTTP server.
func BootstrapHTTP(injector *do.RootScope) error {
	if err := Bootstrap(injector); err != nil {
		return err
	}
	if err := invoke[*api.Server](injector)(); err != nil {
		return err
	}
	return invoke[*providers.HTTPServerHandle](injector)()
}

func invoke[T any](injector do.Injector) func() error {
	return func() error {
		_, err := do.Invoke[T](injector)
		return err
	}
}
