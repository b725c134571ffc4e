//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/treb-relay/internal/adapters"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/logging"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// InitApp creates the read-only App
func InitApp(cfg *config.RuntimeConfig) (*App, func(), error) {
	wire.Build(
		// Adapters
		adapters.ReadSet,

		// Use cases
		usecase.NewShowDeployment,
		usecase.NewListDeployments,
		usecase.NewListNetworks,

		// App
		NewApp,
	)
	return nil, nil, nil
}

// InitDeployApp creates a fully wired DeployApp
func InitDeployApp(cfg *config.RuntimeConfig) (*DeployApp, func(), error) {
	wire.Build(
		logging.LoggingSet,

		// Adapters
		adapters.DeploySet,

		// Use cases
		usecase.NewOrchestrator,
		usecase.NewDeployProtocol,
		usecase.NewDeployContract,
		usecase.NewResumeDeployment,

		// App
		NewDeployApp,
	)
	return nil, nil, nil
}
