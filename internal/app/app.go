package app

import (
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// App holds the use cases that only read deployment state
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Use cases
	ShowDeployment  *usecase.ShowDeployment
	ListDeployments *usecase.ListDeployments
	ListNetworks    *usecase.ListNetworks
}

// NewApp creates a new read-only application instance
func NewApp(
	cfg *config.RuntimeConfig,
	showDeployment *usecase.ShowDeployment,
	listDeployments *usecase.ListDeployments,
	listNetworks *usecase.ListNetworks,
) *App {
	return &App{
		Config:          cfg,
		ShowDeployment:  showDeployment,
		ListDeployments: listDeployments,
		ListNetworks:    listNetworks,
	}
}

// DeployApp holds the use cases that sign and relay transactions. Building
// it requires a valid controller and sponsor.
type DeployApp struct {
	Config *config.RuntimeConfig

	DeployProtocol   *usecase.DeployProtocol
	DeployContract   *usecase.DeployContract
	ResumeDeployment *usecase.ResumeDeployment
}

// NewDeployApp creates a new deploying application instance
func NewDeployApp(
	cfg *config.RuntimeConfig,
	deployProtocol *usecase.DeployProtocol,
	deployContract *usecase.DeployContract,
	resumeDeployment *usecase.ResumeDeployment,
) *DeployApp {
	return &DeployApp{
		Config:           cfg,
		DeployProtocol:   deployProtocol,
		DeployContract:   deployContract,
		ResumeDeployment: resumeDeployment,
	}
}
