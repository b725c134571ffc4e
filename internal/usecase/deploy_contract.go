package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// DeployContractParams contains parameters for a single contract deployment
type DeployContractParams struct {
	Request models.DeploymentRequest
	// InitArgs are passed to the detected initializer
	InitArgs []string
	// SkipInit disables initializer detection
	SkipInit bool
}

// DeployContract deploys one artifact and runs its initializer when present
type DeployContract struct {
	config       *config.RuntimeConfig
	loader       ArtifactLoader
	orchestrator *Orchestrator
}

// NewDeployContract creates a new DeployContract use case
func NewDeployContract(cfg *config.RuntimeConfig, loader ArtifactLoader, orchestrator *Orchestrator) *DeployContract {
	return &DeployContract{
		config:       cfg,
		loader:       loader,
		orchestrator: orchestrator,
	}
}

// Execute deploys the requested artifact
func (uc *DeployContract) Execute(ctx context.Context, params DeployContractParams) (*DeploymentResult, error) {
	req := params.Request
	if req.Network != "" && req.Network != uc.config.Network.Name {
		return nil, fmt.Errorf("network '%s' requested but '%s' is configured", req.Network, uc.config.Network.Name)
	}

	name := strings.TrimSuffix(filepath.Base(req.Artifact), filepath.Ext(req.Artifact))
	artifact, err := uc.loader.Load(ctx, req.Artifact)
	if err == nil {
		name = artifact.Name
	}

	deploy := &models.StepRecord{
		Name:         name,
		Kind:         models.StepDeploy,
		Artifact:     req.Artifact,
		Args:         req.Args,
		Dependencies: (&models.ContractSpec{Args: req.Args}).Dependencies(),
		GasLimit:     req.GasLimit,
	}
	steps := []*models.StepRecord{deploy}

	// An unloadable artifact still gets a record: the orchestrator fails
	// the deploy step on load and persists it.
	if err == nil && !params.SkipInit {
		if method, ok := artifact.FindInitializer(len(params.InitArgs)); ok {
			steps = append(steps, &models.StepRecord{
				Name:         fmt.Sprintf("%s.%s", artifact.Name, method.RawName),
				Kind:         models.StepInitialize,
				Artifact:     req.Artifact,
				Target:       artifact.Name,
				Method:       method.Sig,
				Args:         params.InitArgs,
				Dependencies: (&models.InitCall{Target: artifact.Name, Args: params.InitArgs}).Dependencies(),
				GasLimit:     req.GasLimit,
			})
		}
	}

	rec := models.NewDeploymentRecord(uuid.NewString(), name, uc.config.Network.Name, steps, time.Now())
	rec.FeeToken = req.FeeToken
	return uc.orchestrator.Run(ctx, rec)
}
