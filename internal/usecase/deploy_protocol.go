package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// DeployProtocolParams contains parameters for a plan deployment
type DeployProtocolParams struct {
	// PlanPaths are deployed concurrently, one record per plan
	PlanPaths []string
}

// DeployProtocol deploys the contracts of one or more YAML plans
type DeployProtocol struct {
	config       *config.RuntimeConfig
	orchestrator *Orchestrator
}

// NewDeployProtocol creates a new DeployProtocol use case
func NewDeployProtocol(cfg *config.RuntimeConfig, orchestrator *Orchestrator) *DeployProtocol {
	return &DeployProtocol{
		config:       cfg,
		orchestrator: orchestrator,
	}
}

// Prepare loads the plans and creates their pending records without running them
func (uc *DeployProtocol) Prepare(params DeployProtocolParams) ([]*models.DeploymentRecord, error) {
	if len(params.PlanPaths) == 0 {
		return nil, fmt.Errorf("at least one plan is required")
	}

	records := make([]*models.DeploymentRecord, 0, len(params.PlanPaths))
	for _, path := range params.PlanPaths {
		plan, err := LoadPlan(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if plan.Network != "" && plan.Network != uc.config.Network.Name {
			return nil, fmt.Errorf("%s targets network '%s' but '%s' is configured; pass --network %s",
				path, plan.Network, uc.config.Network.Name, plan.Network)
		}

		steps, err := PlanSteps(plan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		rec := models.NewDeploymentRecord(uuid.NewString(), plan.Group, uc.config.Network.Name, steps, time.Now())
		rec.FeeToken = plan.FeeToken
		records = append(records, rec)
	}
	return records, nil
}

// Run executes prepared records
func (uc *DeployProtocol) Run(ctx context.Context, records []*models.DeploymentRecord) ([]*DeploymentResult, error) {
	if len(records) == 1 {
		result, err := uc.orchestrator.Run(ctx, records[0])
		return []*DeploymentResult{result}, err
	}
	return uc.orchestrator.RunMany(ctx, records)
}

// Execute loads and runs every plan
func (uc *DeployProtocol) Execute(ctx context.Context, params DeployProtocolParams) ([]*DeploymentResult, error) {
	records, err := uc.Prepare(params)
	if err != nil {
		return nil, err
	}
	return uc.Run(ctx, records)
}
