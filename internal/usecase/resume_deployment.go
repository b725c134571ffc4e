package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
)

// ResumeDeployment reruns a failed record from its failed step onward
type ResumeDeployment struct {
	config       *config.RuntimeConfig
	tracker      DeploymentTracker
	orchestrator *Orchestrator
}

// NewResumeDeployment creates a new ResumeDeployment use case
func NewResumeDeployment(cfg *config.RuntimeConfig, tracker DeploymentTracker, orchestrator *Orchestrator) *ResumeDeployment {
	return &ResumeDeployment{
		config:       cfg,
		tracker:      tracker,
		orchestrator: orchestrator,
	}
}

// Execute resumes the record with the given id into a new record
func (uc *ResumeDeployment) Execute(ctx context.Context, id string) (*DeploymentResult, error) {
	prev, err := resolveRecord(ctx, uc.tracker, id)
	if err != nil {
		return nil, err
	}
	if prev.Network != uc.config.Network.Name {
		return nil, fmt.Errorf("deployment %s ran on '%s' but '%s' is configured; pass --network %s",
			prev.ID, prev.Network, uc.config.Network.Name, prev.Network)
	}

	next, err := prev.ResumeInto(uuid.NewString(), time.Now())
	if err != nil {
		return nil, err
	}
	return uc.orchestrator.Run(ctx, next)
}
