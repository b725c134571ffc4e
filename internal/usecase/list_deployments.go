package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// ListDeploymentsParams filters listed records
type ListDeploymentsParams struct {
	Status  models.DeploymentStatus
	Network string
	Group   string
}

// ListDeployments is the use case for listing deployment records
type ListDeployments struct {
	tracker DeploymentTracker
	sink    ProgressSink
}

// NewListDeployments creates a new ListDeployments use case
func NewListDeployments(tracker DeploymentTracker, sink ProgressSink) *ListDeployments {
	return &ListDeployments{
		tracker: tracker,
		sink:    sink,
	}
}

// Run returns matching records, newest first
func (uc *ListDeployments) Run(ctx context.Context, params ListDeploymentsParams) ([]*models.DeploymentRecord, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployments",
		Spinner: true,
	})
	defer uc.sink.OnProgress(ctx, ProgressEvent{Stage: "loaded"})

	all, err := uc.tracker.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []*models.DeploymentRecord
	for _, rec := range all {
		if params.Status != "" && rec.Status != params.Status {
			continue
		}
		if params.Network != "" && rec.Network != params.Network {
			continue
		}
		if params.Group != "" && !strings.EqualFold(rec.Group, params.Group) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
