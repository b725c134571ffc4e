package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// ShowDeployment is the use case for showing a deployment record
type ShowDeployment struct {
	tracker DeploymentTracker
	sink    ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(tracker DeploymentTracker, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		tracker: tracker,
		sink:    sink,
	}
}

// Run returns the record matching id or a unique id prefix
func (uc *ShowDeployment) Run(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment",
		Spinner: true,
	})
	defer uc.sink.OnProgress(ctx, ProgressEvent{Stage: "loaded"})

	return resolveRecord(ctx, uc.tracker, id)
}

func resolveRecord(ctx context.Context, tracker DeploymentTracker, id string) (*models.DeploymentRecord, error) {
	rec, err := tracker.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || len(id) < 4 {
		return nil, err
	}

	all, listErr := tracker.List(ctx)
	if listErr != nil {
		return nil, listErr
	}
	var matches []*models.DeploymentRecord
	for _, r := range all {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("deployment id prefix %s is ambiguous (%d matches)", id, len(matches))
	}
}
