package network

import (
	"context"

	"github.com/trebuchet-org/treb-relay/internal/config"
	domainconfig "github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// Resolver reads the networks declared in the project's relay.toml
type Resolver struct {
	projectRoot string
}

// NewResolver creates a resolver for the configured project
func NewResolver(cfg *domainconfig.RuntimeConfig) *Resolver {
	return &Resolver{projectRoot: cfg.ProjectRoot}
}

// Networks returns the declared networks keyed by name
func (r *Resolver) Networks(ctx context.Context) (map[string]*domainconfig.Network, error) {
	return config.LoadNetworks(r.projectRoot)
}

var _ usecase.NetworkSource = (*Resolver)(nil)
