package usecase

import (
	"context"
	"sort"

	"github.com/trebuchet-org/treb-relay/internal/domain/config"
)

// NetworkSource lists the networks declared for the project
type NetworkSource interface {
	Networks(ctx context.Context) (map[string]*config.Network, error)
}

// NetworkStatus describes one configured network
type NetworkStatus struct {
	*config.Network
	Active bool
}

// ListNetworks is a use case for listing available networks
type ListNetworks struct {
	config *config.RuntimeConfig
	source NetworkSource
}

// NewListNetworks creates a new ListNetworks use case
func NewListNetworks(cfg *config.RuntimeConfig, source NetworkSource) *ListNetworks {
	return &ListNetworks{
		config: cfg,
		source: source,
	}
}

// Run returns declared networks sorted by name. The active network is
// included even when it only comes from the environment.
func (uc *ListNetworks) Run(ctx context.Context) ([]NetworkStatus, error) {
	networks, err := uc.source.Networks(ctx)
	if err != nil {
		return nil, err
	}

	if networks == nil {
		networks = make(map[string]*config.Network)
	}

	active := uc.config.Network
	if active != nil && active.Name != "" {
		networks[active.Name] = active
	}

	out := make([]NetworkStatus, 0, len(networks))
	for name, n := range networks {
		out = append(out, NetworkStatus{Network: n, Active: active != nil && name == active.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
