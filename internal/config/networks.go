package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
)

// NetworksFileName is the project file declaring named networks
const NetworksFileName = "relay.toml"

// NetworksTOML represents the [networks] section of relay.toml
type NetworksTOML struct {
	Networks map[string]NetworkTOML `toml:"networks"`
}

// NetworkTOML is a single [networks.<name>] table
type NetworkTOML struct {
	RPCURL     string `toml:"rpc_url"`
	ChainID    uint64 `toml:"chain_id"`
	RelayerURL string `toml:"relayer_url"`
	StartNonce uint64 `toml:"start_nonce"`
}

// LoadDotEnv loads .env and .env.local from the project root. Variables
// already present in the environment win.
func LoadDotEnv(projectRoot string) {
	envFiles := []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	}

	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: Failed to load %s: %v\n", envFile, err)
			}
		}
	}
}

// LoadNetworks parses relay.toml and expands ${VAR} references. A missing
// file yields no networks.
func LoadNetworks(projectRoot string) (map[string]*config.Network, error) {
	path := filepath.Join(projectRoot, NetworksFileName)
	networks := make(map[string]*config.Network)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return networks, nil
	}

	var raw NetworksTOML
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", NetworksFileName, err)
	}

	for name, n := range raw.Networks {
		networks[name] = &config.Network{
			Name:       name,
			ChainID:    n.ChainID,
			RPCURL:     os.ExpandEnv(n.RPCURL),
			RelayerURL: os.ExpandEnv(n.RelayerURL),
			StartNonce: n.StartNonce,
		}
	}

	return networks, nil
}

// NetworkNames returns the configured network names in order
func NetworkNames(networks map[string]*config.Network) []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
