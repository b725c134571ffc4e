package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// EnvPrefix is prepended to every environment variable the tool reads
const EnvPrefix = "TREB_RELAY"

// DataDirName holds local state (records, reports) under the project root
const DataDirName = ".treb-relay"

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}
	dataDir := filepath.Join(projectRoot, DataDirName)

	controller, err := models.ParseIdentity(v.GetString("controller"))
	if err != nil {
		return nil, fmt.Errorf("invalid controller: %w", err)
	}
	sponsor, err := models.ParseIdentity(v.GetString("sponsor"))
	if err != nil {
		return nil, fmt.Errorf("invalid sponsor: %w", err)
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        dataDir,
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("timeout"),
		Identities:     models.Identities{Controller: controller, Sponsor: sponsor},
		FeeToken:       v.GetString("fee_token"),
		Gas: config.GasConfig{
			MaxGas:   v.GetUint64("max_gas"),
			GasPrice: v.GetUint64("gas_price"),
		},
		Signer: config.SignerConfig{
			Backend: config.SignerBackend(strings.ToLower(v.GetString("signer_backend"))),
			KeyRef:  v.GetString("controller_key_ref"),
			URL:     v.GetString("signer_url"),
			Timeout: v.GetDuration("signer_timeout"),
		},
		Relay: config.RelayConfig{
			Timeout: v.GetDuration("relay_timeout"),
		},
		Retry: config.RetryConfig{
			MaxAttempts:     v.GetUint("retry_attempts"),
			InitialInterval: v.GetDuration("retry_interval"),
			Multiplier:      v.GetFloat64("retry_multiplier"),
			MaxInterval:     v.GetDuration("retry_max_interval"),
		},
		Tracker: config.TrackerConfig{
			Backend:  config.TrackerBackend(strings.ToLower(v.GetString("tracker"))),
			Dir:      filepath.Join(dataDir, "deployments"),
			RedisURL: v.GetString("redis_url"),
			Prefix:   v.GetString("tracker_prefix"),
			MySQLDSN: v.GetString("mysql_dsn"),
		},
		Report: config.ReportConfig{
			Dir:       filepath.Join(dataDir, "reports"),
			Endpoint:  v.GetString("report_endpoint"),
			AccessKey: v.GetString("report_access_key"),
			SecretKey: v.GetString("report_secret_key"),
			Bucket:    v.GetString("report_bucket"),
			UseSSL:    v.GetBool("report_ssl"),
		},
		Events: config.EventsConfig{
			URL:   v.GetString("amqp_url"),
			Queue: v.GetString("amqp_queue"),
		},
		Telemetry: config.TelemetryConfig{
			Endpoint:    v.GetString("otlp_endpoint"),
			ServiceName: v.GetString("service_name"),
		},
	}
	if dir := v.GetString("tracker_dir"); dir != "" {
		cfg.Tracker.Dir = dir
	}
	if dir := v.GetString("report_dir"); dir != "" {
		cfg.Report.Dir = dir
	}

	network, err := resolveNetwork(v, projectRoot)
	if err != nil {
		return nil, err
	}
	cfg.Network = network
	cfg.Relay.URL = network.RelayerURL

	return cfg, nil
}

// resolveNetwork merges the named relay.toml network with env and flag
// overrides. Explicit values win over the file.
func resolveNetwork(v *viper.Viper, projectRoot string) (*config.Network, error) {
	networks, err := LoadNetworks(projectRoot)
	if err != nil {
		return nil, err
	}

	name := v.GetString("network")
	network := &config.Network{Name: name}
	if declared, ok := networks[name]; ok {
		*network = *declared
	} else if len(networks) > 0 && name != "local" && v.GetString("rpc_url") == "" && v.GetUint64("chain_id") == 0 {
		return nil, fmt.Errorf("network '%s' not found in %s (available: %s)",
			name, NetworksFileName, strings.Join(NetworkNames(networks), ", "))
	}

	if rpc := v.GetString("rpc_url"); rpc != "" {
		network.RPCURL = rpc
	}
	if chainID := v.GetUint64("chain_id"); chainID != 0 {
		network.ChainID = chainID
	}
	if relayer := v.GetString("relayer_url"); relayer != "" {
		network.RelayerURL = relayer
	}
	if v.IsSet("start_nonce") {
		network.StartNonce = v.GetUint64("start_nonce")
	}

	return network, nil
}

// FindProjectRoot walks up from the current directory to find relay.toml,
// falling back to the current directory.
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, NetworksFileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance. Top-level keys in
// relay.toml act as defaults; environment and flags override them.
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	LoadDotEnv(projectRoot)

	v := viper.New()

	v.SetConfigName("relay")
	v.SetConfigType("toml")
	v.AddConfigPath(projectRoot)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("project_root", projectRoot)
	v.SetDefault("network", "local")
	v.SetDefault("timeout", "10m")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("signer_backend", string(config.SignerLocal))
	v.SetDefault("signer_timeout", "10s")
	v.SetDefault("relay_timeout", "15s")
	v.SetDefault("max_gas", 3_000_000)
	v.SetDefault("gas_price", 0)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_interval", "1s")
	v.SetDefault("retry_multiplier", 2.0)
	v.SetDefault("retry_max_interval", "30s")
	v.SetDefault("tracker", string(config.TrackerFile))
	v.SetDefault("tracker_prefix", "treb-relay")
	v.SetDefault("report_bucket", "treb-relay-reports")
	v.SetDefault("amqp_queue", "treb-relay.deployments")
	v.SetDefault("service_name", "treb-relay")

	// Missing relay.toml is fine
	_ = v.ReadInConfig()

	if cmd != nil {
		bind := func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil {
				panic(err)
			}
		}
		cmd.Flags().VisitAll(bind)
		cmd.InheritedFlags().VisitAll(bind)
	}

	return v
}
