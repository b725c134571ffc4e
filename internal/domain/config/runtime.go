package config

import (
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string

	Network *Network

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool
	Timeout        time.Duration

	Identities models.Identities
	FeeToken   string
	Gas        GasConfig

	Signer    SignerConfig
	Relay     RelayConfig
	Retry     RetryConfig
	Tracker   TrackerConfig
	Report    ReportConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
}

// Network represents network configuration
type Network struct {
	Name       string `json:"name"`
	ChainID    uint64 `json:"chainId"`
	RPCURL     string `json:"rpcUrl,omitempty"`
	RelayerURL string `json:"relayerUrl,omitempty"`
	// StartNonce is used when no RPC endpoint is configured
	StartNonce uint64 `json:"startNonce,omitempty"`
}

// GasConfig holds the gas settings applied to every sponsored transaction
type GasConfig struct {
	MaxGas   uint64
	GasPrice uint64
}

// SignerBackend selects how controller signatures are produced
type SignerBackend string

const (
	SignerLocal    SignerBackend = "local"
	SignerRemote   SignerBackend = "remote"
	SignerExternal SignerBackend = "external"
)

// SignerConfig configures the controller signing backend
type SignerConfig struct {
	Backend SignerBackend
	// KeyRef locates the local key: "env:VAR" or "file:path"
	KeyRef  string
	URL     string
	Timeout time.Duration
}

// RelayConfig configures the gasless relay client
type RelayConfig struct {
	URL     string
	Timeout time.Duration
}

// RetryConfig is the backoff policy for retryable step failures
type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// TrackerBackend selects where deployment records are stored
type TrackerBackend string

const (
	TrackerMemory TrackerBackend = "memory"
	TrackerFile   TrackerBackend = "file"
	TrackerRedis  TrackerBackend = "redis"
	TrackerMySQL  TrackerBackend = "mysql"
)

// TrackerConfig configures the status tracker
type TrackerConfig struct {
	Backend  TrackerBackend
	Dir      string
	RedisURL string
	Prefix   string
	MySQLDSN string
}

// ReportConfig configures where deployment reports are written. An empty
// Endpoint keeps reports on disk.
type ReportConfig struct {
	Dir       string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// EventsConfig enables AMQP publication of deployment events when URL is set
type EventsConfig struct {
	URL   string
	Queue string
}

// TelemetryConfig enables OTLP trace export when Endpoint is set
type TelemetryConfig struct {
	Endpoint    string
	ServiceName string
}
