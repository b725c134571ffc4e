package adapters

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/treb-relay/internal/adapters/artifacts"
	"github.com/trebuchet-org/treb-relay/internal/adapters/blockchain"
	"github.com/trebuchet-org/treb-relay/internal/adapters/events"
	"github.com/trebuchet-org/treb-relay/internal/adapters/fs"
	"github.com/trebuchet-org/treb-relay/internal/adapters/network"
	"github.com/trebuchet-org/treb-relay/internal/adapters/objectstore"
	"github.com/trebuchet-org/treb-relay/internal/adapters/progress"
	"github.com/trebuchet-org/treb-relay/internal/adapters/relay"
	"github.com/trebuchet-org/treb-relay/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/treb-relay/internal/adapters/signer"
	"github.com/trebuchet-org/treb-relay/internal/adapters/txbuilder"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// ProvideReportWriter stores reports in the object store when an endpoint
// is configured, and on disk otherwise
func ProvideReportWriter(cfg *config.RuntimeConfig) (usecase.ReportWriter, error) {
	if cfg.Report.Endpoint != "" {
		return objectstore.NewReportWriter(cfg.Report)
	}
	return fs.NewReportWriter(cfg.Report.Dir), nil
}

// ArtifactSet provides the compiled artifact loader
var ArtifactSet = wire.NewSet(
	artifacts.NewLoader,
	wire.Bind(new(usecase.ArtifactLoader), new(*artifacts.Loader)),
)

// TxSet provides the transaction builder
var TxSet = wire.NewSet(
	txbuilder.NewBuilder,
	wire.Bind(new(usecase.TransactionBuilder), new(*txbuilder.Builder)),
)

// SignerSet provides the configured controller signer
var SignerSet = wire.NewSet(
	signer.NewSigner,
)

// RelaySet provides the gasless relay client
var RelaySet = wire.NewSet(
	relay.NewClient,
	wire.Bind(new(usecase.RelayClient), new(*relay.Client)),
)

// BlockchainSet provides chain id and nonce lookups
var BlockchainSet = wire.NewSet(
	blockchain.NewReader,
)

// StoreSet provides the deployment status tracker
var StoreSet = wire.NewSet(
	deployments.NewRepositoryFromConfig,
)

// ReportSet provides the report writer
var ReportSet = wire.NewSet(
	ProvideReportWriter,
)

// EventsSet provides the deployment event publisher
var EventsSet = wire.NewSet(
	events.NewPublisherFromConfig,
)

// ProgressSet provides progress reporting
var ProgressSet = wire.NewSet(
	progress.NewProgressSink,
)

// NetworkSet provides the declared network listing
var NetworkSet = wire.NewSet(
	network.NewResolver,
	wire.Bind(new(usecase.NetworkSource), new(*network.Resolver)),
)

// ReadSet is everything the read-only commands need
var ReadSet = wire.NewSet(
	StoreSet,
	NetworkSet,
	ProgressSet,
)

// DeploySet adds the pipeline adapters used by the orchestrator
var DeploySet = wire.NewSet(
	ReadSet,
	ArtifactSet,
	TxSet,
	SignerSet,
	RelaySet,
	BlockchainSet,
	ReportSet,
	EventsSet,
)
