package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// ArtifactLoader reads compiled contract artifacts
type ArtifactLoader interface {
	Load(ctx context.Context, path string) (*models.ContractArtifact, error)
}

// TxOptions are the chain and gas fields applied to a built transaction
type TxOptions struct {
	ChainID  uint64
	Nonce    uint64
	GasLimit uint64
	GasPrice uint64
}

// TransactionBuilder encodes unsigned transactions. Implementations are pure:
// the same inputs always produce the same bytes.
type TransactionBuilder interface {
	BuildCreate(artifact *models.ContractArtifact, args []string, opts TxOptions) (*models.UnsignedTransaction, error)
	BuildCall(artifact *models.ContractArtifact, target common.Address, method string, args []string, opts TxOptions) (*models.UnsignedTransaction, error)
}

// Signer produces the controller's authorization proof over a transaction
type Signer interface {
	Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error)
}

// RelayClient submits signed transactions to a gasless relay. On a relay
// rejection it returns the normalized result alongside the error.
type RelayClient interface {
	Submit(ctx context.Context, tx *models.SignedTransaction, feeToken string, sponsor models.Identity) (*models.RelayResult, error)
}

// ChainReader provides the chain state needed to build transactions
type ChainReader interface {
	ChainID(ctx context.Context) (uint64, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
}

// DeploymentTracker stores deployment records. Implementations keep deep
// copies and are safe for concurrent use.
type DeploymentTracker interface {
	Record(ctx context.Context, record *models.DeploymentRecord) error
	Get(ctx context.Context, id string) (*models.DeploymentRecord, error)
	List(ctx context.Context) ([]*models.DeploymentRecord, error)
}

// ReportWriter persists deployment reports and returns where they were written
type ReportWriter interface {
	Write(ctx context.Context, report *models.Report) (string, error)
}

// EventPublisher broadcasts deployment events
type EventPublisher interface {
	Publish(ctx context.Context, event models.DeploymentEvent) error
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata any
}

// Progress stages emitted by the orchestrator
const (
	StageStarted   = "deployment_started"
	StageStep      = "step_starting"
	StageRetry     = "step_retry"
	StageStepDone  = "step_completed"
	StageStepError = "step_failed"
	StageFinished  = "deployment_finished"
)

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// NopEvents discards deployment events
type NopEvents struct{}

func (NopEvents) Publish(context.Context, models.DeploymentEvent) error { return nil }
