package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/adapters/fs"
	"github.com/trebuchet-org/treb-relay/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/treb-relay/internal/adapters/signer"
	"github.com/trebuchet-org/treb-relay/internal/adapters/txbuilder"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/logging"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const (
	controllerKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	keyEnv        = "USECASE_TEST_CONTROLLER_KEY"
	chainID       = 31337
)

var sponsor = models.Identity{Name: "treasury", Address: common.HexToAddress("0x000000000000000000000000000000000000bEEF")}

const (
	mainPath  = "out/Main.sol/Main.json"
	tokenPath = "out/Token.sol/Token.json"
	vaultPath = "out/Vault.sol/Vault.json"
)

const mainABI = `[
	{"type":"function","name":"initialize","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

const tokenABI = `[
	{"type":"function","name":"setVault","inputs":[{"name":"vault","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const vaultABI = `[
	{"type":"constructor","inputs":[{"name":"token","type":"address"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"initialize","inputs":[{"name":"token","type":"address"},{"name":"open","type":"bool"}],"outputs":[],"stateMutability":"nonpayable"}
]`

func artifact(t *testing.T, name, path, abiJSON string, code byte) *models.ContractArtifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return &models.ContractArtifact{
		Name:       name,
		SourcePath: path,
		Bytecode:   []byte{0x60, 0x80, 0x60, 0x40, code},
		ABI:        parsed,
	}
}

// fakeLoader serves artifacts from memory
type fakeLoader struct {
	artifacts map[string]*models.ContractArtifact
}

func (l *fakeLoader) Load(ctx context.Context, path string) (*models.ContractArtifact, error) {
	a, ok := l.artifacts[path]
	if !ok {
		return nil, domain.NewError(domain.KindArtifactNotFound, "artifact %s does not exist", path)
	}
	return a, nil
}

// relayStep scripts one relay response; nil means success
type relayStep func(ctx context.Context, tx *models.SignedTransaction) (*models.RelayResult, error)

func unavailable(ctx context.Context, tx *models.SignedTransaction) (*models.RelayResult, error) {
	return nil, domain.NewError(domain.KindRelayUnavailable, "POST /relay: timeout")
}

func rejected(reason string) relayStep {
	return func(ctx context.Context, tx *models.SignedTransaction) (*models.RelayResult, error) {
		return &models.RelayResult{Success: false, Error: reason},
			domain.NewError(domain.KindRelayRejected, "%s", reason)
	}
}

// noAddress succeeds without reporting a contract address
func noAddress(ctx context.Context, tx *models.SignedTransaction) (*models.RelayResult, error) {
	return &models.RelayResult{Success: true, TransactionHash: tx.Hash.Hex(), GasUsed: 21000}, nil
}

// scriptedRelay plays back scripted responses, then succeeds. A successful
// creation reports the address derived from the signer and nonce.
type scriptedRelay struct {
	mu        sync.Mutex
	script    []relayStep
	submitted []*models.SignedTransaction
}

func (r *scriptedRelay) Submit(ctx context.Context, tx *models.SignedTransaction, feeToken string, sponsor models.Identity) (*models.RelayResult, error) {
	r.mu.Lock()
	r.submitted = append(r.submitted, tx)
	var step relayStep
	if len(r.script) > 0 {
		step, r.script = r.script[0], r.script[1:]
	}
	r.mu.Unlock()

	if step != nil {
		return step(ctx, tx)
	}
	result := &models.RelayResult{Success: true, TransactionHash: tx.Hash.Hex(), GasUsed: 50000}
	if tx.IsCreation() {
		result.ContractAddress = crypto.CreateAddress(tx.Proof.Signer, tx.Nonce).Hex()
	}
	return result, nil
}

func (r *scriptedRelay) then(steps ...relayStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, steps...)
}

func (r *scriptedRelay) submissions() []*models.SignedTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.SignedTransaction(nil), r.submitted...)
}

// MockChainReader is a mock implementation of ChainReader
type MockChainReader struct {
	mock.Mock
}

func (m *MockChainReader) ChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainReader) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

// recordingEvents keeps every published event
type recordingEvents struct {
	mu     sync.Mutex
	events []models.DeploymentEvent
}

func (e *recordingEvents) Publish(ctx context.Context, event models.DeploymentEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

// statuses returns the distinct record statuses published for id, in order
func (e *recordingEvents) statuses(id string) []models.DeploymentStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.DeploymentStatus
	for _, ev := range e.events {
		if ev.DeploymentID != id {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != ev.Status {
			out = append(out, ev.Status)
		}
	}
	return out
}

// recordingSink counts progress stages
type recordingSink struct {
	mu     sync.Mutex
	stages map[string]int
}

func (s *recordingSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stages == nil {
		s.stages = make(map[string]int)
	}
	s.stages[event.Stage]++
}

func (s *recordingSink) Info(string)  {}
func (s *recordingSink) Error(string) {}

func (s *recordingSink) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[stage]
}

type harness struct {
	cfg      *config.RuntimeConfig
	loader   *fakeLoader
	relay    *scriptedRelay
	chain    *MockChainReader
	tracker  *deployments.MemoryRepository
	events   *recordingEvents
	progress *recordingSink
	orch     *usecase.Orchestrator
}

func testConfig(t *testing.T) *config.RuntimeConfig {
	return &config.RuntimeConfig{
		ProjectRoot: t.TempDir(),
		Network:     &config.Network{Name: "local", ChainID: chainID},
		Identities: models.Identities{
			Controller: models.Identity{Name: "deployer"},
			Sponsor:    sponsor,
		},
		Gas:    config.GasConfig{MaxGas: 3_000_000},
		Signer: config.SignerConfig{Backend: config.SignerLocal, KeyRef: "env:" + keyEnv},
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			Multiplier:      2,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func newHarness(t *testing.T, cfg *config.RuntimeConfig) *harness {
	t.Helper()
	t.Setenv(keyEnv, controllerKey)

	log := logging.New(io.Discard, slog.LevelDebug)
	sig, err := signer.NewSigner(cfg, log)
	require.NoError(t, err)

	h := &harness{
		cfg: cfg,
		loader: &fakeLoader{artifacts: map[string]*models.ContractArtifact{
			mainPath:  artifact(t, "Main", mainPath, mainABI, 0x01),
			tokenPath: artifact(t, "Token", tokenPath, tokenABI, 0x02),
			vaultPath: artifact(t, "Vault", vaultPath, vaultABI, 0x03),
		}},
		relay:    &scriptedRelay{},
		chain:    &MockChainReader{},
		tracker:  deployments.NewMemoryRepository(),
		events:   &recordingEvents{},
		progress: &recordingSink{},
	}
	h.chain.On("PendingNonce", mock.Anything, mock.Anything).Return(uint64(0), nil).Maybe()
	if cfg.Network.ChainID != 0 {
		h.chain.On("ChainID", mock.Anything).Return(cfg.Network.ChainID, nil).Maybe()
	}

	h.orch, err = usecase.NewOrchestrator(cfg, h.loader, txbuilder.NewBuilder(), sig, h.relay, h.chain,
		h.tracker, fs.NewReportWriter(t.TempDir()), h.events, h.progress, log)
	require.NoError(t, err)
	return h
}

// protocolRecord is Token, then Vault(@Token), then Vault.initialize(@Token, true)
func protocolRecord(t *testing.T) *models.DeploymentRecord {
	plan := &models.Plan{
		Group: "core",
		Contracts: map[string]*models.ContractSpec{
			"Token": {Artifact: tokenPath},
			"Vault": {Artifact: vaultPath, Args: []string{"@Token"}},
		},
		Initialize: []*models.InitCall{
			{Target: "Vault", Method: "initialize", Args: []string{"@Token", "true"}},
		},
	}
	require.NoError(t, plan.Validate())
	steps, err := usecase.PlanSteps(plan)
	require.NoError(t, err)
	return models.NewDeploymentRecord(uuid.NewString(), plan.Group, "local", steps, time.Now())
}
