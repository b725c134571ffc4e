package blockchain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const callTimeout = 10 * time.Second

// NewReader returns an RPC-backed reader when the network has an RPC URL,
// and a static reader otherwise.
func NewReader(cfg *config.RuntimeConfig) usecase.ChainReader {
	if cfg.Network == nil || cfg.Network.RPCURL == "" {
		return NewStaticReader(cfg)
	}
	return NewRPCReader(cfg.Network.RPCURL, cfg.Network.ChainID)
}

// RPCReader reads chain state through ethclient. It connects on first use.
type RPCReader struct {
	rpcURL  string
	chainID uint64

	mu     sync.Mutex
	client *ethclient.Client
}

// NewRPCReader creates a reader for rpcURL. A non-zero chainID is checked
// against the node.
func NewRPCReader(rpcURL string, chainID uint64) *RPCReader {
	return &RPCReader{rpcURL: rpcURL, chainID: chainID}
}

func (r *RPCReader) connect(ctx context.Context) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}
	client, err := ethclient.DialContext(ctx, r.rpcURL)
	if err != nil {
		return nil, domain.WrapError(domain.KindChainUnavailable, err, "failed to connect to RPC")
	}
	r.client = client
	return client, nil
}

// ChainID returns the node's chain id
func (r *RPCReader) ChainID(ctx context.Context) (uint64, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, domain.WrapError(domain.KindChainUnavailable, err, "failed to get chain ID")
	}
	if r.chainID != 0 && id.Uint64() != r.chainID {
		return 0, fmt.Errorf("chain ID mismatch: expected %d, got %d", r.chainID, id.Uint64())
	}
	return id.Uint64(), nil
}

// PendingNonce returns the next nonce for account including pending
// transactions
func (r *RPCReader) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	nonce, err := client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, domain.WrapError(domain.KindChainUnavailable, err, "failed to get pending nonce for %s", account.Hex())
	}
	return nonce, nil
}

// Close releases the RPC connection
func (r *RPCReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
}

// StaticReader serves the configured chain id and start nonce for networks
// without an RPC endpoint, where the relay assigns ordering.
type StaticReader struct {
	chainID    uint64
	startNonce uint64
}

// NewStaticReader creates a reader from the active network configuration
func NewStaticReader(cfg *config.RuntimeConfig) *StaticReader {
	r := &StaticReader{}
	if cfg.Network != nil {
		r.chainID = cfg.Network.ChainID
		r.startNonce = cfg.Network.StartNonce
	}
	return r
}

func (r *StaticReader) ChainID(ctx context.Context) (uint64, error) {
	if r.chainID == 0 {
		return 0, fmt.Errorf("network has neither an RPC URL nor a chain ID (set TREB_RELAY_RPC_URL or TREB_RELAY_CHAIN_ID)")
	}
	return r.chainID, nil
}

func (r *StaticReader) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return r.startNonce, nil
}

var (
	_ usecase.ChainReader = (*RPCReader)(nil)
	_ usecase.ChainReader = (*StaticReader)(nil)
)
