package signer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/external"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// ExternalSigner delegates signing to a clef-compatible signer, typically
// fronting a hardware wallet. The connection is opened on first use.
type ExternalSigner struct {
	endpoint string

	mu     sync.Mutex
	client *external.ExternalSigner
}

// NewExternalSigner creates a signer for the clef endpoint
func NewExternalSigner(endpoint string) (*ExternalSigner, error) {
	if endpoint == "" {
		return nil, domain.NewError(domain.KindSigning, "external signer requires an endpoint (set TREB_RELAY_SIGNER_URL)")
	}
	return &ExternalSigner{endpoint: endpoint}, nil
}

func (s *ExternalSigner) connect() (*external.ExternalSigner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	client, err := external.NewExternalSigner(s.endpoint)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to reach external signer at %s", s.endpoint).Transient()
	}
	s.client = client
	return client, nil
}

// Sign asks the external signer to sign tx for identity's account. The
// identity must carry an address.
func (s *ExternalSigner) Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !identity.HasAddress() {
		return nil, domain.NewError(domain.KindSigning, "external signer needs the controller address, got %q", identity.Name)
	}

	client, err := s.connect()
	if err != nil {
		return nil, err
	}

	chainID := new(big.Int).SetUint64(tx.ChainID)
	signed, err := client.SignTx(accounts.Account{Address: identity.Address}, tx.Legacy(), chainID)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "external signer refused transaction")
	}
	return proofFromSigned(signed, chainID)
}

// proofFromSigned extracts r || s || v from an EIP-155 signed transaction
func proofFromSigned(signed *types.Transaction, chainID *big.Int) (*models.Proof, error) {
	signer := types.LatestSignerForChainID(chainID)
	from, err := types.Sender(signer, signed)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "signed transaction does not recover")
	}

	v, r, sv := signed.RawSignatureValues()
	recID := new(big.Int).Set(v)
	if signed.Protected() {
		recID.Sub(recID, new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35)))
	} else {
		recID.Sub(recID, big.NewInt(27))
	}
	if !recID.IsUint64() || recID.Uint64() > 1 {
		return nil, domain.NewError(domain.KindSigning, "unexpected recovery id %s", v)
	}

	sig := make([]byte, crypto.SignatureLength)
	r.FillBytes(sig[0:32])
	sv.FillBytes(sig[32:64])
	sig[crypto.RecoveryIDOffset] = byte(recID.Uint64())
	return &models.Proof{Signer: from, Signature: sig}, nil
}
