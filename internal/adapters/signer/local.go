package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// LocalSigner signs with a private key resolved from a key reference.
// The key never leaves this type.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSigner resolves keyRef and loads the key it points to. Supported
// references are "env:NAME", "file:/path/to/key" and a bare variable name.
func NewLocalSigner(keyRef string) (*LocalSigner, error) {
	raw, err := resolveKeyRef(keyRef)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to resolve controller key")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		// the parse error never includes key material
		return nil, domain.NewError(domain.KindSigning, "controller key referenced by %q is not a valid secp256k1 key", keyRef)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the account of the loaded key
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// Sign produces a deterministic (RFC6979) signature over the transaction's
// EIP-155 signing hash.
func (s *LocalSigner) Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if identity.HasAddress() && identity.Address != s.address {
		return nil, domain.NewError(domain.KindSigning,
			"configured key belongs to %s, not to %s", s.address.Hex(), identity)
	}

	digest := tx.SigningHash()
	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to sign %s", digest.Hex())
	}
	return &models.Proof{Signer: s.address, Signature: sig}, nil
}

func resolveKeyRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("no key reference configured (set TREB_RELAY_CONTROLLER_KEY_REF)")
	}

	scheme, value, found := strings.Cut(ref, ":")
	if !found {
		scheme, value = "env", ref
	}

	switch scheme {
	case "env":
		v, ok := os.LookupEnv(value)
		if !ok || strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("environment variable %s is not set", value)
		}
		return v, nil
	case "file":
		data, err := os.ReadFile(value)
		if err != nil {
			return "", fmt.Errorf("failed to read key file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported key reference scheme %q", scheme)
	}
}
