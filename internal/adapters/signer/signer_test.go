package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

const sponsorAddr = "0x5555555555555555555555555555555555555555"

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key, hexutil.Encode(crypto.FromECDSA(key))
}

func sampleTx() *models.UnsignedTransaction {
	return &models.UnsignedTransaction{
		ChainID:  31337,
		Nonce:    3,
		Data:     common.FromHex("0x6080604052"),
		GasLimit: 1_000_000,
		GasPrice: new(big.Int),
	}
}

func TestLocalSigner(t *testing.T) {
	key, hexKey := newKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	t.Setenv("TEST_CONTROLLER_KEY", hexKey)

	s, err := NewLocalSigner("env:TEST_CONTROLLER_KEY")
	require.NoError(t, err)
	assert.Equal(t, addr, s.Address())

	tx := sampleTx()
	controller := models.Identity{Name: "deployer", Address: addr}

	first, err := s.Sign(context.Background(), tx, controller)
	require.NoError(t, err)
	second, err := s.Sign(context.Background(), tx, controller)
	require.NoError(t, err)

	assert.Equal(t, addr, first.Signer)
	assert.Len(t, first.Signature, crypto.SignatureLength)
	assert.Equal(t, first.Signature, second.Signature, "signatures must be deterministic")

	signed, err := models.NewSignedTransaction(tx, first)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, signed.Hash)

	t.Run("identity for another account", func(t *testing.T) {
		_, err := s.Sign(context.Background(), tx, models.Identity{Address: common.HexToAddress(sponsorAddr)})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSigning)
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.Sign(ctx, tx, controller)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestKeyReferences(t *testing.T) {
	_, hexKey := newKey(t)
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "controller.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(hexKey+"\n"), 0600))
	t.Setenv("BARE_KEY", hexKey)
	t.Setenv("BAD_KEY", "0x1234")

	tests := []struct {
		ref     string
		wantErr bool
	}{
		{"file:" + keyFile, false},
		{"BARE_KEY", false},
		{"env:MISSING_KEY_VAR", true},
		{"env:BAD_KEY", true},
		{"vault:secret/controller", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			_, err := NewLocalSigner(tt.ref)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSigning)
			assert.NotContains(t, err.Error(), hexKey[2:])
		})
	}
}

func TestRemoteSigner(t *testing.T) {
	key, _ := newKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sign", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, addr.Hex(), req.Identity)

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"identity locked"}`))
			return
		}

		sig, err := crypto.Sign(hexutil.MustDecode(req.Digest), key)
		require.NoError(t, err)
		sig[crypto.RecoveryIDOffset] += 27
		_ = json.NewEncoder(w).Encode(signResponse{Signature: hexutil.Encode(sig)})
	}))
	defer srv.Close()

	s, err := NewRemoteSigner(srv.URL+"/", 0)
	require.NoError(t, err)

	tx := sampleTx()
	controller := models.Identity{Address: addr}

	proof, err := s.Sign(context.Background(), tx, controller)
	require.NoError(t, err)
	assert.Equal(t, addr, proof.Signer)
	assert.Less(t, proof.Signature[crypto.RecoveryIDOffset], byte(2))

	_, err = models.NewSignedTransaction(tx, proof)
	require.NoError(t, err)

	for _, code := range []int{http.StatusServiceUnavailable, http.StatusRequestTimeout, http.StatusTooManyRequests} {
		t.Run(fmt.Sprintf("status %d is transient", code), func(t *testing.T) {
			status = code
			defer func() { status = 0 }()

			_, err := s.Sign(context.Background(), tx, controller)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSigning)
			assert.True(t, domain.IsRetryable(err))
		})
	}

	t.Run("client error is permanent", func(t *testing.T) {
		status = http.StatusForbidden
		defer func() { status = 0 }()

		_, err := s.Sign(context.Background(), tx, controller)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSigning)
		assert.False(t, domain.IsRetryable(err))
		assert.Contains(t, err.Error(), "identity locked")
	})

	t.Run("unreachable service is transient", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()

		s, err := NewRemoteSigner(down.URL, 0)
		require.NoError(t, err)
		_, err = s.Sign(context.Background(), tx, controller)
		require.Error(t, err)
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestProofFromSigned(t *testing.T) {
	key, _ := newKey(t)
	tx := sampleTx()
	chainID := new(big.Int).SetUint64(tx.ChainID)

	signed, err := types.SignTx(tx.Legacy(), types.LatestSignerForChainID(chainID), key)
	require.NoError(t, err)

	proof, err := proofFromSigned(signed, chainID)
	require.NoError(t, err)

	expected, err := crypto.Sign(tx.SigningHash().Bytes(), key)
	require.NoError(t, err)
	assert.Equal(t, expected, proof.Signature)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), proof.Signer)
}

func TestNewSigner(t *testing.T) {
	key, hexKey := newKey(t)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	t.Setenv("TEST_CONTROLLER_KEY", hexKey)

	newCfg := func() *config.RuntimeConfig {
		return &config.RuntimeConfig{
			Identities: models.Identities{
				Controller: models.Identity{Name: "deployer"},
				Sponsor:    models.Identity{Name: "paymaster", Address: common.HexToAddress(sponsorAddr)},
			},
			Signer: config.SignerConfig{Backend: config.SignerLocal, KeyRef: "env:TEST_CONTROLLER_KEY"},
		}
	}

	t.Run("local backend fills the controller address", func(t *testing.T) {
		cfg := newCfg()
		s, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		assert.Equal(t, addr, cfg.Identities.Controller.Address)

		proof, err := s.Sign(context.Background(), sampleTx(), cfg.Identities.Controller)
		require.NoError(t, err)
		assert.Equal(t, addr, proof.Signer)
	})

	t.Run("same controller and sponsor", func(t *testing.T) {
		cfg := newCfg()
		cfg.Identities.Controller = cfg.Identities.Sponsor
		_, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		assert.ErrorIs(t, err, domain.ErrIdentityConflict)
	})

	t.Run("key belongs to the sponsor", func(t *testing.T) {
		cfg := newCfg()
		cfg.Identities.Sponsor = models.Identity{Name: "paymaster", Address: addr}
		_, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		assert.ErrorIs(t, err, domain.ErrIdentityConflict)
	})

	t.Run("never signs as the sponsor", func(t *testing.T) {
		cfg := newCfg()
		s, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		_, err = s.Sign(context.Background(), sampleTx(), cfg.Identities.Sponsor)
		assert.ErrorIs(t, err, domain.ErrIdentityConflict)
	})

	t.Run("remote backend needs an address", func(t *testing.T) {
		cfg := newCfg()
		cfg.Signer = config.SignerConfig{Backend: config.SignerRemote, URL: "http://signer"}
		_, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := newCfg()
		cfg.Signer.Backend = "hsm"
		_, err := NewSigner(cfg, slog.New(slog.DiscardHandler))
		assert.Error(t, err)
	})
}

type failingSigner struct{ err error }

func (f failingSigner) Sign(context.Context, *models.UnsignedTransaction, models.Identity) (*models.Proof, error) {
	return nil, f.err
}

func TestAudited(t *testing.T) {
	key, hexKey := newKey(t)
	t.Setenv("TEST_CONTROLLER_KEY", hexKey)
	local, err := NewLocalSigner("env:TEST_CONTROLLER_KEY")
	require.NoError(t, err)

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	tx := sampleTx()
	_, err = NewAudited(local, "local", log).Sign(context.Background(), tx, models.Identity{Address: crypto.PubkeyToAddress(key.PublicKey)})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "audit=true")
	assert.Contains(t, out, "sign requested")
	assert.Contains(t, out, "sign completed")
	assert.Contains(t, out, tx.SigningHash().Hex())
	assert.NotContains(t, out, hexKey[2:])

	buf.Reset()
	_, err = NewAudited(failingSigner{errors.New("boom")}, "remote", log).Sign(context.Background(), tx, models.Identity{Name: "deployer"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "sign failed")
	assert.Contains(t, buf.String(), "boom")
}
