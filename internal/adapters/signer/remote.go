package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// RemoteSigner asks an HTTP secret store to sign digests on behalf of an
// identity it custodies.
type RemoteSigner struct {
	baseURL    string
	httpClient *http.Client
}

type signRequest struct {
	Identity string `json:"identity"`
	Digest   string `json:"digest"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// NewRemoteSigner creates a client for the signing service at baseURL
func NewRemoteSigner(baseURL string, timeout time.Duration) (*RemoteSigner, error) {
	if baseURL == "" {
		return nil, domain.NewError(domain.KindSigning, "remote signer requires a URL (set TREB_RELAY_SIGNER_URL)")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSigner{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Sign posts the signing hash to {url}/v1/sign. Unreachable services and
// 5xx responses are transient; any other failure is permanent.
func (s *RemoteSigner) Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error) {
	digest := tx.SigningHash()
	body, err := json.Marshal(signRequest{Identity: identity.Ref(), Digest: digest.Hex()})
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to encode sign request")
	}

	url := s.baseURL + "/v1/sign"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to create sign request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.KindSigning, err, "signing service unreachable").Transient()
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "failed to read sign response").Transient()
	}

	var out signResponse
	decodeErr := json.Unmarshal(payload, &out)

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.NewError(domain.KindSigning, "signing service unavailable (status %d)", resp.StatusCode).Transient()
	}
	if resp.StatusCode != http.StatusOK {
		reason := out.Error
		if reason == "" {
			reason = strings.TrimSpace(string(payload))
		}
		return nil, domain.NewError(domain.KindSigning, "signing refused for %s (status %d): %s", identity, resp.StatusCode, reason)
	}
	if decodeErr != nil {
		return nil, domain.WrapError(domain.KindSigning, decodeErr, "invalid sign response")
	}

	sig, err := hexutil.Decode(out.Signature)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "invalid signature encoding")
	}
	sig, err = normalizeSignature(sig)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "invalid signature")
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return nil, domain.WrapError(domain.KindSigning, err, "signature does not recover")
	}
	return &models.Proof{Signer: crypto.PubkeyToAddress(*pub), Signature: sig}, nil
}

// normalizeSignature accepts v in {0, 1} or {27, 28}
func normalizeSignature(sig []byte) ([]byte, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("expected %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	out := make([]byte, len(sig))
	copy(out, sig)
	switch v := out[crypto.RecoveryIDOffset]; v {
	case 0, 1:
	case 27, 28:
		out[crypto.RecoveryIDOffset] = v - 27
	default:
		return nil, errors.New("unsupported recovery id")
	}
	return out, nil
}
