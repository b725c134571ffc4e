package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// DefaultTimeout bounds a single relay request
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a relay response is read
const maxBody = 1 << 20

// Client submits signed, sponsored transactions to a relay service
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a relay client for the active network's relayer
func NewClient(cfg *config.RuntimeConfig, log *slog.Logger) *Client {
	timeout := cfg.Relay.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.Relay.URL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log.With("component", "relay"),
	}
}

type signedTransaction struct {
	From      string  `json:"from"`
	To        *string `json:"to"`
	Data      string  `json:"data"`
	Gas       string  `json:"gas"`
	GasPrice  string  `json:"gasPrice"`
	Nonce     string  `json:"nonce"`
	ChainID   string  `json:"chainId"`
	Signature string  `json:"signature"`
	Hash      string  `json:"hash"`
	Raw       string  `json:"raw"`
}

type submitRequest struct {
	SignedTransaction signedTransaction `json:"signedTransaction"`
	FeeToken          string            `json:"feeToken,omitempty"`
	Sponsor           string            `json:"sponsor"`
}

type submitResponse struct {
	Success         *bool    `json:"success"`
	ContractAddress string   `json:"contractAddress"`
	TransactionHash string   `json:"transactionHash"`
	GasUsed         quantity `json:"gasUsed"`
	Error           string   `json:"error"`
}

// quantity accepts a JSON number, a decimal string or a 0x-prefixed hex string
type quantity uint64

func (q *quantity) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %s", data)
	}
	*q = quantity(n)
	return nil
}

// Submit posts tx to {relayerUrl}/relay. A rejected submission returns the
// relay's result alongside a RelayRejected error.
func (c *Client) Submit(ctx context.Context, tx *models.SignedTransaction, feeToken string, sponsor models.Identity) (*models.RelayResult, error) {
	if c.baseURL == "" {
		return nil, domain.NewError(domain.KindRelayRejected, "no relayer URL configured for this network (set TREB_RELAY_RELAYER_URL)")
	}

	body, err := json.Marshal(submitRequest{
		SignedTransaction: encodeTransaction(tx),
		FeeToken:          feeToken,
		Sponsor:           sponsor.Ref(),
	})
	if err != nil {
		return nil, domain.WrapError(domain.KindEncoding, err, "failed to encode relay request")
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + "/relay"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.WrapError(domain.KindRelayRejected, err, "failed to create relay request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Debug("submitting transaction", "url", url, "hash", tx.Hash.Hex(), "nonce", tx.Nonce, "sponsor", sponsor.Ref())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.KindCancelled, ctx.Err(), "relay submission cancelled")
		}
		return nil, domain.WrapError(domain.KindRelayUnavailable, err, "POST %s", url)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.WrapError(domain.KindCancelled, ctx.Err(), "relay submission cancelled")
		}
		return nil, domain.WrapError(domain.KindRelayUnavailable, err, "failed to read relay response")
	}

	c.log.Debug("relay responded", "status", resp.StatusCode, "bytes", len(payload))
	return classify(resp.StatusCode, payload, tx.IsCreation())
}

// classify maps a relay HTTP response onto a result and error kind. A
// successful creation must report the deployed address.
func classify(status int, payload []byte, creation bool) (*models.RelayResult, error) {
	var out submitResponse
	decodeErr := json.Unmarshal(payload, &out)

	switch {
	case status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return nil, domain.NewError(domain.KindRelayUnavailable, "relay returned status %d%s", status, reasonSuffix(out, decodeErr))
	case status < 200 || status >= 300:
		result := &models.RelayResult{Success: false, Error: reason(out, decodeErr, payload)}
		return result, domain.NewError(domain.KindRelayRejected, "relay returned status %d: %s", status, result.Error)
	}

	if decodeErr != nil {
		return nil, domain.WrapError(domain.KindRelayRejected, decodeErr, "malformed relay response")
	}
	if out.Success == nil {
		return nil, domain.NewError(domain.KindRelayRejected, "malformed relay response: missing success field")
	}

	result := &models.RelayResult{
		Success:         *out.Success,
		ContractAddress: out.ContractAddress,
		TransactionHash: out.TransactionHash,
		GasUsed:         uint64(out.GasUsed),
		Error:           out.Error,
	}
	if !result.Success {
		result.ContractAddress = ""
		if result.Error == "" {
			result.Error = "relay reported failure without a reason"
		}
		return result, domain.NewError(domain.KindRelayRejected, "%s", result.Error)
	}
	if result.TransactionHash == "" {
		return nil, domain.NewError(domain.KindRelayRejected, "malformed relay response: success without transactionHash")
	}
	if !creation {
		result.ContractAddress = ""
	} else if !common.IsHexAddress(result.ContractAddress) {
		return nil, domain.NewError(domain.KindRelayRejected, "malformed relay response: contract creation without a valid contractAddress (got %q)", result.ContractAddress)
	}
	result.Error = ""
	return result, nil
}

func reason(out submitResponse, decodeErr error, payload []byte) string {
	if decodeErr == nil && out.Error != "" {
		return out.Error
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "no reason given"
	}
	return text
}

func reasonSuffix(out submitResponse, decodeErr error) string {
	if decodeErr == nil && out.Error != "" {
		return ": " + out.Error
	}
	return ""
}

func encodeTransaction(tx *models.SignedTransaction) signedTransaction {
	st := signedTransaction{
		Data:     hexutil.Encode(tx.Data),
		Gas:      hexutil.EncodeUint64(tx.GasLimit),
		GasPrice: "0x0",
		Nonce:    hexutil.EncodeUint64(tx.Nonce),
		ChainID:  hexutil.EncodeUint64(tx.ChainID),
		Hash:     tx.Hash.Hex(),
		Raw:      hexutil.Encode(tx.Raw),
	}
	if tx.GasPrice != nil {
		st.GasPrice = hexutil.EncodeBig(tx.GasPrice)
	}
	if tx.Proof != nil {
		st.From = tx.Proof.Signer.Hex()
		st.Signature = hexutil.Encode(tx.Proof.Signature)
	}
	if tx.To != nil {
		to := tx.To.Hex()
		st.To = &to
	}
	return st
}

var _ usecase.RelayClient = (*Client)(nil)
