package signer

import (
	"context"
	"log/slog"
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// Audited logs every signing request and its outcome. Only digests,
// identities and transaction metadata are logged.
type Audited struct {
	next    usecase.Signer
	backend string
	log     *slog.Logger
}

// NewAudited wraps next with audit logging
func NewAudited(next usecase.Signer, backend string, log *slog.Logger) *Audited {
	return &Audited{
		next:    next,
		backend: backend,
		log:     log.With("audit", true, "component", "signer", "backend", backend),
	}
}

func (a *Audited) Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error) {
	attrs := []any{
		"identity", identity.String(),
		"digest", tx.SigningHash().Hex(),
		"chain_id", tx.ChainID,
		"nonce", tx.Nonce,
		"creation", tx.IsCreation(),
	}
	a.log.Info("sign requested", attrs...)

	start := time.Now()
	proof, err := a.next.Sign(ctx, tx, identity)
	attrs = append(attrs, "duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		attrs = append(attrs, "kind", domain.KindOf(err), "retryable", domain.IsRetryable(err), "error", err)
		a.log.Warn("sign failed", attrs...)
		return nil, err
	}

	a.log.Info("sign completed", append(attrs, "signer", proof.Signer.Hex())...)
	return proof, nil
}

var _ usecase.Signer = (*Audited)(nil)
