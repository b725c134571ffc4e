package signer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// NewSigner builds the configured signing backend, wrapped in audit
// logging. It refuses to build when the controller and sponsor are the same
// account. When the local key is used and the controller was configured by
// name only, the key's address is filled into the controller identity.
func NewSigner(cfg *config.RuntimeConfig, log *slog.Logger) (usecase.Signer, error) {
	if err := cfg.Identities.Validate(); err != nil {
		return nil, err
	}

	var (
		backend usecase.Signer
		err     error
	)
	switch cfg.Signer.Backend {
	case config.SignerLocal, "":
		var local *LocalSigner
		local, err = NewLocalSigner(cfg.Signer.KeyRef)
		if err != nil {
			return nil, err
		}
		if !cfg.Identities.Controller.HasAddress() {
			cfg.Identities.Controller.Address = local.Address()
			if err := cfg.Identities.Validate(); err != nil {
				return nil, err
			}
		}
		backend = local
	case config.SignerRemote:
		if err := requireAddress(cfg.Identities.Controller); err != nil {
			return nil, err
		}
		backend, err = NewRemoteSigner(cfg.Signer.URL, cfg.Signer.Timeout)
	case config.SignerExternal:
		if err := requireAddress(cfg.Identities.Controller); err != nil {
			return nil, err
		}
		backend, err = NewExternalSigner(cfg.Signer.URL)
	default:
		return nil, fmt.Errorf("unknown signer backend %q (expected local, remote or external)", cfg.Signer.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &separated{
		next:    NewAudited(backend, string(cfg.Signer.Backend), log),
		sponsor: cfg.Identities.Sponsor,
	}, nil
}

func requireAddress(controller models.Identity) error {
	if controller.HasAddress() {
		return nil
	}
	return fmt.Errorf("controller %q needs an address for this signer backend (use name@0x...)", controller.Name)
}

// separated never signs for the sponsor account
type separated struct {
	next    usecase.Signer
	sponsor models.Identity
}

func (s *separated) Sign(ctx context.Context, tx *models.UnsignedTransaction, identity models.Identity) (*models.Proof, error) {
	if identity.Same(s.sponsor) {
		return nil, domain.WrapError(domain.KindSigning, domain.ErrIdentityConflict, "refusing to sign as %s", identity)
	}
	proof, err := s.next.Sign(ctx, tx, identity)
	if err != nil {
		return nil, err
	}
	if proof.Signer == s.sponsor.Address {
		return nil, domain.WrapError(domain.KindSigning, domain.ErrIdentityConflict, "proof was produced by the sponsor %s", s.sponsor)
	}
	return proof, nil
}
