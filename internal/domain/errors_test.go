package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/treb-relay/internal/domain"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      domain.ErrorKind
		sentinel  error
		retryable bool
	}{
		{name: "relay unavailable", err: domain.NewError(domain.KindRelayUnavailable, "timeout"), kind: domain.KindRelayUnavailable, sentinel: domain.ErrRelayUnavailable, retryable: true},
		{name: "relay rejected", err: domain.NewError(domain.KindRelayRejected, "insufficient sponsor balance"), kind: domain.KindRelayRejected, sentinel: domain.ErrRelayRejected},
		{name: "permanent signing", err: domain.NewError(domain.KindSigning, "bad key"), kind: domain.KindSigning, sentinel: domain.ErrSigning},
		{name: "transient signing", err: domain.NewError(domain.KindSigning, "store down").Transient(), kind: domain.KindSigning, sentinel: domain.ErrSigning, retryable: true},
		{name: "wrapped", err: fmt.Errorf("step Main: %w", domain.NewError(domain.KindEncoding, "bad arg")), kind: domain.KindEncoding, sentinel: domain.ErrEncoding},
		{name: "context cancelled", err: fmt.Errorf("dispatch: %w", context.Canceled), kind: domain.KindCancelled},
		{name: "plain", err: errors.New("boom"), kind: domain.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, domain.KindOf(tt.err))
			assert.Equal(t, tt.retryable, domain.IsRetryable(tt.err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
				assert.NotErrorIs(t, tt.err, domain.ErrDependencyUnresolved)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := domain.WrapError(domain.KindRelayUnavailable, errors.New("connection refused"), "POST %s", "http://relay/relay")
	assert.Equal(t, "RelayUnavailable: POST http://relay/relay: connection refused", err.Error())

	derr := &domain.DeploymentError{DeploymentID: "dep-1", Step: "Main", Err: err}
	assert.Equal(t, domain.KindRelayUnavailable, derr.Kind())
	assert.Contains(t, derr.Error(), `failed at step "Main"`)
	assert.ErrorIs(t, derr, domain.ErrRelayUnavailable)
}
