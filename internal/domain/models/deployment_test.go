package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newRecord() *models.DeploymentRecord {
	return models.NewDeploymentRecord("dep-1", "protocol", "local", []*models.StepRecord{
		{Name: "Main", Kind: models.StepDeploy, Artifact: "Main.json"},
		{Name: "TraitFusion", Kind: models.StepDeploy, Artifact: "TraitFusion.json", Args: []string{"@Main"}, Dependencies: []string{"Main"}},
		{Name: "Main.initialize", Kind: models.StepInitialize, Target: "Main", Method: "initialize"},
	}, now)
}

func succeed(step *models.StepRecord, addr string) {
	step.Status = models.StepSucceeded
	step.Result = &models.RelayResult{Success: true, TransactionHash: "0xabc", ContractAddress: addr}
}

func TestDeploymentRecordTransitions(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		rec := newRecord()
		assert.Equal(t, models.StatusPending, rec.Status)
		for _, s := range rec.Steps {
			assert.Equal(t, models.StepPending, s.Status)
		}

		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")
		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		succeed(rec.Steps[1], "0x2222222222222222222222222222222222222222")
		require.NoError(t, rec.MarkInitialized(now))
		succeed(rec.Steps[2], "")
		require.NoError(t, rec.Complete(now))

		assert.Equal(t, models.StatusCompleted, rec.Status)
		assert.True(t, rec.Status.IsTerminal())
		assert.Len(t, rec.Results(), 3)
	})

	t.Run("cannot initialize before all contracts succeed", func(t *testing.T) {
		rec := newRecord()
		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")

		err := rec.MarkInitialized(now)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, models.StatusInProgress, rec.Status)
	})

	t.Run("cannot complete with a failed result", func(t *testing.T) {
		rec := newRecord()
		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")
		succeed(rec.Steps[1], "0x2222222222222222222222222222222222222222")
		require.NoError(t, rec.MarkInitialized(now))
		rec.Steps[2].Status = models.StepSucceeded
		rec.Steps[2].Result = &models.RelayResult{Success: false, Error: "reverted"}

		err := rec.Complete(now)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, models.StatusInitialized, rec.Status)
	})

	t.Run("cannot skip initialization", func(t *testing.T) {
		rec := newRecord()
		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		for _, s := range rec.Steps {
			succeed(s, "")
		}
		assert.ErrorIs(t, rec.Complete(now), domain.ErrInvalidTransition)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		rec := newRecord()
		require.NoError(t, rec.Transition(models.StatusInProgress, now))
		require.NoError(t, rec.Fail(models.Failure{Step: "Main", Kind: domain.KindRelayRejected, Message: "no", At: now}))

		assert.ErrorIs(t, rec.Transition(models.StatusInProgress, now), domain.ErrInvalidTransition)
		assert.ErrorIs(t, rec.Fail(models.Failure{At: now}), domain.ErrInvalidTransition)
		assert.Equal(t, "Main", rec.Failure.Step)
	})
}

func TestDeploymentRecordAddresses(t *testing.T) {
	rec := newRecord()
	succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")
	rec.Steps[1].Status = models.StepFailed
	rec.Steps[1].Result = &models.RelayResult{Success: false, Error: "insufficient sponsor balance"}

	addr, ok := rec.AddressOf("Main")
	assert.True(t, ok)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", addr)

	_, ok = rec.AddressOf("TraitFusion")
	assert.False(t, ok)
	_, ok = rec.AddressOf("Missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]string{"Main": "0x1111111111111111111111111111111111111111"}, rec.Addresses())
	assert.Len(t, rec.Results(), 2)
}

func TestDeploymentRecordClone(t *testing.T) {
	rec := newRecord()
	succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")

	clone := rec.Clone()
	clone.Steps[0].Result.ContractAddress = "0x0"
	clone.Steps[1].Args[0] = "@Other"

	assert.Equal(t, "0x1111111111111111111111111111111111111111", rec.Steps[0].Result.ContractAddress)
	assert.Equal(t, "@Main", rec.Steps[1].Args[0])
}

func TestDeploymentRecordResumeInto(t *testing.T) {
	rec := newRecord()
	require.NoError(t, rec.Transition(models.StatusInProgress, now))
	succeed(rec.Steps[0], "0x1111111111111111111111111111111111111111")
	rec.Steps[1].Status = models.StepFailed
	rec.Steps[1].SignedHash = "0xdead"
	rec.Steps[1].Error = "RelayUnavailable: timeout"

	_, err := rec.ResumeInto("dep-2", now)
	require.Error(t, err)

	require.NoError(t, rec.Fail(models.Failure{Step: "TraitFusion", Kind: domain.KindRelayUnavailable, At: now}))
	next, err := rec.ResumeInto("dep-2", now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "dep-2", next.ID)
	assert.Equal(t, "dep-1", next.ResumedFrom)
	assert.Equal(t, models.StatusPending, next.Status)
	assert.Nil(t, next.Failure)
	assert.True(t, next.Steps[0].Succeeded())
	assert.Equal(t, models.StepPending, next.Steps[1].Status)
	assert.Empty(t, next.Steps[1].SignedHash)
	assert.Empty(t, next.Steps[1].Error)

	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, models.StepFailed, rec.Steps[1].Status)
}
