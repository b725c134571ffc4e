package progress

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

func TestSpinnerProgressReporter(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	r := newSpinnerProgressReporter(&buf)
	ctx := context.Background()

	rec := models.NewDeploymentRecord("abc", "core", "sepolia", nil, time.Now())
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStarted, Message: "Deploying core to sepolia", Metadata: rec})
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStep, Current: 1, Total: 2, Message: "Relaying Main", Spinner: true})
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageRetry, Message: "Main: unavailable, retrying in 1s", Spinner: true})

	step := &models.StepRecord{Name: "Main", Result: &models.RelayResult{Success: true, ContractAddress: "0xaa", TransactionHash: "0x01"}}
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStepDone, Message: "Main", Metadata: step})
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageStepError, Message: "Main.initialize failed: RelayRejected: nope"})

	rec.Status = models.StatusFailed
	r.OnProgress(ctx, usecase.ProgressEvent{Stage: usecase.StageFinished, Metadata: rec})
	r.Info("report written")

	out := buf.String()
	assert.Contains(t, out, "Deploying core to sepolia")
	assert.Contains(t, out, "✓ Main 0xaa")
	assert.Contains(t, out, "✗ Main.initialize failed")
	assert.Contains(t, out, "core failed in")
	assert.Contains(t, out, "report written")
	assert.False(t, r.spinner.Active())
}

func TestNewProgressSink(t *testing.T) {
	assert.IsType(t, &NopSink{}, NewProgressSink(&config.RuntimeConfig{NonInteractive: true}))
	assert.IsType(t, &NopSink{}, NewProgressSink(&config.RuntimeConfig{JSON: true}))
	assert.IsType(t, &SpinnerProgressReporter{}, NewProgressSink(&config.RuntimeConfig{}))
}
