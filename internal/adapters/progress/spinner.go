package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// SpinnerProgressReporter renders deployment progress with a spinner on
// stderr. Events from concurrent deployments are serialized.
type SpinnerProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	started map[string]time.Time
}

// NewSpinnerProgressReporter creates a new spinner-based progress reporter
func NewSpinnerProgressReporter() *SpinnerProgressReporter {
	return newSpinnerProgressReporter(os.Stderr)
}

func newSpinnerProgressReporter(out io.Writer) *SpinnerProgressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false

	return &SpinnerProgressReporter{
		out:     out,
		spinner: s,
		started: make(map[string]time.Time),
	}
}

// OnProgress handles progress events
func (r *SpinnerProgressReporter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Stage {
	case usecase.StageStarted:
		r.stop()
		if rec, ok := event.Metadata.(*models.DeploymentRecord); ok {
			r.started[rec.ID] = time.Now()
		}
		r.println(color.New(color.Bold), event.Message)

	case usecase.StageStep, usecase.StageRetry:
		suffix := event.Message
		if event.Total > 0 && event.Stage == usecase.StageStep {
			suffix = fmt.Sprintf("[%d/%d] %s", event.Current, event.Total, event.Message)
		}
		if event.Stage == usecase.StageRetry {
			suffix = color.YellowString(suffix)
		}
		r.spinner.Suffix = " " + suffix
		if !r.spinner.Active() {
			r.spinner.Start()
		}

	case usecase.StageStepDone:
		r.stop()
		line := "✓ " + event.Message
		if step, ok := event.Metadata.(*models.StepRecord); ok && step.Result != nil {
			if step.Result.ContractAddress != "" {
				line += " " + step.Result.ContractAddress
			} else if step.Result.TransactionHash != "" {
				line += " " + step.Result.TransactionHash
			}
		}
		r.println(color.New(color.FgGreen), line)

	case usecase.StageStepError:
		r.stop()
		r.println(color.New(color.FgRed), "✗ "+event.Message)

	case usecase.StageFinished:
		r.stop()
		if rec, ok := event.Metadata.(*models.DeploymentRecord); ok {
			if start, ok := r.started[rec.ID]; ok {
				delete(r.started, rec.ID)
				c := color.New(color.FgGreen)
				if rec.Status != models.StatusCompleted {
					c = color.New(color.FgRed)
				}
				r.println(c, fmt.Sprintf("%s %s in %s", rec.Group, rec.Status, time.Since(start).Round(time.Millisecond)))
			}
		}

	default:
		if event.Spinner {
			r.spinner.Suffix = " " + event.Message
			if !r.spinner.Active() {
				r.spinner.Start()
			}
		} else {
			r.stop()
		}
	}
}

// Info prints an info message
func (r *SpinnerProgressReporter) Info(message string) {
	r.interrupt(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerProgressReporter) Error(message string) {
	r.interrupt(color.New(color.FgRed), message)
}

// interrupt prints around an active spinner
func (r *SpinnerProgressReporter) interrupt(c *color.Color, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	r.println(c, message)
	if wasActive {
		r.spinner.Start()
	}
}

func (r *SpinnerProgressReporter) stop() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

func (r *SpinnerProgressReporter) println(c *color.Color, message string) {
	_, _ = c.Fprintln(r.out, message)
}

// Ensure SpinnerProgressReporter implements ProgressSink
var _ usecase.ProgressSink = (*SpinnerProgressReporter)(nil)
