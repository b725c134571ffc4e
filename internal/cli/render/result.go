package render

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// ResultRenderer prints the outcome of deployment runs
type ResultRenderer struct {
	out io.Writer
}

// NewResultRenderer creates a new result renderer
func NewResultRenderer(out io.Writer) *ResultRenderer {
	return &ResultRenderer{out: out}
}

// Render prints the deployed addresses of each run, or where it failed
func (r *ResultRenderer) Render(results []*usecase.DeploymentResult) error {
	for i, res := range lo.Compact(results) {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		r.renderOne(res)
	}
	return nil
}

func (r *ResultRenderer) renderOne(res *usecase.DeploymentResult) {
	rec := res.Record
	if rec == nil {
		return
	}

	if rec.Status == models.StatusCompleted {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("%s deployed to %s", rec.Group, rec.Network)))
	} else {
		fmt.Fprintln(r.out, FormatError(fmt.Sprintf("%s %s on %s", rec.Group, StatusLabel(string(rec.Status)), rec.Network)))
	}

	deployed := lo.Filter(rec.DeploySteps(), func(s *models.StepRecord, _ int) bool {
		return s.Succeeded() && s.Result.ContractAddress != ""
	})
	if len(deployed) > 0 {
		t := newTable(table.Row{"Contract", "Address"})
		for _, s := range deployed {
			t.AppendRow(table.Row{nameStyle.Sprint(s.Name), addressStyle.Sprint(s.Result.ContractAddress)})
		}
		fmt.Fprintln(r.out, t.Render())
	}

	fmt.Fprintf(r.out, "Deployment ID: %s\n", rec.ID)
	if res.ReportPath != "" {
		fmt.Fprintf(r.out, "Report: %s\n", faintStyle.Sprint(res.ReportPath))
	}

	if rec.Failure != nil {
		renderRecommendations(r.out, usecase.BuildReport(rec, time.Now()).Recommendations)
	}
}

// FailureLine describes a deployment error with its step, kind and record id
func FailureLine(err error) string {
	var derr *domain.DeploymentError
	if !errors.As(err, &derr) {
		return err.Error()
	}
	kind := derr.Kind()
	if derr.Step == "" {
		return fmt.Sprintf("deployment %s failed (%s): %v", derr.DeploymentID, kind, derr.Err)
	}
	return fmt.Sprintf("deployment %s failed at step %s (%s): %v", derr.DeploymentID, derr.Step, kind, derr.Err)
}

var _ Renderer[[]*usecase.DeploymentResult] = (*ResultRenderer)(nil)
