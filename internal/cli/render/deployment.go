package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// DeploymentRenderer renders detailed information about a single record
type DeploymentRenderer struct {
	out io.Writer
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer) *DeploymentRenderer {
	return &DeploymentRenderer{out: out}
}

// Render prints the record header, its steps and what to do next
func (r *DeploymentRenderer) Render(rec *models.DeploymentRecord) error {
	headerStyle.Fprintf(r.out, "Deployment: %s\n", rec.ID)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out)
	sectionStyle.Fprintln(r.out, "Basic Information:")
	fmt.Fprintf(r.out, "  Group: %s\n", nameStyle.Sprint(rec.Group))
	fmt.Fprintf(r.out, "  Status: %s\n", colorStatus(rec.Status))
	if rec.ChainID != 0 {
		fmt.Fprintf(r.out, "  Network: %s (chain %d)\n", rec.Network, rec.ChainID)
	} else {
		fmt.Fprintf(r.out, "  Network: %s\n", rec.Network)
	}
	if rec.Controller != "" {
		fmt.Fprintf(r.out, "  Controller: %s\n", rec.Controller)
	}
	if rec.Sponsor != "" {
		fmt.Fprintf(r.out, "  Sponsor: %s\n", rec.Sponsor)
	}
	if rec.FeeToken != "" {
		fmt.Fprintf(r.out, "  Fee Token: %s\n", rec.FeeToken)
	}
	if rec.ResumedFrom != "" {
		fmt.Fprintf(r.out, "  Resumed From: %s\n", rec.ResumedFrom)
	}
	fmt.Fprintf(r.out, "  Created: %s\n", faintStyle.Sprint(rec.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintf(r.out, "  Updated: %s\n", faintStyle.Sprint(rec.UpdatedAt.Format(time.RFC3339)))

	if len(rec.Steps) > 0 {
		fmt.Fprintln(r.out)
		sectionStyle.Fprintln(r.out, "Steps:")
		fmt.Fprintln(r.out, stepsTable(rec.Steps))
	}

	if rec.Failure != nil {
		fmt.Fprintln(r.out)
		sectionStyle.Fprintln(r.out, "Failure:")
		if rec.Failure.Step != "" {
			fmt.Fprintf(r.out, "  Step: %s\n", rec.Failure.Step)
		}
		fmt.Fprintf(r.out, "  Kind: %s\n", failureStyle.Sprint(rec.Failure.Kind))
		fmt.Fprintf(r.out, "  Message: %s\n", rec.Failure.Message)
	}

	renderRecommendations(r.out, usecase.BuildReport(rec, time.Now()).Recommendations)
	return nil
}

func stepsTable(steps []*models.StepRecord) string {
	t := newTable(table.Row{"#", "Step", "Kind", "Status", "Address / Tx", "Gas Used"})
	for i, s := range steps {
		var location, gas string
		if s.Result != nil {
			location = s.Result.ContractAddress
			if location == "" {
				location = s.Result.TransactionHash
			}
			if s.Result.GasUsed > 0 {
				gas = fmt.Sprintf("%d", s.Result.GasUsed)
			}
		}
		t.AppendRow(table.Row{
			i + 1,
			s.Name,
			string(s.Kind),
			colorStepStatus(s.Status),
			addressStyle.Sprint(location),
			gas,
		})
	}
	return t.Render()
}

func renderRecommendations(out io.Writer, recs []string) {
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(out)
	sectionStyle.Fprintln(out, "Next Steps:")
	for _, rec := range recs {
		fmt.Fprintf(out, "  %s %s\n", recommendStyle.Sprint("→"), rec)
	}
}

var _ Renderer[*models.DeploymentRecord] = (*DeploymentRenderer)(nil)
