package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

// DeploymentsRenderer renders deployment record lists as a table
type DeploymentsRenderer struct {
	out io.Writer
}

// NewDeploymentsRenderer creates a new deployments renderer
func NewDeploymentsRenderer(out io.Writer) *DeploymentsRenderer {
	return &DeploymentsRenderer{out: out}
}

// Render prints one row per record followed by a status summary
func (r *DeploymentsRenderer) Render(records []*models.DeploymentRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(r.out, "No deployments found")
		return nil
	}

	t := newTable(table.Row{"ID", "Group", "Network", "Status", "Steps", "Created"})
	for _, rec := range records {
		done := lo.CountBy(rec.Steps, func(s *models.StepRecord) bool { return s.Succeeded() })
		t.AppendRow(table.Row{
			faintStyle.Sprint(ShortID(rec.ID)),
			nameStyle.Sprint(rec.Group),
			rec.Network,
			colorStatus(rec.Status),
			fmt.Sprintf("%d/%d", done, len(rec.Steps)),
			faintStyle.Sprint(rec.CreatedAt.Local().Format(time.DateTime)),
		})
	}
	fmt.Fprintln(r.out, t.Render())

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, summary(records))
	return nil
}

// summary counts records per status, e.g. "3 deployments: 2 Completed, 1 Failed"
func summary(records []*models.DeploymentRecord) string {
	counts := lo.CountValuesBy(records, func(rec *models.DeploymentRecord) models.DeploymentStatus {
		return rec.Status
	})
	statuses := lo.Keys(counts)
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

	parts := lo.Map(statuses, func(s models.DeploymentStatus, _ int) string {
		return fmt.Sprintf("%d %s", counts[s], StatusLabel(string(s)))
	})

	noun := "deployments"
	if len(records) == 1 {
		noun = "deployment"
	}
	return fmt.Sprintf("%d %s: %s", len(records), noun, strings.Join(parts, ", "))
}

var _ Renderer[[]*models.DeploymentRecord] = (*DeploymentsRenderer)(nil)
