package cli

import (
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/cli/render"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

var listStatuses = []models.DeploymentStatus{
	models.StatusPending,
	models.StatusInProgress,
	models.StatusInitialized,
	models.StatusCompleted,
	models.StatusFailed,
}

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		status     string
		group      string
		allNetwork bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployment records",
		Long: `List recorded deployments, newest first.

By default only records of the configured network are listed.

Examples:
  treb-relay list
  treb-relay list --status failed
  treb-relay list --group core --all-networks`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := usecase.ListDeploymentsParams{Group: group}
			if status != "" {
				st := models.DeploymentStatus(strings.ToLower(status))
				if !lo.Contains(listStatuses, st) {
					return usageErrorf("unknown status %q (expected one of %s)", status,
						strings.Join(lo.Map(listStatuses, func(s models.DeploymentStatus, _ int) string { return string(s) }), ", "))
				}
				params.Status = st
			}

			a, err := getApp(cmd)
			if err != nil {
				return err
			}
			if !allNetwork && a.Config.Network != nil {
				params.Network = a.Config.Network.Name
			}

			records, err := a.ListDeployments.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if a.Config.JSON {
				if records == nil {
					records = []*models.DeploymentRecord{}
				}
				return render.JSON(cmd.OutOrStdout(), records)
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).Render(records)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, in_progress, initialized, completed, failed)")
	cmd.Flags().StringVar(&group, "group", "", "Filter by deployment group")
	cmd.Flags().BoolVar(&allNetwork, "all-networks", false, "List records of every network")

	return cmd
}
