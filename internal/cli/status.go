package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-relay/internal/app"
	"github.com/trebuchet-org/treb-relay/internal/cli/render"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [deployment-id]",
		Short: "Show a deployment record",
		Long: `Show the status, steps, relay results and failure of a deployment record.

The id may be abbreviated to any unique prefix of at least four characters.
Without an id, an interactive picker lists recorded deployments.

Examples:
  treb-relay status 3f2a9c1e
  treb-relay status --json 3f2a9c1e-8d7b-4c6a-9e0f-1a2b3c4d5e6f`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			rec, err := pickRecord(cmd, a, args, usecase.ListDeploymentsParams{})
			if err != nil {
				return err
			}

			if a.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), rec)
			}
			return render.NewDeploymentRenderer(cmd.OutOrStdout()).Render(rec)
		},
	}

	return cmd
}

// pickRecord resolves the record named by args, or prompts for one among
// the records matching filter
func pickRecord(cmd *cobra.Command, a *app.App, args []string, filter usecase.ListDeploymentsParams) (*models.DeploymentRecord, error) {
	if len(args) == 1 {
		return a.ShowDeployment.Run(cmd.Context(), args[0])
	}

	if a.Config.NonInteractive || a.Config.JSON {
		return nil, usageErrorf("a deployment id is required")
	}

	records, err := a.ListDeployments.Run(cmd.Context(), filter)
	if err != nil {
		return nil, err
	}
	return interactive.NewSelector(false).SelectDeployment("Select deployment", records)
}
