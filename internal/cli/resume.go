package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// NewResumeCmd creates the resume command
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [deployment-id]",
		Short: "Resume a failed deployment",
		Long: `Resume a failed deployment from its failed step. Steps that already
succeeded keep their addresses; the failed step and everything after it are
rebuilt, signed and relayed again.

The run is stored as a new deployment record that points back at the failed
one. Without an id, an interactive picker lists failed deployments.

Examples:
  treb-relay resume 3f2a9c1e`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getSession(cmd)
			if err != nil {
				return err
			}

			id := ""
			if len(args) == 1 {
				id = args[0]
			} else {
				reader, err := getApp(cmd)
				if err != nil {
					return err
				}
				rec, err := pickRecord(cmd, reader, args, usecase.ListDeploymentsParams{
					Status:  models.StatusFailed,
					Network: s.cfg.Network.Name,
				})
				if err != nil {
					return err
				}
				id = rec.ID
			}

			a, err := getDeployApp(cmd)
			if err != nil {
				return err
			}

			if err := confirmNetwork(s.cfg, fmt.Sprintf("Resume deployment %s", id)); err != nil {
				return err
			}

			result, runErr := a.ResumeDeployment.Execute(cmd.Context(), id)
			var results []*usecase.DeploymentResult
			if result != nil {
				results = append(results, result)
			}
			if err := renderResults(cmd, s.cfg.JSON, results); err != nil {
				return err
			}
			return runErr
		},
	}

	return cmd
}
