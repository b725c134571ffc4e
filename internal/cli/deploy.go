package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/cli/render"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// DefaultPlanFile is deployed when no plan is given
const DefaultPlanFile = "deploy.yaml"

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [plan.yaml...]",
		Short: "Deploy a multi-contract protocol from a YAML plan",
		Long: `Deploy every contract of a plan in dependency order, then run its
initialization calls. Contracts reference each other with "@Name" arguments,
which are replaced by the deployed address.

Several plans are deployed concurrently, one deployment record each.

Example plan:

  group: core
  network: sepolia
  contracts:
    Token:
      artifact: out/Token.sol/Token.json
      args: ["Relay Token", "RLY"]
    Vault:
      artifact: out/Vault.sol/Vault.json
      args: ["@Token"]
  initialize:
    - target: Vault
      method: initialize
      args: ["@Token", "true"]

Examples:
  treb-relay deploy
  treb-relay deploy plans/core.yaml plans/oracles.yaml --network sepolia`,
		Args: usageArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getSession(cmd)
			if err != nil {
				return err
			}

			plans := args
			if len(plans) == 0 {
				plans = []string{filepath.Join(s.cfg.ProjectRoot, DefaultPlanFile)}
				if _, err := os.Stat(plans[0]); err != nil {
					return usageErrorf("no plan given and %s not found in %s", DefaultPlanFile, s.cfg.ProjectRoot)
				}
			}

			a, err := getDeployApp(cmd)
			if err != nil {
				return err
			}

			records, err := a.DeployProtocol.Prepare(usecase.DeployProtocolParams{PlanPaths: plans})
			if err != nil {
				return &UsageError{Err: err}
			}

			steps := 0
			for _, rec := range records {
				steps += len(rec.Steps)
			}
			if err := confirmNetwork(s.cfg, fmt.Sprintf("Relay %d transactions for %d plan(s)", steps, len(records))); err != nil {
				return err
			}

			results, runErr := a.DeployProtocol.Run(cmd.Context(), records)
			if err := renderResults(cmd, s.cfg.JSON, results); err != nil {
				return err
			}
			return runErr
		},
	}

	return cmd
}

// renderResults prints results as JSON or as tables
func renderResults(cmd *cobra.Command, asJSON bool, results []*usecase.DeploymentResult) error {
	if asJSON {
		return render.JSON(cmd.OutOrStdout(), results)
	}
	return render.NewResultRenderer(cmd.OutOrStdout()).Render(results)
}
