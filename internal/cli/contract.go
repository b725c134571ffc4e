package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// NewContractCmd creates the contract command
func NewContractCmd() *cobra.Command {
	var (
		ctorArgs []string
		initArgs []string
		skipInit bool
		gas      uint64
	)

	cmd := &cobra.Command{
		Use:   "contract <artifactPath> [network]",
		Short: "Deploy a single contract artifact",
		Long: fmt.Sprintf(`Deploy one compiled contract (Foundry or Hardhat JSON artifact) through the
relay and print its address.

When the contract exposes an initializer (%s) whose
arity matches --init-args, it is called right after deployment unless
--skip-init is set.

Examples:
  treb-relay contract out/Counter.sol/Counter.json
  treb-relay contract out/Token.sol/Token.json sepolia --args "Relay Token" --args RLY
  treb-relay contract out/Vault.sol/Vault.json --init-args 0xabc...,true`, initializerList()),
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				if f := cmd.Flag("network"); f != nil && f.Changed && f.Value.String() != args[1] {
					return usageErrorf("network given twice: --network %s and %s", f.Value.String(), args[1])
				}
				if err := cmd.Flags().Set("network", args[1]); err != nil {
					return &UsageError{Err: err}
				}
			}
			return setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getSession(cmd)
			if err != nil {
				return err
			}

			a, err := getDeployApp(cmd)
			if err != nil {
				return err
			}

			req := models.DeploymentRequest{
				Artifact: args[0],
				Args:     ctorArgs,
				Network:  s.cfg.Network.Name,
				GasLimit: gas,
				FeeToken: s.cfg.FeeToken,
			}

			if err := confirmNetwork(s.cfg, fmt.Sprintf("Deploy %s", args[0])); err != nil {
				return err
			}

			result, runErr := a.DeployContract.Execute(cmd.Context(), usecase.DeployContractParams{
				Request:  req,
				InitArgs: initArgs,
				SkipInit: skipInit,
			})
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

	cmd.Flags().StringSliceVar(&ctorArgs, "args", nil, "Constructor arguments, in order (repeat or comma-separate)")
	cmd.Flags().StringSliceVar(&initArgs, "init-args", nil, "Initializer arguments, in order")
	cmd.Flags().BoolVar(&skipInit, "skip-init", false, "Do not call the initializer")
	cmd.Flags().Uint64Var(&gas, "gas", 0, "Gas limit for each transaction (defaults to --max-gas)")

	return cmd
}

// initializerList renders the detected initializer names for help text
func initializerList() string {
	names := models.InitializerNames
	if len(names) < 2 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}
