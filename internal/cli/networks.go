package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-relay/internal/cli/render"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List available networks from relay.toml",
		Long: `List all networks declared in the [networks] section of relay.toml, plus
the active network when it is configured only through the environment.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp(cmd)
			if err != nil {
				return err
			}

			networks, err := a.ListNetworks.Run(cmd.Context())
			if err != nil {
				return err
			}

			if a.Config.JSON {
				return render.JSON(cmd.OutOrStdout(), networks)
			}
			return render.NewNetworksRenderer(cmd.OutOrStdout()).Render(networks)
		},
	}

	return cmd
}
