package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out io.Writer
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer) *NetworksRenderer {
	return &NetworksRenderer{out: out}
}

// Render prints each network with its chain id and relayer
func (r *NetworksRenderer) Render(networks []usecase.NetworkStatus) error {
	if len(networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in relay.toml [networks]")
		return nil
	}

	fmt.Fprintln(r.out, "🌐 Available Networks:")
	fmt.Fprintln(r.out)

	t := newTable(table.Row{"", "Name", "Chain ID", "RPC", "Relayer"})
	for _, n := range networks {
		marker := ""
		name := n.Name
		if n.Active {
			marker = successStyle.Sprint("▸")
			name = nameStyle.Sprint(n.Name)
		}
		chain := "-"
		if n.ChainID != 0 {
			chain = fmt.Sprintf("%d", n.ChainID)
		}
		t.AppendRow(table.Row{marker, name, chain, orDash(n.RPCURL), orDash(n.RelayerURL)})
	}
	fmt.Fprintln(r.out, t.Render())
	return nil
}

func orDash(s string) string {
	if s == "" {
		return faintStyle.Sprint("-")
	}
	return s
}

var _ Renderer[[]usecase.NetworkStatus] = (*NetworksRenderer)(nil)
