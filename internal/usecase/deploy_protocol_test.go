package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const tokenPlan = `
group: tokens
feeToken: USDC
contracts:
  Token:
    artifact: ` + tokenPath + `
`

const vaultPlan = `
group: vaults
contracts:
  Token:
    artifact: ` + tokenPath + `
  Vault:
    artifact: ` + vaultPath + `
    args: ["@Token"]
initialize:
  - target: Vault
    method: initialize
    args: ["@Token", "false"]
`

func TestDeployProtocolPrepare(t *testing.T) {
	h := newHarness(t, testConfig(t))
	uc := usecase.NewDeployProtocol(h.cfg, h.orch)

	t.Run("creates pending records", func(t *testing.T) {
		records, err := uc.Prepare(usecase.DeployProtocolParams{
			PlanPaths: []string{writePlan(t, "tokens.yaml", tokenPlan), writePlan(t, "vaults.yaml", vaultPlan)},
		})
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "tokens", records[0].Group)
		assert.Equal(t, "USDC", records[0].FeeToken)
		assert.Equal(t, "local", records[0].Network)
		assert.Equal(t, models.StatusPending, records[0].Status)
		assert.Equal(t, []string{"Token", "Vault", "Vault.initialize"}, stepNames(records[1].Steps))
		assert.NotEqual(t, records[0].ID, records[1].ID)
	})

	t.Run("requires a plan", func(t *testing.T) {
		_, err := uc.Prepare(usecase.DeployProtocolParams{})
		assert.ErrorContains(t, err, "at least one plan")
	})

	t.Run("network mismatch", func(t *testing.T) {
		path := writePlan(t, "deploy.yaml", "group: core\nnetwork: mainnet\ncontracts:\n  Token:\n    artifact: "+tokenPath+"\n")
		_, err := uc.Prepare(usecase.DeployProtocolParams{PlanPaths: []string{path}})
		assert.ErrorContains(t, err, "targets network 'mainnet' but 'local' is configured")
	})

	t.Run("cycle", func(t *testing.T) {
		path := writePlan(t, "deploy.yaml", "group: core\ncontracts:\n  A:\n    artifact: a.json\n    deps: [B]\n  B:\n    artifact: b.json\n    deps: [A]\n")
		_, err := uc.Prepare(usecase.DeployProtocolParams{PlanPaths: []string{path}})
		assert.ErrorContains(t, err, "circular dependency")
	})

	assert.Empty(t, h.relay.submissions())
}

func TestDeployProtocolExecute(t *testing.T) {
	h := newHarness(t, testConfig(t))
	uc := usecase.NewDeployProtocol(h.cfg, h.orch)

	results, err := uc.Execute(context.Background(), usecase.DeployProtocolParams{
		PlanPaths: []string{writePlan(t, "tokens.yaml", tokenPlan), writePlan(t, "vaults.yaml", vaultPlan)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.StatusCompleted, r.Record.Status)
	}
	assert.Equal(t, "USDC", results[0].Record.FeeToken)
	assert.Len(t, h.relay.submissions(), 4)

	seen := make(map[uint64]bool)
	for _, tx := range h.relay.submissions() {
		assert.False(t, seen[tx.Nonce], "nonce %d reused", tx.Nonce)
		seen[tx.Nonce] = true
	}
}
