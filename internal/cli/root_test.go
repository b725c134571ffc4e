package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"usage", &UsageError{Err: errors.New("bad")}, ExitUsage},
		{"wrapped usage", fmt.Errorf("outer: %w", usageErrorf("bad")), ExitUsage},
		{"unknown command", errors.New(`unknown command "frob" for "treb-relay"`), ExitUsage},
		{"failure", errors.New("relay down"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// project creates a project root with one network served by relay and
// changes into it
func project(t *testing.T, relayURL string) string {
	t.Helper()
	dir := t.TempDir()

	toml := fmt.Sprintf("[networks.local]\nchain_id = 31337\nrelayer_url = %q\n", relayURL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.toml"), []byte(toml), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "out"), 0755))
	artifact := `{"contractName":"Main","abi":[],"bytecode":{"object":"0x6080604052"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "out", "Main.json"), []byte(artifact), 0644))

	plan := "group: core\ncontracts:\n  Main:\n    artifact: out/Main.json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.yaml"), []byte(plan), 0644))

	t.Chdir(dir)
	t.Setenv("TEST_CONTROLLER_KEY", testKey)
	return dir
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

var deployFlags = []string{
	"--non-interactive",
	"--json",
	"--tracker", "memory",
	"--controller", "deployer",
	"--controller-key-ref", "env:TEST_CONTROLLER_KEY",
	"--sponsor", "treasury@0x000000000000000000000000000000000000bEEF",
}

func TestVersion(t *testing.T) {
	code, stdout, _ := execute("version")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "treb-relay version")
}

func TestUsageErrors(t *testing.T) {
	project(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"list", "--frob"}},
		{"missing artifact", []string{"contract"}},
		{"too many args", []string{"contract", "a.json", "local", "extra"}},
		{"bad status filter", []string{"list", "--status", "exploded"}},
		{"unknown network", []string{"list", "--network", "mars"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := execute(tt.args...)
			assert.Equal(t, ExitUsage, code, stderr)
		})
	}
}

func TestList(t *testing.T) {
	project(t, "http://127.0.0.1:1")

	code, stdout, stderr := execute("list", "--json", "--tracker", "memory")
	require.Equal(t, ExitOK, code, stderr)
	assert.JSONEq(t, "[]", stdout)
}

func TestNetworks(t *testing.T) {
	project(t, "http://127.0.0.1:1")

	code, stdout, stderr := execute("networks", "--json")
	require.Equal(t, ExitOK, code, stderr)

	var networks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &networks))
	require.Len(t, networks, 1)
	assert.Equal(t, "local", networks[0]["name"])
	assert.Equal(t, true, networks[0]["Active"])
}

func TestDeploy(t *testing.T) {
	var calls atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/relay", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"transactionHash":"0x01","contractAddress":"0x00000000000000000000000000000000000000aa","gasUsed":53000}`)
	}))
	defer relay.Close()
	dir := project(t, relay.URL)

	code, stdout, stderr := execute(append([]string{"deploy"}, deployFlags...)...)
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, int32(1), calls.Load())

	var results []struct {
		Record struct {
			Status string `json:"status"`
			Steps  []struct {
				Result struct {
					ContractAddress string `json:"contractAddress"`
				} `json:"result"`
			} `json:"steps"`
		}
		ReportPath string
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "completed", results[0].Record.Status)
	require.Len(t, results[0].Record.Steps, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", results[0].Record.Steps[0].Result.ContractAddress)

	assert.FileExists(t, results[0].ReportPath)
	rel, err := filepath.Rel(dir, results[0].ReportPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".treb-relay", "reports"), filepath.Dir(rel))
}

func TestDeployRejected(t *testing.T) {
	var calls atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"success":false,"error":"insufficient sponsor balance"}`)
	}))
	defer relay.Close()
	project(t, relay.URL)

	code, _, stderr := execute(append([]string{"deploy"}, deployFlags...)...)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, stderr, "Main")
	assert.Contains(t, stderr, "RelayRejected")
	assert.Contains(t, stderr, "insufficient sponsor balance")
}

func TestDeployRequiresDistinctIdentities(t *testing.T) {
	project(t, "http://127.0.0.1:1")

	code, _, stderr := execute("deploy", "--non-interactive", "--tracker", "memory",
		"--controller-key-ref", "env:TEST_CONTROLLER_KEY",
		"--controller", "0x000000000000000000000000000000000000bEEF",
		"--sponsor", "0x000000000000000000000000000000000000beef")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "differ")
}

func TestContractHelpListsInitializers(t *testing.T) {
	long := NewContractCmd().Long
	for _, name := range models.InitializerNames {
		assert.Contains(t, long, name)
	}
	assert.Contains(t, long, "(initialize, init or initializer)")
}
