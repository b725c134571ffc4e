package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

func TestReportWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewReportWriter(dir)

	report := &models.Report{
		DeploymentID: "2f1c",
		GeneratedAt:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Group:        "core",
		Network:      "sepolia",
		Status:       models.StatusCompleted,
		Steps: []models.ReportStep{
			{Name: "Main", Kind: models.StepDeploy, Status: models.StepSucceeded, ContractAddress: "0xaa", TransactionHash: "0x01", GasUsed: 120000},
		},
		Recommendations: []string{"Deployment completed successfully."},
	}

	path, err := w.Write(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2f1c.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2f1c", decoded["deploymentId"])
	assert.Equal(t, "completed", decoded["status"])
	assert.Len(t, decoded["steps"], 1)
	assert.Len(t, decoded["recommendations"], 1)

	_, err = w.Write(context.Background(), &models.Report{})
	assert.Error(t, err)
}
