package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// ReportWriter writes deployment reports as <dir>/<deploymentId>.json
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer rooted at dir
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// Write stores the report and returns its path
func (w *ReportWriter) Write(ctx context.Context, report *models.Report) (string, error) {
	if report.DeploymentID == "" {
		return "", fmt.Errorf("report has no deployment id")
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	path := filepath.Join(w.dir, report.DeploymentID+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Ensure the adapter implements the interface
var _ usecase.ReportWriter = (*ReportWriter)(nil)
