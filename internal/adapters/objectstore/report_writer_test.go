package objectstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "sepolia/abc.json", ObjectKey(&models.Report{DeploymentID: "abc", Network: "sepolia"}))
	assert.Equal(t, "default/abc.json", ObjectKey(&models.Report{DeploymentID: "abc"}))
}

func TestNewReportWriterValidation(t *testing.T) {
	_, err := NewReportWriter(config.ReportConfig{Bucket: "reports"})
	assert.Error(t, err)

	_, err = NewReportWriter(config.ReportConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	w, err := NewReportWriter(config.ReportConfig{Endpoint: "localhost:9000", Bucket: "reports"})
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestReportWriterUpload(t *testing.T) {
	endpoint := os.Getenv("TREB_RELAY_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TREB_RELAY_TEST_MINIO_ENDPOINT not set")
	}

	w, err := NewReportWriter(config.ReportConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TREB_RELAY_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("TREB_RELAY_TEST_MINIO_SECRET_KEY"),
		Bucket:    "treb-relay-test",
	})
	require.NoError(t, err)

	id := uuid.NewString()
	location, err := w.Write(context.Background(), &models.Report{
		DeploymentID: id,
		Network:      "local",
		GeneratedAt:  time.Now(),
		Status:       models.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://treb-relay-test/local/"+id+".json", location)
}
