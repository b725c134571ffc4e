package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// ReportWriter uploads deployment reports to an S3-compatible bucket as
// <network>/<deploymentId>.json
type ReportWriter struct {
	client *minio.Client
	bucket string
}

// NewReportWriter creates a MinIO client for cfg. The bucket is created on
// first write when missing.
func NewReportWriter(cfg config.ReportConfig) (*ReportWriter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("report bucket is not configured")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	return &ReportWriter{client: client, bucket: cfg.Bucket}, nil
}

// Write uploads the report and returns its s3:// location
func (w *ReportWriter) Write(ctx context.Context, report *models.Report) (string, error) {
	if report.DeploymentID == "" {
		return "", fmt.Errorf("report has no deployment id")
	}
	if err := w.ensureBucket(ctx); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := ObjectKey(report)
	_, err = w.client.PutObject(ctx, w.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"deployment-status": string(report.Status),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", w.bucket, key), nil
}

func (w *ReportWriter) ensureBucket(ctx context.Context) error {
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", w.bucket, err)
	}
	if exists {
		return nil
	}
	if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", w.bucket, err)
	}
	return nil
}

// ObjectKey is the object name a report is stored under
func ObjectKey(report *models.Report) string {
	network := report.Network
	if network == "" {
		network = "default"
	}
	return fmt.Sprintf("%s/%s.json", network, report.DeploymentID)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var _ usecase.ReportWriter = (*ReportWriter)(nil)
