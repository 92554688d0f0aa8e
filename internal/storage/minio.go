package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ansyar-project/split-the-bill/internal/config"
	"github.com/ansyar-project/split-the-bill/pkg/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const pdfContentType = "application/pdf"

// ReportArchive keeps a copy of every rendered PDF report.
type ReportArchive interface {
	StoreReport(ctx context.Context, key string, data []byte) error
	PresignedReportURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type MinIOClient struct {
	client *minio.Client
	bucket string
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOClient) StoreReport(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: pdfContentType,
	})
	if err != nil {
		logger.Error("minio_upload_failed", err, map[string]interface{}{
			"object_name": key,
			"size":        len(data),
			"bucket":      m.bucket,
		})
		return err
	}

	logger.Info("minio_upload_success", map[string]interface{}{
		"object_name": key,
		"size":        len(data),
		"bucket":      m.bucket,
	})
	return nil
}

// PresignedReportURL returns a download link that forces an attachment disposition.
func (m *MinIOClient) PresignedReportURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	query := make(url.Values)
	query.Set("response-content-type", pdfContentType)
	query.Set("response-content-disposition", `attachment; filename="expense-report.pdf"`)

	urlValue, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, query)
	if err != nil {
		return "", err
	}
	return urlValue.String(), nil
}

func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

// ReportKey builds the object key for a report. Period is "all" for all-time
// reports and YYYY-MM otherwise.
func ReportKey(groupID uuid.UUID, month, year int, generatedAt time.Time) string {
	period := "all"
	if month > 0 && year > 0 {
		period = fmt.Sprintf("%04d-%02d", year, month)
	}
	return fmt.Sprintf("reports/%s/%s/%s.pdf", groupID, period, generatedAt.UTC().Format("20060102T150405Z"))
}
