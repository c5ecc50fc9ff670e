package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/johnquangdev/meetscribe/pkg/config"
)

// MinIOClient archives session audio in an S3 compatible bucket
type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL string // Public URL used when MinIO sits behind a reverse proxy
	retry     func() backoff.BackOff
}

// NewMinIOClient creates a new MinIO client and makes sure the bucket exists
func NewMinIOClient(ctx context.Context, cfg *config.StorageConfig) (*MinIOClient, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	client := &MinIOClient{
		client:    minioClient,
		bucket:    cfg.BucketName,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		retry: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		},
	}

	if err := client.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return client, nil
}

// ensureBucket creates the bucket if it does not exist. Audio stays private;
// readers go through presigned URLs.
func (m *MinIOClient) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// AudioObjectName returns the object key of a session's archived audio
func AudioObjectName(meetingID, sessionID uuid.UUID) string {
	return fmt.Sprintf("meetings/%s/%s.webm", meetingID, sessionID)
}

// ArchiveAudio uploads the raw session buffer, retrying transient failures
func (m *MinIOClient) ArchiveAudio(ctx context.Context, meetingID, sessionID uuid.UUID, data []byte, contentType string) (string, error) {
	objectName := AudioObjectName(meetingID, sessionID)
	if contentType == "" {
		contentType = "audio/webm"
	}

	upload := func() error {
		return m.UploadFile(ctx, objectName, bytes.NewReader(data), int64(len(data)), contentType)
	}
	if err := backoff.Retry(upload, backoff.WithContext(m.retry(), ctx)); err != nil {
		return "", err
	}
	return objectName, nil
}

// UploadFile uploads a file to MinIO
func (m *MinIOClient) UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

// GetFileURL gets a presigned URL for accessing a file
func (m *MinIOClient) GetFileURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	// Replace the internal endpoint with the public one, keeping /bucket/object?query
	if m.publicURL != "" {
		urlStr := url.String()
		bucketPos := len(url.Scheme) + 3 + len(url.Host)
		if bucketPos < len(urlStr) {
			return m.publicURL + urlStr[bucketPos:], nil
		}
	}

	return url.String(), nil
}

// RemovePrefix deletes every object under prefix
func (m *MinIOClient) RemovePrefix(ctx context.Context, prefix string) error {
	objectCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return fmt.Errorf("error listing objects: %w", object.Err)
		}
		if err := m.client.RemoveObject(ctx, m.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", object.Key, err)
		}
	}
	return nil
}
