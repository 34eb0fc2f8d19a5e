package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/i474232898/weather-poller/internal/weather"
)

// ObjectKey names one stored record.
type ObjectKey struct {
	Prefix   string
	SourceID string
	Date     string // YYYY-MM-DD of the observation, UTC
	ID       string // UUIDv7, so keys sort by creation time
}

func (k ObjectKey) Key() string {
	return fmt.Sprintf("%s/%s/%s/%s.json", k.Prefix, k.SourceID, k.Date, k.ID)
}

// objectPutter is the subset of *minio.Client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string // e.g., "localhost:9000"
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO stores each record as a JSON object.
type MinIO struct {
	client objectPutter
	bucket string
}

// NewMinIO connects and creates the bucket if it does not exist yet.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIO) Name() string { return "minio" }

func (m *MinIO) Emit(ctx context.Context, rec weather.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return &EmitError{Sink: m.Name(), Err: fmt.Errorf("encode record: %w", err)}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return &EmitError{Sink: m.Name(), Err: err}
	}
	key := ObjectKey{
		Prefix:   "weather",
		SourceID: rec.Key.SourceID,
		Date:     rec.ObservedAt().UTC().Format("2006-01-02"),
		ID:       id.String(),
	}

	_, err = m.client.PutObject(ctx, m.bucket, key.Key(), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return &EmitError{Sink: m.Name(), Err: fmt.Errorf("failed to upload to minio: %w", err)}
	}
	return nil
}

func (m *MinIO) Close() error { return nil }
