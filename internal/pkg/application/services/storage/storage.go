package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/storage")

// Config holds the S3 endpoint settings. Endpoint left empty means
// object storage is not configured and every operation fails with
// ErrUnavailable.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func (c Config) IsConfigured() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

type BucketInfo struct {
	Name         string     `json:"name"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
}

type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ETag         string            `json:"etag,omitempty"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// StorageService exposes bucket and object operations against the
// configured S3 compatible store.
type StorageService interface {
	CreateBucket(ctx context.Context, name, region string) error
	ListBuckets(ctx context.Context) ([]BucketInfo, error)
	BucketInfo(ctx context.Context, name string) (*BucketInfo, error)
	DeleteBucket(ctx context.Context, name string) error

	UploadObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error)
	DownloadObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	ObjectMetadata(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	PresignedUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	PresignedDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)

	Configured() bool
	CheckConnection(ctx context.Context) bool
}

// NewStorageService connects to the endpoint in cfg. An unconfigured
// cfg yields a service whose operations all return ErrUnavailable, so
// the rest of the API keeps working without object storage.
func NewStorageService(ctx context.Context, cfg Config) (StorageService, error) {
	if !cfg.IsConfigured() {
		log := logging.GetFromContext(ctx)
		log.Warn().Msg("object storage is not configured")
		return &storageSvc{}, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &storageSvc{client: client}, nil
}

type storageSvc struct {
	client *minio.Client
}

func (svc *storageSvc) notConfigured() error {
	return fmt.Errorf("object storage is not configured: %w", catalog.ErrUnavailable)
}

func (svc *storageSvc) CreateBucket(ctx context.Context, name, region string) error {
	var err error
	ctx, span := tracer.Start(ctx, "create-bucket")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return err
	}

	exists, err := svc.client.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		err = fmt.Errorf("bucket '%s' already exists: %w", name, catalog.ErrAlreadyExists)
		return err
	}

	err = svc.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region})
	if err != nil {
		return fmt.Errorf("failed to create bucket '%s': %w", name, err)
	}

	return nil
}

func (svc *storageSvc) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "list-buckets")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	buckets, err := svc.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	infos := make([]BucketInfo, 0, len(buckets))
	for _, b := range buckets {
		created := b.CreationDate
		infos = append(infos, BucketInfo{Name: b.Name, CreationDate: &created})
	}

	return infos, nil
}

func (svc *storageSvc) BucketInfo(ctx context.Context, name string) (*BucketInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-bucket-info")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	exists, err := svc.client.BucketExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = fmt.Errorf("bucket '%s' does not exist: %w", name, catalog.ErrNotFound)
		return nil, err
	}

	buckets, err := svc.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	for _, b := range buckets {
		if b.Name == name {
			created := b.CreationDate
			return &BucketInfo{Name: b.Name, CreationDate: &created}, nil
		}
	}

	return &BucketInfo{Name: name}, nil
}

func (svc *storageSvc) DeleteBucket(ctx context.Context, name string) error {
	var err error
	ctx, span := tracer.Start(ctx, "delete-bucket")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return err
	}

	exists, err := svc.client.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = fmt.Errorf("bucket '%s' does not exist: %w", name, catalog.ErrNotFound)
		return err
	}

	// deletion only allowed for empty buckets
	objects := svc.client.ListObjects(ctx, name, minio.ListObjectsOptions{Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			err = fmt.Errorf("failed to list objects in bucket '%s': %w", name, obj.Err)
			return err
		}
		err = fmt.Errorf("bucket '%s' is not empty: %w", name, catalog.ErrValidation)
		return err
	}

	err = svc.client.RemoveBucket(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete bucket '%s': %w", name, err)
	}

	return nil
}

func (svc *storageSvc) UploadObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "upload-object")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = svc.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object '%s': %w", key, err)
	}

	return svc.statObject(ctx, bucket, key)
}

func (svc *storageSvc) DownloadObject(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "download-object")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, nil, err
	}

	info, err := svc.statObject(ctx, bucket, key)
	if err != nil {
		return nil, nil, err
	}

	obj, err := svc.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to download object '%s': %w", key, err)
	}

	return obj, info, nil
}

func (svc *storageSvc) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "list-objects")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	exists, err := svc.client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		err = fmt.Errorf("bucket '%s' does not exist: %w", bucket, catalog.ErrNotFound)
		return nil, err
	}

	infos := []ObjectInfo{}
	for obj := range svc.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			err = fmt.Errorf("failed to list objects in bucket '%s': %w", bucket, obj.Err)
			return nil, err
		}
		modified := obj.LastModified
		infos = append(infos, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: &modified,
		})
	}

	return infos, nil
}

func (svc *storageSvc) ObjectMetadata(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "get-object-metadata")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	var info *ObjectInfo
	info, err = svc.statObject(ctx, bucket, key)
	return info, err
}

func (svc *storageSvc) DeleteObject(ctx context.Context, bucket, key string) error {
	var err error
	ctx, span := tracer.Start(ctx, "delete-object")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return err
	}

	if _, err = svc.statObject(ctx, bucket, key); err != nil {
		return err
	}

	err = svc.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}

	return nil
}

func (svc *storageSvc) PresignedUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "presigned-upload-url")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return "", err
	}

	u, err := svc.client.PresignedPutObject(ctx, bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload url: %w", err)
	}

	return u.String(), nil
}

func (svc *storageSvc) PresignedDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "presigned-download-url")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return "", err
	}

	if _, err = svc.statObject(ctx, bucket, key); err != nil {
		return "", err
	}

	u, err := svc.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download url: %w", err)
	}

	return u.String(), nil
}

func (svc *storageSvc) Configured() bool {
	return svc.client != nil
}

func (svc *storageSvc) CheckConnection(ctx context.Context) bool {
	if svc.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := svc.client.ListBuckets(ctx)
	return err == nil
}

func (svc *storageSvc) statObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	stat, err := svc.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("object '%s' not found in bucket '%s': %w", key, bucket, catalog.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object '%s': %w", key, err)
	}

	modified := stat.LastModified
	return &ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: &modified,
		ContentType:  stat.ContentType,
		Metadata:     stat.UserMetadata,
	}, nil
}
