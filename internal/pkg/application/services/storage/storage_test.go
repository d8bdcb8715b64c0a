package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

func TestConfigIsConfigured(t *testing.T) {
	is := is.New(t)

	is.True(!Config{}.IsConfigured())
	is.True(!Config{Endpoint: "minio:9000"}.IsConfigured())
	is.True(!Config{Endpoint: "minio:9000", AccessKey: "ak"}.IsConfigured())
	is.True(Config{Endpoint: "minio:9000", AccessKey: "ak", SecretKey: "sk"}.IsConfigured())
}

func TestUnconfiguredServiceFailsEveryOperation(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	svc, err := NewStorageService(ctx, Config{})
	is.NoErr(err)
	is.True(!svc.Configured())
	is.True(!svc.CheckConnection(ctx))

	err = svc.CreateBucket(ctx, "b", "")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.ListBuckets(ctx)
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.BucketInfo(ctx, "b")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	err = svc.DeleteBucket(ctx, "b")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.UploadObject(ctx, "b", "k", strings.NewReader("data"), 4, "")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, _, err = svc.DownloadObject(ctx, "b", "k")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.ListObjects(ctx, "b", "")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.ObjectMetadata(ctx, "b", "k")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	err = svc.DeleteObject(ctx, "b", "k")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.PresignedUploadURL(ctx, "b", "k", time.Hour)
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.PresignedDownloadURL(ctx, "b", "k", time.Hour)
	is.True(errors.Is(err, catalog.ErrUnavailable))
}

func TestNewStorageServiceConfigured(t *testing.T) {
	is := is.New(t)

	svc, err := NewStorageService(context.Background(), Config{
		Endpoint: "minio.local:9000", AccessKey: "ak", SecretKey: "sk",
	})
	is.NoErr(err)
	is.True(svc.Configured())
}
