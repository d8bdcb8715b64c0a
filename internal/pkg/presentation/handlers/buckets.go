package handlers

import (
	"net/http"
	"net/url"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/storage"
)

type createBucketRequest struct {
	BucketName string `json:"bucket_name"`
	Region     string `json:"region,omitempty"`
}

func NewCreateBucketHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "create-bucket")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		req := createBucketRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.BucketName == "" {
			writeDetail(w, http.StatusBadRequest, "bucket_name is required")
			return
		}

		err = svc.CreateBucket(ctx, req.BucketName, req.Region)
		if err != nil {
			log.Error().Err(err).Msg("failed to create bucket")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"message": "Bucket created successfully", "bucket_name": req.BucketName})
	})
}

func NewListBucketsHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "list-buckets")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		buckets, err := svc.ListBuckets(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to list buckets")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"buckets": buckets})
	})
}

func NewBucketInfoHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "get-bucket-info")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, _ := url.QueryUnescape(chi.URLParam(r, "bucket"))
		if bucket == "" {
			writeDetail(w, http.StatusBadRequest, "no bucket name supplied")
			return
		}

		info, err := svc.BucketInfo(ctx, bucket)
		if err != nil {
			log.Error().Err(err).Msg("failed to get bucket info")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, info)
	})
}

func NewDeleteBucketHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-bucket")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, _ := url.QueryUnescape(chi.URLParam(r, "bucket"))
		if bucket == "" {
			writeDetail(w, http.StatusBadRequest, "no bucket name supplied")
			return
		}

		err = svc.DeleteBucket(ctx, bucket)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete bucket")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Bucket deleted successfully"})
	})
}
