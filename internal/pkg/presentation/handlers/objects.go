package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/storage"
)

const defaultPresignExpiry = time.Hour

func objectParams(w http.ResponseWriter, r *http.Request) (bucket, key string, ok bool) {
	bucket, _ = url.QueryUnescape(chi.URLParam(r, "bucket"))
	key, _ = url.QueryUnescape(chi.URLParam(r, "*"))

	if bucket == "" || key == "" {
		writeDetail(w, http.StatusBadRequest, "bucket name and object key are required")
		return "", "", false
	}
	return bucket, key, true
}

// NewUploadObjectHandler stores the request body as an object. The key
// is the remainder of the request path below the bucket.
func NewUploadObjectHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "upload-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, key, ok := objectParams(w, r)
		if !ok {
			return
		}

		info, err := svc.UploadObject(ctx, bucket, key, r.Body, r.ContentLength, r.Header.Get("Content-Type"))
		if err != nil {
			log.Error().Err(err).Msg("failed to upload object")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, info)
	})
}

func NewDownloadObjectHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "download-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, key, ok := objectParams(w, r)
		if !ok {
			return
		}

		body, info, err := svc.DownloadObject(ctx, bucket, key)
		if err != nil {
			log.Error().Err(err).Msg("failed to download object")
			writeError(w, err)
			return
		}
		defer body.Close()

		if info.ContentType != "" {
			w.Header().Add("Content-Type", info.ContentType)
		}
		w.Header().Add("Content-Length", strconv.FormatInt(info.Size, 10))
		io.Copy(w, body)
	})
}

func NewListObjectsHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "list-objects")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, _ := url.QueryUnescape(chi.URLParam(r, "bucket"))
		if bucket == "" {
			writeDetail(w, http.StatusBadRequest, "no bucket name supplied")
			return
		}

		objects, err := svc.ListObjects(ctx, bucket, r.URL.Query().Get("prefix"))
		if err != nil {
			log.Error().Err(err).Msg("failed to list objects")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"objects": objects})
	})
}

func NewObjectMetadataHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "get-object-metadata")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, key, ok := objectParams(w, r)
		if !ok {
			return
		}

		info, err := svc.ObjectMetadata(ctx, bucket, key)
		if err != nil {
			log.Error().Err(err).Msg("failed to get object metadata")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, info)
	})
}

func NewDeleteObjectHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, key, ok := objectParams(w, r)
		if !ok {
			return
		}

		err = svc.DeleteObject(ctx, bucket, key)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete object")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Object deleted successfully"})
	})
}

// NewPresignedURLHandler generates a presigned upload or download URL
// depending on the operation query parameter.
func NewPresignedURLHandler(logger zerolog.Logger, svc storage.StorageService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "generate-presigned-url")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		bucket, key, ok := objectParams(w, r)
		if !ok {
			return
		}

		expiry := defaultPresignExpiry
		if s := r.URL.Query().Get("expiry_seconds"); s != "" {
			seconds, convErr := strconv.Atoi(s)
			if convErr != nil || seconds <= 0 {
				writeDetail(w, http.StatusBadRequest, "expiry_seconds must be a positive integer")
				return
			}
			expiry = time.Duration(seconds) * time.Second
		}

		operation := r.URL.Query().Get("operation")

		var presigned string
		switch operation {
		case "upload":
			presigned, err = svc.PresignedUploadURL(ctx, bucket, key, expiry)
		case "download", "":
			presigned, err = svc.PresignedDownloadURL(ctx, bucket, key, expiry)
		default:
			writeDetail(w, http.StatusBadRequest, "operation must be 'upload' or 'download'")
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to generate presigned url")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"url":            presigned,
			"expiry_seconds": int(expiry.Seconds()),
		})
	})
}
