package handlers

import (
	"io"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/federation"
)

func NewBrowseFederationHandler(logger zerolog.Logger, svc federation.FederationService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "browse-federation")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		dir := r.URL.Query().Get("path")
		if dir == "" {
			dir = "/"
		}

		files, err := svc.Browse(ctx, dir)
		if err != nil {
			log.Error().Err(err).Msg("failed to browse federation")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"path": dir, "files": files})
	})
}

func NewStatFederatedFileHandler(logger zerolog.Logger, svc federation.FederationService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "stat-federated-file")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		filePath := r.URL.Query().Get("path")
		if filePath == "" {
			writeDetail(w, http.StatusBadRequest, "path is required")
			return
		}

		info, err := svc.Stat(ctx, filePath)
		if err != nil {
			log.Error().Err(err).Msg("failed to stat federated file")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, info)
	})
}

func NewDownloadFederatedFileHandler(logger zerolog.Logger, svc federation.FederationService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "download-federated-file")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		filePath := r.URL.Query().Get("path")
		if filePath == "" {
			writeDetail(w, http.StatusBadRequest, "path is required")
			return
		}

		body, err := svc.Download(ctx, filePath)
		if err != nil {
			log.Error().Err(err).Msg("failed to download federated file")
			writeError(w, err)
			return
		}
		defer body.Close()

		w.Header().Add("Content-Type", "application/octet-stream")
		io.Copy(w, body)
	})
}

func NewImportFederatedFileHandler(logger zerolog.Logger, svc federation.FederationService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "import-federated-file")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		req := federation.ImportRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.PelicanURL == "" || req.PackageID == "" {
			writeDetail(w, http.StatusBadRequest, "pelican_url and package_id are required")
			return
		}

		res, err := svc.ImportResource(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to import federated file")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "resource": res})
	})
}
