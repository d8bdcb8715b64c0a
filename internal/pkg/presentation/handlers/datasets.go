package handlers

import (
	"net/http"
	"net/url"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/datasets"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

func NewCreateDatasetHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "create-dataset")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := datasets.DatasetRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" || req.OwnerOrg == "" {
			writeDetail(w, http.StatusBadRequest, "name, title and owner_org are required")
			return
		}

		id, err := datasets.NewDatasetService(repo).Create(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to create dataset")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func NewUpdateDatasetHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {
	return newDatasetMutationHandler(logger, catalogs, "update-dataset", false)
}

func NewPatchDatasetHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {
	return newDatasetMutationHandler(logger, catalogs, "patch-dataset", true)
}

func newDatasetMutationHandler(logger zerolog.Logger, catalogs *catalog.Catalogs, spanName string, partial bool) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), spanName)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		id, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if id == "" {
			writeDetail(w, http.StatusBadRequest, "no dataset id supplied")
			return
		}

		upd := datasets.DatasetUpdate{}
		if !decodeBody(w, r, &upd) {
			return
		}

		svc := datasets.NewDatasetService(repo)

		var updatedID string
		if partial {
			updatedID, err = svc.Patch(ctx, id, upd)
		} else {
			updatedID, err = svc.Update(ctx, id, upd)
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to %s", spanName)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": updatedID, "message": "Dataset updated successfully"})
	})
}

func NewDeleteDatasetHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-dataset")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		name, _ := url.QueryUnescape(chi.URLParam(r, "name"))
		if name == "" {
			writeDetail(w, http.StatusBadRequest, "no dataset name supplied")
			return
		}

		err = datasets.NewDatasetService(repo).Delete(ctx, name)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete dataset")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Dataset deleted successfully"})
	})
}
