package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/datasets"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

func NewRetrieveResourceHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-resource")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		id, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if id == "" {
			writeDetail(w, http.StatusBadRequest, "no resource id supplied")
			return
		}

		res, err := datasets.NewDatasetService(repo).GetResource(ctx, id)
		if err != nil {
			log.Error().Err(err).Msg("failed to retrieve resource")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	})
}

type resourcePatchRequest struct {
	Name        *string `json:"name,omitempty"`
	URL         *string `json:"url,omitempty"`
	Description *string `json:"description,omitempty"`
	Format      *string `json:"format,omitempty"`
}

func NewPatchResourceHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "patch-resource")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		id, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if id == "" {
			writeDetail(w, http.StatusBadRequest, "no resource id supplied")
			return
		}

		req := resourcePatchRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := datasets.NewDatasetService(repo).PatchResource(ctx, catalog.ResourcePatch{
			ID:          id,
			Name:        req.Name,
			URL:         req.URL,
			Description: req.Description,
			Format:      req.Format,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to patch resource")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	})
}

func NewDeleteResourceHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-resource")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		id, _ := url.QueryUnescape(chi.URLParam(r, "id"))
		if id == "" {
			writeDetail(w, http.StatusBadRequest, "no resource id supplied")
			return
		}

		err = datasets.NewDatasetService(repo).DeleteResource(ctx, id)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete resource")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Resource deleted successfully"})
	})
}

// NewDeleteResourceByNameHandler deletes a resource addressed by its
// parent dataset plus resource name instead of by id.
func NewDeleteResourceByNameHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-resource-by-name")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		datasetID, _ := url.QueryUnescape(chi.URLParam(r, "datasetID"))
		resourceName, _ := url.QueryUnescape(chi.URLParam(r, "resourceName"))

		if datasetID == "" || resourceName == "" {
			writeDetail(w, http.StatusBadRequest, "dataset id and resource name are required")
			return
		}

		err = datasets.NewDatasetService(repo).DeleteResourceByName(ctx, datasetID, resourceName)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete resource")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Resource deleted successfully"})
	})
}

func NewSearchResourcesHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "search-resources")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		q := r.URL.Query()

		params := catalog.ResourceSearchParams{
			Query:       q.Get("query"),
			Name:        q.Get("name"),
			URL:         q.Get("url"),
			Format:      q.Get("format"),
			Description: q.Get("description"),
		}
		params.Limit, _ = strconv.Atoi(q.Get("limit"))
		params.Offset, _ = strconv.Atoi(q.Get("offset"))

		result, err := datasets.NewDatasetService(repo).SearchResources(ctx, params)
		if err != nil {
			log.Error().Err(err).Msg("failed to search resources")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	})
}
