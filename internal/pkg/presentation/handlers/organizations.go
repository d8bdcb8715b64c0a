package handlers

import (
	"net/http"
	"net/url"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/organizations"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

type organizationRequest struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func NewCreateOrganizationHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "create-organization")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := organizationRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" {
			writeDetail(w, http.StatusBadRequest, "name and title are required")
			return
		}

		org, err := organizations.NewOrganizationService(repo).Create(ctx, req.Name, req.Title, req.Description)
		if err != nil {
			log.Error().Err(err).Msg("failed to create organization")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": org.ID, "message": "Organization created successfully"})
	})
}

func NewListOrganizationsHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "list-organizations")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		allFields := r.URL.Query().Get("all_fields") == "true"

		list, err := organizations.NewOrganizationService(repo).List(ctx, allFields)
		if err != nil {
			log.Error().Err(err).Msg("failed to list organizations")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	})
}

func NewDeleteOrganizationHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "delete-organization")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		name, _ := url.QueryUnescape(chi.URLParam(r, "name"))
		if name == "" {
			writeDetail(w, http.StatusBadRequest, "no organization name supplied")
			return
		}

		err = organizations.NewOrganizationService(repo).Delete(ctx, name)
		if err != nil {
			log.Error().Err(err).Msg("failed to delete organization")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Organization deleted successfully"})
	})
}
