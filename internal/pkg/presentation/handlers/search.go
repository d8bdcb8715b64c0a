package handlers

import (
	"context"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/datasets"
	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

// fieldParams maps query parameters of the field based search onto the
// package fields they match against.
var fieldParams = map[string]string{
	"dataset_name":        "name",
	"dataset_title":       "title",
	"owner_org":           "owner_org",
	"dataset_description": "notes",
}

// NewSearchDatasetsHandler serves the field based dataset search. Field
// parameters narrow on a specific attribute, search_term matches
// anywhere in the serialized dataset.
func NewSearchDatasetsHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "search-datasets")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		q := r.URL.Query()

		terms := []string{}
		keys := []string{}

		for param, field := range fieldParams {
			if value := q.Get(param); value != "" {
				terms = append(terms, value)
				keys = append(keys, field)
			}
		}
		if term := q.Get("search_term"); term != "" {
			terms = append(terms, term)
			keys = append(keys, "null")
		}

		var results []domain.DataSource
		if len(terms) == 0 {
			results, err = allDatasets(ctx, repo)
		} else {
			results, err = datasets.SearchByTerms(ctx, repo, terms, keys)
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to search datasets")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, results)
	})
}

func allDatasets(ctx context.Context, repo catalog.DataCatalogRepository) ([]domain.DataSource, error) {
	result, err := repo.PackageSearch(ctx, catalog.SearchParams{Query: catalog.MatchAll, Rows: 1000})
	if err != nil {
		return nil, err
	}

	sources := make([]domain.DataSource, 0, len(result.Results))
	for _, pkg := range result.Results {
		sources = append(sources, domain.NewDataSource(pkg))
	}
	return sources, nil
}

type termsSearchRequest struct {
	Terms []string `json:"terms"`
	Keys  []string `json:"keys,omitempty"`
}

// NewSearchByTermsHandler serves the terms based search. Each term may
// carry a matching key for field scoped matching, the literal "null"
// meaning match anywhere.
func NewSearchByTermsHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "search-datasets-by-terms")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := termsSearchRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if len(req.Terms) == 0 {
			writeDetail(w, http.StatusBadRequest, "at least one search term is required")
			return
		}
		if len(req.Keys) > 0 && len(req.Keys) != len(req.Terms) {
			writeDetail(w, http.StatusBadRequest, "keys must match terms in length")
			return
		}

		results, err := datasets.SearchByTerms(ctx, repo, req.Terms, req.Keys)
		if err != nil {
			log.Error().Err(err).Msg("failed to search datasets by terms")
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, results)
	})
}
