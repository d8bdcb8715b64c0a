package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func seedDatasets(t *testing.T, repo *catalogtest.Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.OrganizationCreate(ctx, catalog.OrganizationCreate{Name: "noaa", Title: "NOAA"})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"ocean-temps", "river-levels"} {
		_, err := repo.PackageCreate(ctx, catalog.PackageCreate{Name: name, Title: name, OwnerOrg: "noaa"})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func decodeDataSources(t *testing.T, rw *httptest.ResponseRecorder) []domain.DataSource {
	t.Helper()
	results := []domain.DataSource{}
	if err := json.Unmarshal(rw.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	return results
}

func TestSearchWithoutParamsReturnsEverything(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	seedDatasets(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rw := httptest.NewRecorder()

	NewSearchDatasetsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusOK)
	is.Equal(len(decodeDataSources(t, rw)), 2)
}

func TestSearchByDatasetName(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	seedDatasets(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/search?dataset_name=ocean", nil)
	rw := httptest.NewRecorder()

	NewSearchDatasetsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusOK)

	results := decodeDataSources(t, rw)
	is.Equal(len(results), 1)
	is.Equal(results[0].Name, "ocean-temps")
}

func TestSearchBySearchTerm(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	seedDatasets(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/search?search_term=river", nil)
	rw := httptest.NewRecorder()

	NewSearchDatasetsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusOK)

	results := decodeDataSources(t, rw)
	is.Equal(len(results), 1)
	is.Equal(results[0].Name, "river-levels")
}

func TestSearchByTermsPost(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	seedDatasets(t, repo)

	body := bytes.NewBufferString(`{"terms":["ocean"],"keys":["null"]}`)
	req := httptest.NewRequest(http.MethodPost, "/search", body)
	rw := httptest.NewRecorder()

	NewSearchByTermsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusOK)
	is.Equal(len(decodeDataSources(t, rw)), 1)
}

func TestSearchByTermsRequiresTerms(t *testing.T) {
	is, log, _, catalogs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"terms":[]}`))
	rw := httptest.NewRecorder()

	NewSearchByTermsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestSearchByTermsKeysLengthMismatch(t *testing.T) {
	is, log, _, catalogs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"terms":["a","b"],"keys":["null"]}`))
	rw := httptest.NewRecorder()

	NewSearchByTermsHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}
