package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func createResource(t *testing.T, repo *catalogtest.Repository) *domain.Resource {
	t.Helper()
	ctx := context.Background()

	createOrg(t, repo, "noaa")
	pkg, err := repo.PackageCreate(ctx, catalog.PackageCreate{Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "noaa"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := repo.ResourceCreate(ctx, catalog.ResourceCreate{
		PackageID: pkg.ID, Name: "readings", URL: "s3://noaa/temps", Format: "s3",
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRetrieveResource(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	res := createResource(t, repo)

	router := chi.NewRouter()
	router.Get("/resource/{id}", NewRetrieveResourceHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/resource/"+res.ID, nil))
	is.Equal(rw.Code, http.StatusOK)

	fetched := domain.Resource{}
	is.NoErr(json.Unmarshal(rw.Body.Bytes(), &fetched))
	is.Equal(fetched.Name, "readings")

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/resource/ghost", nil))
	is.Equal(rw.Code, http.StatusNotFound)
}

func TestPatchResource(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	res := createResource(t, repo)

	router := chi.NewRouter()
	router.Patch("/resource/{id}", NewPatchResourceHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/resource/"+res.ID,
		bytes.NewBufferString(`{"url":"s3://noaa/temps-v2"}`)))
	is.Equal(rw.Code, http.StatusOK)

	stored, err := repo.ResourceShow(context.Background(), res.ID)
	is.NoErr(err)
	is.Equal(stored.URL, "s3://noaa/temps-v2")
	is.Equal(stored.Name, "readings") // untouched
}

func TestDeleteResourceByNameRoute(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	res := createResource(t, repo)

	router := chi.NewRouter()
	router.Delete("/resource/{datasetID}/{resourceName}", NewDeleteResourceByNameHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodDelete, "/resource/ocean-temps/readings", nil))
	is.Equal(rw.Code, http.StatusOK)

	_, err := repo.ResourceShow(context.Background(), res.ID)
	is.True(err != nil)
}

func TestSearchResourcesRoute(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createResource(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/search/resources?format=s3", nil)
	rw := httptest.NewRecorder()

	NewSearchResourcesHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusOK)

	result := catalog.ResourceSearchResult{}
	is.NoErr(json.Unmarshal(rw.Body.Bytes(), &result))
	is.Equal(result.Count, 1)
	is.Equal(result.Results[0].Name, "readings")
}
