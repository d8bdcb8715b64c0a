package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

func TestCreateDataset(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	body := bytes.NewBufferString(`{"name":"ocean-temps","title":"Ocean Temperatures","owner_org":"noaa"}`)
	req := httptest.NewRequest(http.MethodPost, "/dataset", body)
	rw := httptest.NewRecorder()

	NewCreateDatasetHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusCreated)

	created := map[string]string{}
	is.NoErr(json.Unmarshal(rw.Body.Bytes(), &created))
	is.True(created["id"] != "")
}

func TestCreateDatasetMissingFields(t *testing.T) {
	is, log, _, catalogs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/dataset", bytes.NewBufferString(`{"name":"incomplete"}`))
	rw := httptest.NewRecorder()

	NewCreateDatasetHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestCreateDatasetInvalidBody(t *testing.T) {
	is, log, _, catalogs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/dataset", bytes.NewBufferString("not json"))
	rw := httptest.NewRecorder()

	NewCreateDatasetHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestPatchDataset(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")
	ctx := context.Background()

	pkg, err := repo.PackageCreate(ctx, catalog.PackageCreate{Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "noaa"})
	is.NoErr(err)

	router := chi.NewRouter()
	router.Patch("/dataset/{id}", NewPatchDatasetHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/dataset/"+pkg.ID,
		bytes.NewBufferString(`{"title":"Sea Surface Temperatures"}`)))
	is.Equal(rw.Code, http.StatusOK)

	stored, err := repo.PackageShow(ctx, pkg.ID)
	is.NoErr(err)
	is.Equal(stored.Title, "Sea Surface Temperatures")
	is.Equal(stored.Name, "ocean-temps")
}

func TestPatchMissingDataset(t *testing.T) {
	is, log, _, catalogs := setup(t)

	router := chi.NewRouter()
	router.Patch("/dataset/{id}", NewPatchDatasetHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/dataset/ghost",
		bytes.NewBufferString(`{"title":"nope"}`)))
	is.Equal(rw.Code, http.StatusNotFound)
}

func TestDeleteDataset(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	_, err := repo.PackageCreate(context.Background(), catalog.PackageCreate{Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "noaa"})
	is.NoErr(err)

	router := chi.NewRouter()
	router.Delete("/dataset/{name}", NewDeleteDatasetHandler(log, catalogs))

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodDelete, "/dataset/ocean-temps", nil))
	is.Equal(rw.Code, http.StatusOK)

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodDelete, "/dataset/ocean-temps", nil))
	is.Equal(rw.Code, http.StatusNotFound)
}
