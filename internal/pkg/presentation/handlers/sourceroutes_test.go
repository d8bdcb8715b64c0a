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
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func createOrg(t *testing.T, repo *catalogtest.Repository, name string) {
	t.Helper()
	_, err := repo.OrganizationCreate(context.Background(), catalog.OrganizationCreate{Name: name, Title: name})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRegisterS3Source(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	body := bytes.NewBufferString(`{
		"resource_name": "landsat-scenes",
		"resource_title": "Landsat Scenes",
		"owner_org": "noaa",
		"resource_s3": "s3://landsat/scenes"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/s3", body)
	rw := httptest.NewRecorder()

	NewRegisterS3Handler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusCreated)

	created := map[string]string{}
	is.NoErr(json.Unmarshal(rw.Body.Bytes(), &created))
	is.True(created["id"] != "")

	pkg, err := repo.PackageShow(context.Background(), created["id"])
	is.NoErr(err)
	is.Equal(pkg.Resources[0].Format, "s3")
}

func TestRegisterS3SourceMissingFields(t *testing.T) {
	is, log, _, catalogs := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/s3", bytes.NewBufferString(`{"resource_name": "incomplete"}`))
	rw := httptest.NewRecorder()

	NewRegisterS3Handler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestRegisterDuplicateS3SourceAnswers400(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	payload := `{"resource_name":"dup","resource_title":"Dup","owner_org":"noaa","resource_s3":"s3://b/k"}`
	handler := NewRegisterS3Handler(log, catalogs)

	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/s3", bytes.NewBufferString(payload)))
	is.Equal(rw.Code, http.StatusCreated)

	// registration routes answer duplicates with 400, not 409
	rw = httptest.NewRecorder()
	handler.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/s3", bytes.NewBufferString(payload)))
	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestRegisterKafkaSource(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	body := bytes.NewBufferString(`{
		"dataset_name": "sensor-stream",
		"dataset_title": "Sensor Stream",
		"owner_org": "noaa",
		"kafka_host": "broker.example.com",
		"kafka_port": 9092,
		"kafka_topic": "sensors"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/kafka", body)
	rw := httptest.NewRecorder()

	NewRegisterKafkaHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusCreated)
}

func TestRegisterURLSourceRejectsBadFileType(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	body := bytes.NewBufferString(`{
		"resource_name": "export",
		"resource_title": "Export",
		"owner_org": "noaa",
		"resource_url": "https://example.com/export",
		"file_type": "XML"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/url", body)
	rw := httptest.NewRecorder()

	NewRegisterURLHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestRegisterServiceRejectsForeignOrg(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")
	createOrg(t, repo, "services")

	body := bytes.NewBufferString(`{
		"service_name": "forecast-api",
		"service_title": "Forecast API",
		"owner_org": "noaa",
		"service_url": "https://forecast.example.com"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/services", body)
	rw := httptest.NewRecorder()

	NewRegisterServiceHandler(log, catalogs).ServeHTTP(rw, req)

	is.Equal(rw.Code, http.StatusBadRequest)
}

func TestPatchS3Source(t *testing.T) {
	is, log, repo, catalogs := setup(t)
	createOrg(t, repo, "noaa")

	handler := NewRegisterS3Handler(log, catalogs)
	rw := httptest.NewRecorder()
	handler.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/s3",
		bytes.NewBufferString(`{"resource_name":"scenes","resource_title":"Scenes","owner_org":"noaa","resource_s3":"s3://b/old"}`)))
	is.Equal(rw.Code, http.StatusCreated)

	created := map[string]string{}
	is.NoErr(json.Unmarshal(rw.Body.Bytes(), &created))

	router := chi.NewRouter()
	router.Patch("/s3/{id}", NewUpdateS3Handler(log, catalogs, true))

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPatch, "/s3/"+created["id"],
		bytes.NewBufferString(`{"resource_s3":"s3://b/new"}`)))
	is.Equal(rw.Code, http.StatusOK)

	pkg, err := repo.PackageShow(context.Background(), created["id"])
	is.NoErr(err)
	is.Equal(pkg.Resources[0].URL, "s3://b/new")
}
