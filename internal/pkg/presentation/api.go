package presentation

import (
	"compress/flate"
	"context"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/federation"
	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/status"
	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/storage"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/presentation/handlers"
)

type API interface {
	Start(port string) error
	Router() chi.Router
}

type ndpAPI struct {
	router chi.Router
	log    zerolog.Logger
}

// NewAPI wires all catalog, storage, federation and status endpoints
// onto the given router.
func NewAPI(ctx context.Context, r chi.Router, catalogs *catalog.Catalogs, store storage.StorageService, fed federation.FederationService, stat status.StatusService) API {
	log := logging.GetFromContext(ctx)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(
		flate.DefaultCompression,
		"application/json", "application/octet-stream",
	)
	r.Use(compressor.Handler)
	r.Use(otelchi.Middleware("ndp-ep", otelchi.WithChiRoutes(r)))

	a := &ndpAPI{
		router: r,
		log:    log,
	}

	a.addCatalogHandlers(r, log, catalogs)
	a.addStorageHandlers(r, log, store)
	a.addFederationHandlers(r, log, fed)
	a.addStatusHandlers(r, log, stat)
	a.addProbeHandlers(r)

	return a
}

func (a *ndpAPI) Start(port string) error {
	a.log.Info().Msgf("Starting ndp-ep on port:%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *ndpAPI) Router() chi.Router {
	return a.router
}

func (a *ndpAPI) addCatalogHandlers(r chi.Router, log zerolog.Logger, catalogs *catalog.Catalogs) {
	r.Post("/organization", handlers.NewCreateOrganizationHandler(log, catalogs))
	r.Get("/organization", handlers.NewListOrganizationsHandler(log, catalogs))
	r.Delete("/organization/{name}", handlers.NewDeleteOrganizationHandler(log, catalogs))

	r.Post("/dataset", handlers.NewCreateDatasetHandler(log, catalogs))
	r.Put("/dataset/{id}", handlers.NewUpdateDatasetHandler(log, catalogs))
	r.Patch("/dataset/{id}", handlers.NewPatchDatasetHandler(log, catalogs))
	r.Delete("/dataset/{name}", handlers.NewDeleteDatasetHandler(log, catalogs))

	r.Post("/s3", handlers.NewRegisterS3Handler(log, catalogs))
	r.Put("/s3/{id}", handlers.NewUpdateS3Handler(log, catalogs, false))
	r.Patch("/s3/{id}", handlers.NewUpdateS3Handler(log, catalogs, true))

	r.Post("/kafka", handlers.NewRegisterKafkaHandler(log, catalogs))
	r.Put("/kafka/{id}", handlers.NewUpdateKafkaHandler(log, catalogs, false))
	r.Patch("/kafka/{id}", handlers.NewUpdateKafkaHandler(log, catalogs, true))

	r.Post("/url", handlers.NewRegisterURLHandler(log, catalogs))
	r.Put("/url/{id}", handlers.NewUpdateURLHandler(log, catalogs, false))
	r.Patch("/url/{id}", handlers.NewUpdateURLHandler(log, catalogs, true))

	r.Post("/services", handlers.NewRegisterServiceHandler(log, catalogs))
	r.Put("/services/{id}", handlers.NewUpdateServiceHandler(log, catalogs, false))
	r.Patch("/services/{id}", handlers.NewUpdateServiceHandler(log, catalogs, true))

	redirect := handlers.NewServiceRedirectHandler(log, catalogs)
	r.HandleFunc("/services/redirect/{id}", redirect)
	r.HandleFunc("/services/redirect/{id}/*", redirect)

	r.Get("/search", handlers.NewSearchDatasetsHandler(log, catalogs))
	r.Post("/search", handlers.NewSearchByTermsHandler(log, catalogs))
	r.Get("/search/resources", handlers.NewSearchResourcesHandler(log, catalogs))

	r.Get("/resource/{id}", handlers.NewRetrieveResourceHandler(log, catalogs))
	r.Patch("/resource/{id}", handlers.NewPatchResourceHandler(log, catalogs))
	r.Delete("/resource/{id}", handlers.NewDeleteResourceHandler(log, catalogs))
	r.Delete("/resource/{datasetID}/{resourceName}", handlers.NewDeleteResourceByNameHandler(log, catalogs))
}

func (a *ndpAPI) addStorageHandlers(r chi.Router, log zerolog.Logger, store storage.StorageService) {
	r.Route("/s3/buckets", func(r chi.Router) {
		r.Post("/", handlers.NewCreateBucketHandler(log, store))
		r.Get("/", handlers.NewListBucketsHandler(log, store))
		r.Get("/{bucket}", handlers.NewBucketInfoHandler(log, store))
		r.Delete("/{bucket}", handlers.NewDeleteBucketHandler(log, store))

		r.Get("/{bucket}/objects", handlers.NewListObjectsHandler(log, store))
		r.Put("/{bucket}/objects/*", handlers.NewUploadObjectHandler(log, store))
		r.Get("/{bucket}/objects/*", handlers.NewDownloadObjectHandler(log, store))
		r.Delete("/{bucket}/objects/*", handlers.NewDeleteObjectHandler(log, store))
		r.Get("/{bucket}/metadata/*", handlers.NewObjectMetadataHandler(log, store))
		r.Get("/{bucket}/presigned/*", handlers.NewPresignedURLHandler(log, store))
	})
}

func (a *ndpAPI) addFederationHandlers(r chi.Router, log zerolog.Logger, fed federation.FederationService) {
	r.Get("/pelican/list", handlers.NewBrowseFederationHandler(log, fed))
	r.Get("/pelican/stat", handlers.NewStatFederatedFileHandler(log, fed))
	r.Get("/pelican/download", handlers.NewDownloadFederatedFileHandler(log, fed))
	r.Post("/pelican/import", handlers.NewImportFederatedFileHandler(log, fed))
}

func (a *ndpAPI) addStatusHandlers(r chi.Router, log zerolog.Logger, stat status.StatusService) {
	r.Get("/status", handlers.NewStatusHandler(log, stat))
	r.Get("/status/metrics", handlers.NewMetricsHandler(log, stat))
}

func (a *ndpAPI) addProbeHandlers(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		w.Write([]byte(`"API is running successfully."`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
