package main

import (
	"context"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/federation"
	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/seed"
	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/status"
	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/storage"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/clients/pelican"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/presentation"
)

const serviceName = "ndp-ep"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	log.Info().Msgf("Starting up %s ...", serviceName)

	catalogs, err := catalog.NewCatalogs(ctx, catalogConfig(log))
	if err != nil {
		log.Fatal().Msgf("failed to configure catalogs, shutting down... %s", err.Error())
	}

	store, err := storage.NewStorageService(ctx, storageConfig(log))
	if err != nil {
		log.Fatal().Msgf("failed to connect to object storage: %s", err.Error())
	}

	var pelicanClient *pelican.Client
	if federationURL := env.GetVariableOrDefault(log, "PELICAN_FEDERATION_URL", ""); federationURL != "" {
		pelicanClient = pelican.New(federationURL)
	}
	fed := federation.NewFederationService(pelicanClient, catalogs.Local())

	stat := status.NewStatusService(ctx, log, statusConfig(log), catalogs, store)
	stat.Start()
	defer stat.Shutdown()

	if seedFile := env.GetVariableOrDefault(log, "SEED_FILE", ""); seedFile != "" {
		seedData, err := seed.Load(seedFile)
		if err != nil {
			log.Error().Err(err).Msg("failed to load seed file")
		} else if err := seed.Apply(ctx, catalogs.Local(), seedData); err != nil {
			log.Error().Err(err).Msg("failed to apply seed data")
		}
	}

	port := env.GetVariableOrDefault(log, "SERVICE_PORT", "8001")

	api := presentation.NewAPI(ctx, chi.NewRouter(), catalogs, store, fed, stat)

	err = api.Start(port)
	if err != nil {
		log.Fatal().Msgf("failed to start router: %s", err.Error())
	}
}

func catalogConfig(log zerolog.Logger) catalog.Config {
	return catalog.Config{
		LocalBackend: env.GetVariableOrDefault(log, "LOCAL_CATALOG_BACKEND", "ckan"),

		CKANURL:       env.GetVariableOrDefault(log, "CKAN_URL", "http://localhost:5000"),
		CKANAPIKey:    env.GetVariableOrDefault(log, "CKAN_API_KEY", ""),
		CKANVerifySSL: env.GetVariableOrDefault(log, "CKAN_VERIFY_SSL", "true") != "false",

		GlobalCKANURL: env.GetVariableOrDefault(log, "CKAN_GLOBAL_URL", "https://chacana.nationaldataplatform.org"),

		PreCKANURL:       env.GetVariableOrDefault(log, "PRE_CKAN_URL", ""),
		PreCKANAPIKey:    env.GetVariableOrDefault(log, "PRE_CKAN_API_KEY", ""),
		PreCKANVerifySSL: env.GetVariableOrDefault(log, "PRE_CKAN_VERIFY_SSL", "true") != "false",

		MongoConnectionString: env.GetVariableOrDefault(log, "MONGODB_CONNECTION_STRING", "mongodb://localhost:27017"),
		MongoDatabase:         env.GetVariableOrDefault(log, "MONGODB_DATABASE", "ndp_catalog"),
	}
}

func storageConfig(log zerolog.Logger) storage.Config {
	return storage.Config{
		Endpoint:  env.GetVariableOrDefault(log, "S3_ENDPOINT", ""),
		AccessKey: env.GetVariableOrDefault(log, "S3_ACCESS_KEY", ""),
		SecretKey: env.GetVariableOrDefault(log, "S3_SECRET_KEY", ""),
		UseSSL:    env.GetVariableOrDefault(log, "S3_USE_SSL", "false") == "true",
		Region:    env.GetVariableOrDefault(log, "S3_REGION", ""),
	}
}

func statusConfig(log zerolog.Logger) status.Config {
	kafkaPort, _ := strconv.Atoi(env.GetVariableOrDefault(log, "KAFKA_PORT", "9092"))
	intervalSeconds, _ := strconv.Atoi(env.GetVariableOrDefault(log, "METRICS_INTERVAL_SECONDS", "600"))

	return status.Config{
		Organization:    env.GetVariableOrDefault(log, "ORGANIZATION", ""),
		EPName:          env.GetVariableOrDefault(log, "EP_NAME", ""),
		LocalBackend:    env.GetVariableOrDefault(log, "LOCAL_CATALOG_BACKEND", "ckan"),
		PreCKANEnabled:  env.GetVariableOrDefault(log, "PRE_CKAN_ENABLED", "false") == "true",
		KafkaHost:       env.GetVariableOrDefault(log, "KAFKA_HOST", ""),
		KafkaPort:       kafkaPort,
		MetricsEndpoint: env.GetVariableOrDefault(log, "METRICS_ENDPOINT", ""),
		MetricsInterval: time.Duration(intervalSeconds) * time.Second,
		IsPublic:        env.GetVariableOrDefault(log, "IS_PUBLIC", "false") == "true",
	}
}
