package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/sources"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

// writeRegistrationError maps service errors for the registration
// endpoints, which answer validation and duplicate name failures with
// 400 rather than 409.
func writeRegistrationError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrAlreadyExists) || errors.Is(err, catalog.ErrValidation) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, err)
}

func NewRegisterS3Handler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "register-s3-source")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := sources.S3Request{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" || req.OwnerOrg == "" || req.S3URL == "" {
			writeDetail(w, http.StatusBadRequest, "resource_name, resource_title, owner_org and resource_s3 are required")
			return
		}

		id, err := sources.NewSourceService(repo).AddS3(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to register s3 source")
			writeRegistrationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func NewUpdateS3Handler(logger zerolog.Logger, catalogs *catalog.Catalogs, partial bool) http.HandlerFunc {

	spanName := "update-s3-source"
	if partial {
		spanName = "patch-s3-source"
	}

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
			writeDetail(w, http.StatusBadRequest, "no source id supplied")
			return
		}

		upd := sources.S3Update{}
		if !decodeBody(w, r, &upd) {
			return
		}

		svc := sources.NewSourceService(repo)

		var updatedID string
		if partial {
			updatedID, err = svc.PatchS3(ctx, id, upd)
		} else {
			updatedID, err = svc.UpdateS3(ctx, id, upd)
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to %s", spanName)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": updatedID, "message": "S3 resource updated successfully"})
	})
}

func NewRegisterKafkaHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "register-kafka-source")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := sources.KafkaRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" || req.OwnerOrg == "" || req.Host == "" || req.Topic == "" {
			writeDetail(w, http.StatusBadRequest, "dataset_name, dataset_title, owner_org, kafka_host and kafka_topic are required")
			return
		}

		id, err := sources.NewSourceService(repo).AddKafka(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to register kafka source")
			writeRegistrationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func NewUpdateKafkaHandler(logger zerolog.Logger, catalogs *catalog.Catalogs, partial bool) http.HandlerFunc {

	spanName := "update-kafka-source"
	if partial {
		spanName = "patch-kafka-source"
	}

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
			writeDetail(w, http.StatusBadRequest, "no source id supplied")
			return
		}

		upd := sources.KafkaUpdate{}
		if !decodeBody(w, r, &upd) {
			return
		}

		svc := sources.NewSourceService(repo)

		var updatedID string
		if partial {
			updatedID, err = svc.PatchKafka(ctx, id, upd)
		} else {
			updatedID, err = svc.UpdateKafka(ctx, id, upd)
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to %s", spanName)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": updatedID, "message": "Kafka dataset updated successfully"})
	})
}

func NewRegisterURLHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "register-url-source")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := sources.URLRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" || req.OwnerOrg == "" || req.URL == "" {
			writeDetail(w, http.StatusBadRequest, "resource_name, resource_title, owner_org and resource_url are required")
			return
		}

		id, err := sources.NewSourceService(repo).AddURL(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to register url source")
			writeRegistrationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func NewUpdateURLHandler(logger zerolog.Logger, catalogs *catalog.Catalogs, partial bool) http.HandlerFunc {

	spanName := "update-url-source"
	if partial {
		spanName = "patch-url-source"
	}

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
			writeDetail(w, http.StatusBadRequest, "no source id supplied")
			return
		}

		upd := sources.URLUpdate{}
		if !decodeBody(w, r, &upd) {
			return
		}

		svc := sources.NewSourceService(repo)

		var updatedID string
		if partial {
			updatedID, err = svc.PatchURL(ctx, id, upd)
		} else {
			updatedID, err = svc.UpdateURL(ctx, id, upd)
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to %s", spanName)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": updatedID, "message": "URL resource updated successfully"})
	})
}

func NewRegisterServiceHandler(logger zerolog.Logger, catalogs *catalog.Catalogs) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		ctx, span := tracer.Start(r.Context(), "register-service")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		repo, err := repositoryFromRequest(r, catalogs)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		req := sources.ServiceRequest{}
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Name == "" || req.Title == "" || req.ServiceURL == "" {
			writeDetail(w, http.StatusBadRequest, "service_name, service_title and service_url are required")
			return
		}

		id, err := sources.NewSourceService(repo).RegisterService(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("failed to register service")
			writeRegistrationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
}

func NewUpdateServiceHandler(logger zerolog.Logger, catalogs *catalog.Catalogs, partial bool) http.HandlerFunc {

	spanName := "update-service"
	if partial {
		spanName = "patch-service"
	}

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
			writeDetail(w, http.StatusBadRequest, "no service id supplied")
			return
		}

		upd := sources.ServiceUpdate{}
		if !decodeBody(w, r, &upd) {
			return
		}

		svc := sources.NewSourceService(repo)

		var updatedID string
		if partial {
			updatedID, err = svc.PatchService(ctx, id, upd)
		} else {
			updatedID, err = svc.UpdateService(ctx, id, upd)
		}
		if err != nil {
			log.Error().Err(err).Msgf("failed to %s", spanName)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"id": updatedID, "message": "Service updated successfully"})
	})
}
