package handlers

import (
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/rs/zerolog"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/status"
)

func NewStatusHandler(logger zerolog.Logger, svc status.StatusService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "get-status")
		defer span.End()

		_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		writeJSON(w, http.StatusOK, svc.Status(ctx))
	})
}

func NewMetricsHandler(logger zerolog.Logger, svc status.StatusService) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "get-metrics")
		defer span.End()

		_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		writeJSON(w, http.StatusOK, svc.Metrics(ctx))
	})
}
