package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/sources"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/status")

const Version = "0.3.0"

// Config carries the identity and integration settings surfaced by the
// status endpoint and the metrics reporter.
type Config struct {
	Organization    string
	EPName          string
	LocalBackend    string
	PreCKANEnabled  bool
	KafkaHost       string
	KafkaPort       int
	MetricsEndpoint string
	MetricsInterval time.Duration
	IsPublic        bool
}

// Snapshot is the status document returned by GET /status.
type Snapshot struct {
	APIVersion       string `json:"api_version"`
	Organization     string `json:"organization,omitempty"`
	EPName           string `json:"ep_name,omitempty"`
	LocalBackend     string `json:"local_catalog_backend"`
	BackendConnected bool   `json:"backend_connected"`
	PreCKANEnabled   bool   `json:"pre_ckan_enabled"`
	PreCKANConnected *bool  `json:"pre_ckan_connected,omitempty"`
	KafkaEnabled     bool   `json:"kafka_enabled"`
	KafkaHost        string `json:"kafka_host,omitempty"`
	KafkaPort        int    `json:"kafka_port,omitempty"`
	KafkaConnected   *bool  `json:"kafka_connected,omitempty"`
	S3Enabled        bool   `json:"s3_enabled"`
	S3Connected      *bool  `json:"s3_connected,omitempty"`
	MetricsEndpoint  string `json:"metrics_endpoint,omitempty"`
	IsPublic         bool   `json:"is_public"`
}

// Metrics is the periodic report, logged locally and optionally posted
// to the configured collector.
type Metrics struct {
	MemAllocMB   float64  `json:"mem_alloc_mb"`
	MemSysMB     float64  `json:"mem_sys_mb"`
	NumGoroutine int      `json:"num_goroutine"`
	Version      string   `json:"version"`
	Organization string   `json:"organization,omitempty"`
	EPName       string   `json:"ep_name,omitempty"`
	NumDatasets  int      `json:"num_datasets"`
	NumServices  int      `json:"num_services"`
	Services     []string `json:"services"`
	Timestamp    string   `json:"timestamp"`
}

// HealthChecker is anything that can report reachability.
type HealthChecker interface {
	Configured() bool
	CheckConnection(ctx context.Context) bool
}

// StatusService reports the health of the catalog backends and the
// integrations, and runs the periodic metrics reporter.
type StatusService interface {
	Status(ctx context.Context) Snapshot
	Metrics(ctx context.Context) Metrics
	Start()
	Shutdown()
}

func NewStatusService(ctx context.Context, logger zerolog.Logger, cfg Config, catalogs *catalog.Catalogs, s3 HealthChecker) StatusService {
	svc := &statusSvc{
		ctx:      ctx,
		log:      logger,
		cfg:      cfg,
		catalogs: catalogs,
		s3:       s3,
	}
	svc.keepRunning.Store(true)
	return svc
}

type statusSvc struct {
	ctx      context.Context
	log      zerolog.Logger
	cfg      Config
	catalogs *catalog.Catalogs
	s3       HealthChecker

	// written by Shutdown, read by the reporter goroutine
	keepRunning atomic.Bool
}

func (svc *statusSvc) Status(ctx context.Context) Snapshot {
	ctx, span := tracer.Start(ctx, "get-status")
	defer span.End()

	snap := Snapshot{
		APIVersion:       Version,
		Organization:     svc.cfg.Organization,
		EPName:           svc.cfg.EPName,
		LocalBackend:     svc.cfg.LocalBackend,
		BackendConnected: svc.catalogs.Local().CheckHealth(ctx),
		PreCKANEnabled:   svc.cfg.PreCKANEnabled,
		KafkaEnabled:     svc.cfg.KafkaHost != "",
		KafkaHost:        svc.cfg.KafkaHost,
		KafkaPort:        svc.cfg.KafkaPort,
		S3Enabled:        svc.s3 != nil && svc.s3.Configured(),
		MetricsEndpoint:  svc.cfg.MetricsEndpoint,
		IsPublic:         svc.cfg.IsPublic,
	}

	if svc.cfg.PreCKANEnabled {
		connected := svc.catalogs.Pre() != nil && svc.catalogs.Pre().CheckHealth(ctx)
		snap.PreCKANConnected = &connected
	}

	if snap.KafkaEnabled {
		connected := checkKafka(ctx, svc.cfg.KafkaHost, svc.cfg.KafkaPort)
		snap.KafkaConnected = &connected
	}

	if snap.S3Enabled {
		connected := svc.s3.CheckConnection(ctx)
		snap.S3Connected = &connected
	}

	return snap
}

// checkKafka dials the broker and closes the connection again. Good
// enough as a reachability probe, no topic metadata needed.
func checkKafka(ctx context.Context, host string, port int) bool {
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (svc *statusSvc) Metrics(ctx context.Context) Metrics {
	ctx, span := tracer.Start(ctx, "collect-metrics")
	defer span.End()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := Metrics{
		MemAllocMB:   float64(mem.Alloc) / (1024 * 1024),
		MemSysMB:     float64(mem.Sys) / (1024 * 1024),
		NumGoroutine: runtime.NumGoroutine(),
		Version:      Version,
		Organization: svc.cfg.Organization,
		EPName:       svc.cfg.EPName,
		Services:     []string{},
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	repo := svc.catalogs.Local()

	if result, err := repo.PackageSearch(ctx, catalog.SearchParams{Query: catalog.MatchAll, Rows: 0}); err == nil {
		m.NumDatasets = result.Count
	} else {
		svc.log.Error().Err(err).Msg("error counting datasets")
	}

	result, err := repo.PackageSearch(ctx, catalog.SearchParams{
		Query:       catalog.MatchAll,
		FilterQuery: []string{"owner_org:" + sources.ServicesOrg},
		Rows:        1000,
	})
	if err != nil {
		svc.log.Error().Err(err).Msg("error counting services")
		return m
	}

	m.NumServices = result.Count
	for _, pkg := range result.Results {
		m.Services = append(m.Services, pkg.Title)
	}

	return m
}

func (svc *statusSvc) Start() {
	svc.log.Info().Msg("starting metrics reporter")
	go svc.run()
}

func (svc *statusSvc) Shutdown() {
	svc.log.Info().Msg("shutting down metrics reporter")
	svc.keepRunning.Store(false)
}

func (svc *statusSvc) run() {
	interval := svc.cfg.MetricsInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	nextReportTime := time.Now()

	for svc.keepRunning.Load() {
		if time.Now().After(nextReportTime) {
			svc.report()
			nextReportTime = time.Now().Add(interval)
		}

		time.Sleep(1 * time.Second)
	}

	svc.log.Info().Msg("metrics reporter exiting")
}

func (svc *statusSvc) report() {
	var err error
	ctx, span := tracer.Start(svc.ctx, "report-metrics")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	metrics := svc.Metrics(ctx)

	payload, err := json.Marshal(metrics)
	if err != nil {
		svc.log.Error().Err(err).Msg("error collecting metrics")
		return
	}

	svc.log.Info().RawJSON("metrics", payload).Msg("system metrics")

	if !svc.cfg.IsPublic || svc.cfg.MetricsEndpoint == "" {
		return
	}

	err = postMetrics(ctx, svc.cfg.MetricsEndpoint, payload)
	if err != nil {
		svc.log.Error().Err(err).Msg("error posting metrics")
		return
	}

	svc.log.Info().Msgf("posted metrics to %s", svc.cfg.MetricsEndpoint)
}

func postMetrics(ctx context.Context, endpoint string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("metrics endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
