package federation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/clients/pelican"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/federation")

// FederationService browses a Pelican federation and imports federated
// files as catalog resources.
type FederationService interface {
	Browse(ctx context.Context, dir string) ([]pelican.FileInfo, error)
	Stat(ctx context.Context, filePath string) (*pelican.FileInfo, error)
	Download(ctx context.Context, filePath string) (io.ReadCloser, error)
	ImportResource(ctx context.Context, req ImportRequest) (*domain.Resource, error)
	CheckHealth(ctx context.Context) bool
}

// ImportRequest attaches a federated file to an existing package as a
// resource of format "pelican". Name defaults to the file name,
// description to a standard phrase naming the path.
type ImportRequest struct {
	PelicanURL  string `json:"pelican_url"`
	PackageID   string `json:"package_id"`
	Name        string `json:"resource_name,omitempty"`
	Description string `json:"resource_description,omitempty"`
}

// NewFederationService creates a federation service backed by the given
// Pelican client and the local catalog.
func NewFederationService(client *pelican.Client, repo catalog.DataCatalogRepository) FederationService {
	return &federationSvc{client: client, repo: repo}
}

type federationSvc struct {
	client *pelican.Client
	repo   catalog.DataCatalogRepository
}

func (svc *federationSvc) notConfigured() error {
	return fmt.Errorf("pelican federation is not configured: %w", catalog.ErrUnavailable)
}

// translate maps federation client failures onto the repository taxonomy
// so the presentation layer answers 404 for missing paths.
func translate(err error) error {
	if errors.Is(err, pelican.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, err.Error())
	}
	return err
}

func (svc *federationSvc) Browse(ctx context.Context, dir string) ([]pelican.FileInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "browse-federation")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	var files []pelican.FileInfo
	files, err = svc.client.List(ctx, dir)
	if err != nil {
		err = translate(err)
	}
	return files, err
}

func (svc *federationSvc) Stat(ctx context.Context, filePath string) (*pelican.FileInfo, error) {
	var err error
	ctx, span := tracer.Start(ctx, "stat-federated-file")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	var info *pelican.FileInfo
	info, err = svc.client.Stat(ctx, filePath)
	if err != nil {
		err = translate(err)
	}
	return info, err
}

func (svc *federationSvc) Download(ctx context.Context, filePath string) (io.ReadCloser, error) {
	var err error
	ctx, span := tracer.Start(ctx, "download-federated-file")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	var body io.ReadCloser
	body, err = svc.client.Read(ctx, filePath)
	if err != nil {
		err = translate(err)
	}
	return body, err
}

// pelicanPath extracts the federation relative path from a pelican://
// URL, i.e. pelican://<federation>/<path> becomes /<path>.
func pelicanPath(pelicanURL string) (string, error) {
	if !strings.HasPrefix(pelicanURL, "pelican://") {
		return "", fmt.Errorf("url must start with pelican://: %w", catalog.ErrValidation)
	}

	rest := strings.TrimPrefix(pelicanURL, "pelican://")
	_, p, found := strings.Cut(rest, "/")
	if !found || p == "" {
		return "", fmt.Errorf("url is missing a file path: %w", catalog.ErrValidation)
	}

	return "/" + p, nil
}

func (svc *federationSvc) ImportResource(ctx context.Context, req ImportRequest) (*domain.Resource, error) {
	var err error
	ctx, span := tracer.Start(ctx, "import-federated-resource")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if svc.client == nil {
		err = svc.notConfigured()
		return nil, err
	}

	logger := logging.GetFromContext(ctx)

	var filePath string
	filePath, err = pelicanPath(req.PelicanURL)
	if err != nil {
		return nil, err
	}

	var info *pelican.FileInfo
	info, err = svc.client.Stat(ctx, filePath)
	if err != nil {
		err = fmt.Errorf("failed to stat federated file: %w", translate(err))
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = path.Base(filePath)
	}

	description := req.Description
	if description == "" {
		description = "Pelican federated file: " + filePath
	}

	var res *domain.Resource
	res, err = svc.repo.ResourceCreate(ctx, catalog.ResourceCreate{
		PackageID:   req.PackageID,
		Name:        name,
		URL:         req.PelicanURL,
		Description: description,
		Format:      "pelican",
		Size:        info.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import federated file: %w", err)
	}

	logger.Info().Str("url", req.PelicanURL).Msg("imported pelican file as resource")

	return res, nil
}

func (svc *federationSvc) CheckHealth(ctx context.Context) bool {
	if svc.client == nil {
		return false
	}
	return svc.client.CheckHealth(ctx)
}
