package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/application/services/datasets"
	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/sources")

// Each source kind registers a package with a single typed resource whose
// format discriminates the kind, plus kind specific keys in extras.
const (
	FormatS3      = "s3"
	FormatKafka   = "kafka"
	FormatURL     = "url"
	FormatService = "service"
	FormatPelican = "pelican"
)

// SourceService registers and maintains typed data sources (S3, Kafka,
// URL, registered services) in the catalog.
type SourceService interface {
	AddS3(ctx context.Context, req S3Request) (string, error)
	UpdateS3(ctx context.Context, id string, upd S3Update) (string, error)
	PatchS3(ctx context.Context, id string, upd S3Update) (string, error)

	AddKafka(ctx context.Context, req KafkaRequest) (string, error)
	UpdateKafka(ctx context.Context, id string, upd KafkaUpdate) (string, error)
	PatchKafka(ctx context.Context, id string, upd KafkaUpdate) (string, error)

	AddURL(ctx context.Context, req URLRequest) (string, error)
	UpdateURL(ctx context.Context, id string, upd URLUpdate) (string, error)
	PatchURL(ctx context.Context, id string, upd URLUpdate) (string, error)

	RegisterService(ctx context.Context, req ServiceRequest) (string, error)
	UpdateService(ctx context.Context, id string, upd ServiceUpdate) (string, error)
	PatchService(ctx context.Context, id string, upd ServiceUpdate) (string, error)
	ResolveServiceURL(ctx context.Context, identifier string) (string, error)
}

// NewSourceService creates a source service on the given repository.
func NewSourceService(repo catalog.DataCatalogRepository) SourceService {
	return &sourceSvc{repo: repo}
}

type sourceSvc struct {
	repo catalog.DataCatalogRepository
}

// reservedWith extends the base reserved key set with kind specific keys.
func reservedWith(keys ...string) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range datasets.ReservedKeys {
		out[k] = struct{}{}
	}
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

// baseFields are the caller facing package fields shared by all source
// kinds.
type baseFields struct {
	name     string
	title    string
	ownerOrg string
	notes    string
}

// basePatch carries the shared pointer fields of a partial update.
type basePatch struct {
	name     *string
	title    *string
	ownerOrg *string
	notes    *string
}

// createSource registers the package plus its single typed resource.
func (svc *sourceSvc) createSource(ctx context.Context, base baseFields, url, format, description string, extras map[string]string, reserved map[string]struct{}, kindExtras map[string]string) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "register-"+format+"-source")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = datasets.CheckReservedKeys(extras, reserved); err != nil {
		return "", err
	}

	merged := map[string]string{}
	for k, v := range extras {
		merged[k] = v
	}
	for k, v := range kindExtras {
		merged[k] = v
	}

	pkg, err := svc.repo.PackageCreate(ctx, catalog.PackageCreate{
		Name:     base.name,
		Title:    base.title,
		OwnerOrg: base.ownerOrg,
		Notes:    base.notes,
		Extras:   domain.ExtrasFromMap(merged),
	})
	if err != nil {
		return "", fmt.Errorf("error creating source package: %w", err)
	}

	if url != "" {
		_, err = svc.repo.ResourceCreate(ctx, catalog.ResourceCreate{
			PackageID:   pkg.ID,
			Name:        base.name,
			URL:         url,
			Format:      format,
			Description: description,
		})
		if err != nil {
			return "", fmt.Errorf("error creating resource: %w", err)
		}
	}

	return pkg.ID, nil
}

// updateSource is the full-replace path shared by all kinds: absent
// fields keep their stored values, extras merge key by key, and a changed
// URL is propagated to the embedded resource whose format matches.
func (svc *sourceSvc) updateSource(ctx context.Context, id string, patch basePatch, url *string, format string, extras map[string]string, reserved map[string]struct{}, kindExtras map[string]string) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "update-"+format+"-source")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	current, err := svc.repo.PackageShow(ctx, id)
	if err != nil {
		return "", fmt.Errorf("error fetching source: %w", err)
	}

	if err = datasets.CheckReservedKeys(extras, reserved); err != nil {
		return "", err
	}

	next := *current
	if patch.name != nil {
		next.Name = *patch.name
	}
	if patch.title != nil {
		next.Title = *patch.title
	}
	if patch.ownerOrg != nil {
		next.OwnerOrg = *patch.ownerOrg
	}
	if patch.notes != nil {
		next.Notes = *patch.notes
	}

	merged := datasets.MergeExtras(current.Extras, extras)
	next.Extras = datasets.MergeExtras(merged, kindExtras)

	updated, err := svc.repo.PackageUpdate(ctx, next)
	if err != nil {
		return "", fmt.Errorf("error updating source: %w", err)
	}

	if url != nil {
		if err = svc.syncResourceURL(ctx, current, format, *url); err != nil {
			return "", err
		}
	}

	return updated.ID, nil
}

// patchSource is the partial path: only present fields are written.
func (svc *sourceSvc) patchSource(ctx context.Context, id string, patch basePatch, url *string, format string, extras map[string]string, reserved map[string]struct{}, kindExtras map[string]string) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "patch-"+format+"-source")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = datasets.CheckReservedKeys(extras, reserved); err != nil {
		return "", err
	}

	pkgPatch := catalog.PackagePatch{
		ID:       id,
		Name:     patch.name,
		Title:    patch.title,
		OwnerOrg: patch.ownerOrg,
		Notes:    patch.notes,
	}

	var current *domain.Package

	if len(extras) > 0 || len(kindExtras) > 0 {
		current, err = svc.repo.PackageShow(ctx, id)
		if err != nil {
			return "", fmt.Errorf("error fetching source: %w", err)
		}

		merged := datasets.MergeExtras(current.Extras, extras)
		pkgPatch.Extras = datasets.MergeExtras(merged, kindExtras)
	}

	patched, err := svc.repo.PackagePatch(ctx, pkgPatch)
	if err != nil {
		return "", fmt.Errorf("error patching source: %w", err)
	}

	if url != nil {
		if err = svc.syncResourceURL(ctx, patched, format, *url); err != nil {
			return "", err
		}
	}

	return patched.ID, nil
}

// syncResourceURL updates the URL of the embedded resource whose format
// matches the source kind, keeping the typed resource and the package
// level URL extra consistent.
func (svc *sourceSvc) syncResourceURL(ctx context.Context, pkg *domain.Package, format, url string) error {
	for _, res := range pkg.Resources {
		if !strings.EqualFold(res.Format, format) {
			continue
		}

		_, err := svc.repo.ResourcePatch(ctx, catalog.ResourcePatch{
			ID:  res.ID,
			URL: &url,
		})
		if err != nil {
			return fmt.Errorf("error updating %s resource url: %w", format, err)
		}
		return nil
	}

	// no typed resource yet, register one
	_, err := svc.repo.ResourceCreate(ctx, catalog.ResourceCreate{
		PackageID:   pkg.ID,
		Name:        pkg.Name,
		URL:         url,
		Format:      format,
		Description: fmt.Sprintf("Resource pointing to %s", url),
	})
	if err != nil {
		return fmt.Errorf("error creating %s resource: %w", format, err)
	}

	return nil
}
