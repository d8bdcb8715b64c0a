package organizations

import (
	"context"
	"fmt"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/organizations")

// OrganizationService manages catalog organizations.
type OrganizationService interface {
	Create(ctx context.Context, name, title, description string) (*domain.Organization, error)
	List(ctx context.Context, allFields bool) (any, error)
	Delete(ctx context.Context, name string) error
}

// NewOrganizationService creates a service on top of the given catalog
// repository.
func NewOrganizationService(repo catalog.DataCatalogRepository) OrganizationService {
	return &orgSvc{repo: repo}
}

type orgSvc struct {
	repo catalog.DataCatalogRepository
}

func (svc *orgSvc) Create(ctx context.Context, name, title, description string) (*domain.Organization, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-organization")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	org, err := svc.repo.OrganizationCreate(ctx, catalog.OrganizationCreate{
		Name:        name,
		Title:       title,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating organization: %w", err)
	}

	return org, nil
}

// List returns full organization records when allFields is set, otherwise
// just their names.
func (svc *orgSvc) List(ctx context.Context, allFields bool) (any, error) {
	orgs, err := svc.repo.OrganizationList(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing organizations: %w", err)
	}

	if allFields {
		return orgs, nil
	}

	names := make([]string, 0, len(orgs))
	for _, org := range orgs {
		names = append(names, org.Name)
	}
	return names, nil
}

// Delete removes an organization together with every package it owns.
// The repository itself does not cascade (CKAN parity), so the owned
// packages are searched up and deleted first, one by one.
func (svc *orgSvc) Delete(ctx context.Context, name string) error {
	var err error
	ctx, span := tracer.Start(ctx, "delete-organization")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	org, err := svc.repo.OrganizationShow(ctx, name)
	if err != nil {
		return err
	}

	owned, err := svc.repo.PackageSearch(ctx, catalog.SearchParams{
		FilterQuery: []string{"owner_org:" + org.ID},
		Rows:        1000,
	})
	if err != nil {
		return fmt.Errorf("error searching owned packages: %w", err)
	}

	for _, pkg := range owned.Results {
		if err = svc.repo.PackageDelete(ctx, pkg.ID); err != nil {
			return fmt.Errorf("error deleting package %s: %w", pkg.Name, err)
		}
		log.Info().Msgf("deleted package %s owned by %s", pkg.Name, org.Name)
	}

	if err = svc.repo.OrganizationDelete(ctx, org.ID); err != nil {
		return fmt.Errorf("error deleting organization: %w", err)
	}

	return nil
}
