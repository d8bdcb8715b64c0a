package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/clients/ckan"
)

// NewCKANRepository wraps a CKAN action client in the repository contract.
// Every method delegates 1:1 to the matching CKAN action; deletes use the
// purge actions so removal is permanent.
func NewCKANRepository(client *ckan.Client) DataCatalogRepository {
	return &ckanRepository{client: client}
}

type ckanRepository struct {
	client *ckan.Client
}

// translate maps action client failures onto the repository taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ckan.ErrActionNotFound):
		return fmt.Errorf("%s: %w", err.Error(), ErrNotFound)
	case errors.Is(err, ckan.ErrActionValidation):
		return fmt.Errorf("%s: %w", err.Error(), ErrValidation)
	case errors.Is(err, ckan.ErrActionConflict):
		return fmt.Errorf("%s: %w", err.Error(), ErrAlreadyExists)
	case errors.Is(err, ckan.ErrUnreachable):
		return fmt.Errorf("%s: %w", err.Error(), ErrUnavailable)
	default:
		return err
	}
}

func (r *ckanRepository) PackageCreate(ctx context.Context, create PackageCreate) (*domain.Package, error) {
	pkg := &domain.Package{}
	if err := r.client.Call(ctx, "package_create", create, pkg); err != nil {
		return nil, translate(err)
	}
	return pkg, nil
}

func (r *ckanRepository) PackageShow(ctx context.Context, id string) (*domain.Package, error) {
	pkg := &domain.Package{}
	if err := r.client.Call(ctx, "package_show", map[string]string{"id": id}, pkg); err != nil {
		return nil, translate(err)
	}
	return pkg, nil
}

func (r *ckanRepository) PackageUpdate(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	updated := &domain.Package{}
	if err := r.client.Call(ctx, "package_update", pkg, updated); err != nil {
		return nil, translate(err)
	}
	return updated, nil
}

func (r *ckanRepository) PackagePatch(ctx context.Context, patch PackagePatch) (*domain.Package, error) {
	payload := map[string]any{"id": patch.ID}
	setIfPresent(payload, "name", patch.Name)
	setIfPresent(payload, "title", patch.Title)
	setIfPresent(payload, "owner_org", patch.OwnerOrg)
	setIfPresent(payload, "notes", patch.Notes)
	if patch.Extras != nil {
		payload["extras"] = patch.Extras
	}

	patched := &domain.Package{}
	if err := r.client.Call(ctx, "package_patch", payload, patched); err != nil {
		return nil, translate(err)
	}
	return patched, nil
}

func (r *ckanRepository) PackageDelete(ctx context.Context, id string) error {
	return translate(r.client.Call(ctx, "dataset_purge", map[string]string{"id": id}, nil))
}

func (r *ckanRepository) PackageSearch(ctx context.Context, params SearchParams) (*SearchResult, error) {
	query := params.Query
	if query == "" {
		query = MatchAll
	}

	sort := params.Sort
	if sort == "" {
		sort = DefaultSort
	}

	fq := ""
	for i, clause := range params.FilterQuery {
		if i > 0 {
			fq += " AND "
		}
		fq += clause
	}

	payload := map[string]any{
		"q":     query,
		"fq":    fq,
		"rows":  params.Rows,
		"start": params.Start,
		"sort":  sort,
	}

	result := &SearchResult{}
	if err := r.client.Call(ctx, "package_search", payload, result); err != nil {
		return nil, translate(err)
	}
	return result, nil
}

func (r *ckanRepository) ResourceCreate(ctx context.Context, create ResourceCreate) (*domain.Resource, error) {
	res := &domain.Resource{}
	if err := r.client.Call(ctx, "resource_create", create, res); err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (r *ckanRepository) ResourceShow(ctx context.Context, id string) (*domain.Resource, error) {
	res := &domain.Resource{}
	if err := r.client.Call(ctx, "resource_show", map[string]string{"id": id}, res); err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (r *ckanRepository) ResourcePatch(ctx context.Context, patch ResourcePatch) (*domain.Resource, error) {
	payload := map[string]any{"id": patch.ID}
	setIfPresent(payload, "name", patch.Name)
	setIfPresent(payload, "url", patch.URL)
	setIfPresent(payload, "description", patch.Description)
	setIfPresent(payload, "format", patch.Format)

	res := &domain.Resource{}
	if err := r.client.Call(ctx, "resource_patch", payload, res); err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (r *ckanRepository) ResourceDelete(ctx context.Context, id string) error {
	return translate(r.client.Call(ctx, "resource_delete", map[string]string{"id": id}, nil))
}

func (r *ckanRepository) OrganizationCreate(ctx context.Context, create OrganizationCreate) (*domain.Organization, error) {
	org := &domain.Organization{}
	if err := r.client.Call(ctx, "organization_create", create, org); err != nil {
		return nil, translate(err)
	}
	return org, nil
}

func (r *ckanRepository) OrganizationShow(ctx context.Context, id string) (*domain.Organization, error) {
	org := &domain.Organization{}
	if err := r.client.Call(ctx, "organization_show", map[string]string{"id": id}, org); err != nil {
		return nil, translate(err)
	}
	return org, nil
}

func (r *ckanRepository) OrganizationList(ctx context.Context) ([]domain.Organization, error) {
	orgs := []domain.Organization{}
	payload := map[string]any{"all_fields": true}
	if err := r.client.Call(ctx, "organization_list", payload, &orgs); err != nil {
		return nil, translate(err)
	}
	return orgs, nil
}

func (r *ckanRepository) OrganizationDelete(ctx context.Context, id string) error {
	if err := r.client.Call(ctx, "organization_delete", map[string]string{"id": id}, nil); err != nil {
		return translate(err)
	}

	// purge makes the name reusable immediately
	return translate(r.client.Call(ctx, "organization_purge", map[string]string{"id": id}, nil))
}

func (r *ckanRepository) CheckHealth(ctx context.Context) bool {
	return r.client.Call(ctx, "status_show", nil, nil) == nil
}

func setIfPresent(payload map[string]any, key string, value *string) {
	if value != nil {
		payload[key] = *value
	}
}
