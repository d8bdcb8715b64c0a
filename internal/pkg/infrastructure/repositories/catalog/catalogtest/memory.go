// Package catalogtest provides an in-memory catalog repository used by
// tests across the codebase. It mirrors the shared behavior of the real
// backends: unique names, id-or-name lookups, owner_org validation and
// cascading package deletes.
package catalogtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

type Repository struct {
	mu            sync.Mutex
	packages      map[string]*domain.Package
	resources     map[string]*domain.Resource
	organizations map[string]*domain.Organization
}

func NewRepository() *Repository {
	return &Repository{
		packages:      map[string]*domain.Package{},
		resources:     map[string]*domain.Resource{},
		organizations: map[string]*domain.Organization{},
	}
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (r *Repository) findPackage(id string) *domain.Package {
	if pkg, ok := r.packages[id]; ok {
		return pkg
	}
	for _, pkg := range r.packages {
		if pkg.Name == id {
			return pkg
		}
	}
	return nil
}

func (r *Repository) findOrganization(id string) *domain.Organization {
	if org, ok := r.organizations[id]; ok {
		return org
	}
	for _, org := range r.organizations {
		if org.Name == id {
			return org
		}
	}
	return nil
}

func (r *Repository) PackageCreate(ctx context.Context, create catalog.PackageCreate) (*domain.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pkg := range r.packages {
		if pkg.Name == create.Name {
			return nil, fmt.Errorf("package %s already exists: %w", create.Name, catalog.ErrAlreadyExists)
		}
	}

	var org *domain.Organization
	if create.OwnerOrg != "" {
		org = r.findOrganization(create.OwnerOrg)
		if org == nil {
			return nil, fmt.Errorf("{'owner_org': ['Organization does not exist'], '__type': 'Validation Error'}: %w", catalog.ErrValidation)
		}
	}

	now := nowISO()
	pkg := &domain.Package{
		ID:               uuid.NewString(),
		Name:             create.Name,
		Title:            create.Title,
		OwnerOrg:         create.OwnerOrg,
		Notes:            create.Notes,
		Extras:           create.Extras,
		Resources:        []domain.Resource{},
		State:            "active",
		Type:             "dataset",
		MetadataCreated:  now,
		MetadataModified: now,
		Organization:     org,
	}

	r.packages[pkg.ID] = pkg

	copied := *pkg
	return &copied, nil
}

func (r *Repository) PackageShow(ctx context.Context, id string) (*domain.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pkg := r.findPackage(id)
	if pkg == nil {
		return nil, fmt.Errorf("package %s not found: %w", id, catalog.ErrNotFound)
	}

	copied := *pkg
	return &copied, nil
}

func (r *Repository) PackageUpdate(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.findPackage(pkg.ID)
	if stored == nil {
		return nil, fmt.Errorf("package %s not found: %w", pkg.ID, catalog.ErrNotFound)
	}

	if pkg.OwnerOrg != "" && r.findOrganization(pkg.OwnerOrg) == nil {
		return nil, fmt.Errorf("{'owner_org': ['Organization does not exist'], '__type': 'Validation Error'}: %w", catalog.ErrValidation)
	}

	stored.Name = pkg.Name
	stored.Title = pkg.Title
	stored.OwnerOrg = pkg.OwnerOrg
	stored.Notes = pkg.Notes
	stored.Extras = pkg.Extras
	stored.MetadataModified = nowISO()

	copied := *stored
	return &copied, nil
}

func (r *Repository) PackagePatch(ctx context.Context, patch catalog.PackagePatch) (*domain.Package, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.findPackage(patch.ID)
	if stored == nil {
		return nil, fmt.Errorf("package %s not found: %w", patch.ID, catalog.ErrNotFound)
	}

	if patch.Name != nil {
		stored.Name = *patch.Name
	}
	if patch.Title != nil {
		stored.Title = *patch.Title
	}
	if patch.OwnerOrg != nil {
		if *patch.OwnerOrg != "" && r.findOrganization(*patch.OwnerOrg) == nil {
			return nil, fmt.Errorf("{'owner_org': ['Organization does not exist'], '__type': 'Validation Error'}: %w", catalog.ErrValidation)
		}
		stored.OwnerOrg = *patch.OwnerOrg
	}
	if patch.Notes != nil {
		stored.Notes = *patch.Notes
	}
	if patch.Extras != nil {
		stored.Extras = patch.Extras
	}
	stored.MetadataModified = nowISO()

	copied := *stored
	return &copied, nil
}

func (r *Repository) PackageDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pkg := r.findPackage(id)
	if pkg == nil {
		return fmt.Errorf("package %s not found: %w", id, catalog.ErrNotFound)
	}

	for resID, res := range r.resources {
		if res.PackageID == pkg.ID {
			delete(r.resources, resID)
		}
	}
	delete(r.packages, pkg.ID)

	return nil
}

func (r *Repository) PackageSearch(ctx context.Context, params catalog.SearchParams) (*catalog.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filters := map[string]string{}
	for _, clause := range params.FilterQuery {
		for _, part := range strings.Split(clause, " AND ") {
			if field, value, found := strings.Cut(part, ":"); found {
				filters[strings.TrimSpace(field)] = strings.TrimSpace(value)
			}
		}
	}

	query := params.Query
	if query == catalog.MatchAll {
		query = ""
	}

	matches := []domain.Package{}
	for _, pkg := range r.packages {
		if !r.matchesFilters(pkg, filters) {
			continue
		}
		if query != "" && !matchesQuery(pkg, query) {
			continue
		}
		matches = append(matches, *pkg)
	}

	count := len(matches)

	if params.Start > 0 {
		if params.Start >= len(matches) {
			matches = []domain.Package{}
		} else {
			matches = matches[params.Start:]
		}
	}
	if params.Rows >= 0 && len(matches) > params.Rows {
		matches = matches[:params.Rows]
	}

	return &catalog.SearchResult{Count: count, Results: matches}, nil
}

func (r *Repository) matchesFilters(pkg *domain.Package, filters map[string]string) bool {
	for field, value := range filters {
		switch field {
		case "owner_org":
			// packages may reference the org by id or name
			org := r.findOrganization(value)
			matched := pkg.OwnerOrg == value ||
				(org != nil && (pkg.OwnerOrg == org.ID || pkg.OwnerOrg == org.Name))
			if !matched {
				return false
			}
		case "name":
			if pkg.Name != value {
				return false
			}
		case "title":
			if pkg.Title != value {
				return false
			}
		default:
			if v, ok := pkg.Extras.Get(field); !ok || v != value {
				return false
			}
		}
	}
	return true
}

func matchesQuery(pkg *domain.Package, query string) bool {
	// supports the "field:term AND ..." queries the service layer builds
	for _, part := range strings.Split(query, " AND ") {
		field, term, scoped := strings.Cut(part, ":")
		term = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(term, "\\", "")))
		if !scoped {
			term = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(part, "\\", "")))
		}

		var matched bool
		if scoped {
			switch strings.TrimSpace(field) {
			case "name":
				matched = strings.Contains(strings.ToLower(pkg.Name), term)
			case "title":
				matched = strings.Contains(strings.ToLower(pkg.Title), term)
			case "notes":
				matched = strings.Contains(strings.ToLower(pkg.Notes), term)
			case "owner_org":
				matched = strings.Contains(strings.ToLower(pkg.OwnerOrg), term)
			default:
				v, _ := pkg.Extras.Get(strings.TrimSpace(field))
				matched = strings.Contains(strings.ToLower(v), term)
			}
		} else {
			haystack := strings.ToLower(pkg.Name + " " + pkg.Title + " " + pkg.Notes)
			for _, x := range pkg.Extras {
				haystack += " " + strings.ToLower(x.Key) + " " + strings.ToLower(x.Value)
			}
			matched = strings.Contains(haystack, term)
		}

		if !matched {
			return false
		}
	}
	return true
}

func (r *Repository) ResourceCreate(ctx context.Context, create catalog.ResourceCreate) (*domain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pkg := r.findPackage(create.PackageID)
	if pkg == nil {
		return nil, fmt.Errorf("package %s not found: %w", create.PackageID, catalog.ErrNotFound)
	}

	now := nowISO()
	res := &domain.Resource{
		ID:           uuid.NewString(),
		PackageID:    pkg.ID,
		Name:         create.Name,
		URL:          create.URL,
		Description:  create.Description,
		Format:       create.Format,
		Size:         create.Size,
		Created:      now,
		LastModified: now,
	}

	r.resources[res.ID] = res
	pkg.Resources = append(pkg.Resources, *res)
	pkg.MetadataModified = now

	copied := *res
	return &copied, nil
}

func (r *Repository) ResourceShow(ctx context.Context, id string) (*domain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return nil, fmt.Errorf("resource %s not found: %w", id, catalog.ErrNotFound)
	}

	copied := *res
	return &copied, nil
}

func (r *Repository) ResourcePatch(ctx context.Context, patch catalog.ResourcePatch) (*domain.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[patch.ID]
	if !ok {
		return nil, fmt.Errorf("resource %s not found: %w", patch.ID, catalog.ErrNotFound)
	}

	if patch.Name != nil {
		res.Name = *patch.Name
	}
	if patch.URL != nil {
		res.URL = *patch.URL
	}
	if patch.Description != nil {
		res.Description = *patch.Description
	}
	if patch.Format != nil {
		res.Format = *patch.Format
	}
	res.LastModified = nowISO()

	if pkg := r.findPackage(res.PackageID); pkg != nil {
		for i := range pkg.Resources {
			if pkg.Resources[i].ID == res.ID {
				pkg.Resources[i] = *res
			}
		}
		pkg.MetadataModified = res.LastModified
	}

	copied := *res
	return &copied, nil
}

func (r *Repository) ResourceDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.resources[id]
	if !ok {
		return fmt.Errorf("resource %s not found: %w", id, catalog.ErrNotFound)
	}

	if pkg := r.findPackage(res.PackageID); pkg != nil {
		kept := pkg.Resources[:0]
		for _, embedded := range pkg.Resources {
			if embedded.ID != id {
				kept = append(kept, embedded)
			}
		}
		pkg.Resources = kept
		pkg.MetadataModified = nowISO()
	}

	delete(r.resources, id)
	return nil
}

func (r *Repository) OrganizationCreate(ctx context.Context, create catalog.OrganizationCreate) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, org := range r.organizations {
		if org.Name == create.Name {
			return nil, fmt.Errorf("organization %s already exists: %w", create.Name, catalog.ErrAlreadyExists)
		}
	}

	org := &domain.Organization{
		ID:          uuid.NewString(),
		Name:        create.Name,
		Title:       create.Title,
		Description: create.Description,
		State:       "active",
		Type:        "organization",
		Created:     nowISO(),
	}

	r.organizations[org.ID] = org

	copied := *org
	return &copied, nil
}

func (r *Repository) OrganizationShow(ctx context.Context, id string) (*domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org := r.findOrganization(id)
	if org == nil {
		return nil, fmt.Errorf("organization %s not found: %w", id, catalog.ErrNotFound)
	}

	copied := *org
	return &copied, nil
}

func (r *Repository) OrganizationList(ctx context.Context) ([]domain.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]domain.Organization, 0, len(r.organizations))
	for _, org := range r.organizations {
		list = append(list, *org)
	}
	return list, nil
}

func (r *Repository) OrganizationDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org := r.findOrganization(id)
	if org == nil {
		return fmt.Errorf("organization %s not found: %w", id, catalog.ErrNotFound)
	}

	delete(r.organizations, org.ID)
	return nil
}

func (r *Repository) CheckHealth(ctx context.Context) bool {
	return true
}
