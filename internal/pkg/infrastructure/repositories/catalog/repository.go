package catalog

import (
	"context"
	"strings"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
)

const (
	// MatchAll is the query string that matches every package.
	MatchAll = "*:*"
	// DefaultSort mirrors CKAN's default search ordering.
	DefaultSort = "score desc, metadata_modified desc"
)

// PackageCreate holds the fields accepted when registering a new package.
type PackageCreate struct {
	Name     string        `json:"name"`
	Title    string        `json:"title,omitempty"`
	OwnerOrg string        `json:"owner_org,omitempty"`
	Notes    string        `json:"notes,omitempty"`
	Extras   domain.Extras `json:"extras,omitempty"`
}

// PackagePatch is a partial update. Nil pointers mean "leave alone", a
// pointer to the empty string means "clear". A non nil Extras replaces the
// stored list wholesale.
type PackagePatch struct {
	ID       string
	Name     *string
	Title    *string
	OwnerOrg *string
	Notes    *string
	Extras   domain.Extras
}

// ResourceCreate holds the fields accepted when adding a resource to an
// existing package.
type ResourceCreate struct {
	PackageID   string `json:"package_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// ResourcePatch is a partial resource update with the same pointer
// semantics as PackagePatch.
type ResourcePatch struct {
	ID          string
	Name        *string
	URL         *string
	Description *string
	Format      *string
}

// OrganizationCreate holds the fields accepted when creating an
// organization.
type OrganizationCreate struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SearchParams translate to CKAN's package_search arguments. FilterQuery
// clauses use the "field:value" form and combine with AND.
type SearchParams struct {
	Query       string
	FilterQuery []string
	Rows        int
	Start       int
	Sort        string
}

// SearchResult is the package search response shape shared by all
// backends.
type SearchResult struct {
	Count   int              `json:"count"`
	Results []domain.Package `json:"results"`
}

// DataCatalogRepository is the backend agnostic contract for catalog
// operations. Implementations exist for CKAN and MongoDB and must agree on
// behavior so the service layer can swap backends freely. Failures are
// reported through the sentinel errors in this package.
type DataCatalogRepository interface {
	PackageCreate(ctx context.Context, create PackageCreate) (*domain.Package, error)
	PackageShow(ctx context.Context, id string) (*domain.Package, error)
	PackageUpdate(ctx context.Context, pkg domain.Package) (*domain.Package, error)
	PackagePatch(ctx context.Context, patch PackagePatch) (*domain.Package, error)
	PackageDelete(ctx context.Context, id string) error
	PackageSearch(ctx context.Context, params SearchParams) (*SearchResult, error)

	ResourceCreate(ctx context.Context, create ResourceCreate) (*domain.Resource, error)
	ResourceShow(ctx context.Context, id string) (*domain.Resource, error)
	ResourcePatch(ctx context.Context, patch ResourcePatch) (*domain.Resource, error)
	ResourceDelete(ctx context.Context, id string) error

	OrganizationCreate(ctx context.Context, create OrganizationCreate) (*domain.Organization, error)
	OrganizationShow(ctx context.Context, id string) (*domain.Organization, error)
	OrganizationList(ctx context.Context) ([]domain.Organization, error)
	OrganizationDelete(ctx context.Context, id string) error

	CheckHealth(ctx context.Context) bool
}

// ResourceSearchParams filter the resources embedded in packages. Query
// matches name, url and description. The other fields narrow on a single
// attribute; format is an exact, case insensitive match.
type ResourceSearchParams struct {
	Query       string
	Name        string
	URL         string
	Format      string
	Description string
	Limit       int
	Offset      int
}

// ResourceSearchResult is the resource search response shape.
type ResourceSearchResult struct {
	Count   int               `json:"count"`
	Results []domain.Resource `json:"results"`
}

const resourceSearchPageSize = 1000

// SearchResources is the shared resource search used by every backend:
// it pulls all packages through PackageSearch and filters their embedded
// resources linearly. Backends are free to provide something smarter, but
// none of the current call patterns need it.
func SearchResources(ctx context.Context, repo DataCatalogRepository, params ResourceSearchParams) (*ResourceSearchResult, error) {
	matches := []domain.Resource{}

	for start := 0; ; start += resourceSearchPageSize {
		page, err := repo.PackageSearch(ctx, SearchParams{
			Query: MatchAll,
			Rows:  resourceSearchPageSize,
			Start: start,
		})
		if err != nil {
			return nil, err
		}

		for _, pkg := range page.Results {
			for _, res := range pkg.Resources {
				if resourceMatches(res, params) {
					matches = append(matches, res)
				}
			}
		}

		if start+resourceSearchPageSize >= page.Count || len(page.Results) == 0 {
			break
		}
	}

	count := len(matches)

	if params.Offset > 0 {
		if params.Offset >= len(matches) {
			matches = []domain.Resource{}
		} else {
			matches = matches[params.Offset:]
		}
	}
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}

	return &ResourceSearchResult{Count: count, Results: matches}, nil
}

func resourceMatches(res domain.Resource, params ResourceSearchParams) bool {
	contains := func(haystack, needle string) bool {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}

	if params.Query != "" {
		if !contains(res.Name, params.Query) &&
			!contains(res.URL, params.Query) &&
			!contains(res.Description, params.Query) {
			return false
		}
	}
	if params.Name != "" && !contains(res.Name, params.Name) {
		return false
	}
	if params.URL != "" && !contains(res.URL, params.URL) {
		return false
	}
	if params.Description != "" && !contains(res.Description, params.Description) {
		return false
	}
	if params.Format != "" && !strings.EqualFold(res.Format, params.Format) {
		return false
	}

	return true
}
