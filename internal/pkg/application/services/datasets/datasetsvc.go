package datasets

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/datasets")

// ReservedKeys are extras keys a caller may not supply on generic
// datasets: they would shadow structural package fields.
var ReservedKeys = map[string]struct{}{
	"name": {}, "title": {}, "owner_org": {}, "notes": {},
	"id": {}, "resources": {}, "collection": {},
}

// CheckReservedKeys rejects caller supplied extras that collide with the
// given reserved key set, before anything is written.
func CheckReservedKeys(extras map[string]string, reserved map[string]struct{}) error {
	collisions := []string{}
	for k := range extras {
		if _, bad := reserved[k]; bad {
			collisions = append(collisions, k)
		}
	}
	if len(collisions) > 0 {
		return fmt.Errorf("extras contain reserved keys: %v: %w", collisions, catalog.ErrValidation)
	}
	return nil
}

// MergeExtras overlays new keys onto the current extras list. Existing
// keys not mentioned survive, mentioned ones are overwritten.
func MergeExtras(current domain.Extras, updates map[string]string) domain.Extras {
	merged := current.ToMap()
	for k, v := range updates {
		merged[k] = v
	}
	return domain.ExtrasFromMap(merged)
}

// DatasetRequest carries the fields accepted when registering a generic
// dataset.
type DatasetRequest struct {
	Name     string            `json:"name"`
	Title    string            `json:"title"`
	OwnerOrg string            `json:"owner_org"`
	Notes    string            `json:"notes,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`

	// optional single resource registered together with the dataset
	ResourceName   string `json:"resource_name,omitempty"`
	ResourceURL    string `json:"resource_url,omitempty"`
	ResourceFormat string `json:"resource_format,omitempty"`
}

// DatasetUpdate is a partial update of a generic dataset. Nil fields are
// left untouched; extras merge key by key.
type DatasetUpdate struct {
	Name     *string           `json:"name,omitempty"`
	Title    *string           `json:"title,omitempty"`
	OwnerOrg *string           `json:"owner_org,omitempty"`
	Notes    *string           `json:"notes,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// DatasetService manages generic datasets and their resources.
type DatasetService interface {
	Create(ctx context.Context, req DatasetRequest) (string, error)
	Update(ctx context.Context, id string, upd DatasetUpdate) (string, error)
	Patch(ctx context.Context, id string, upd DatasetUpdate) (string, error)
	Delete(ctx context.Context, name string) error

	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	PatchResource(ctx context.Context, patch catalog.ResourcePatch) (*domain.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	DeleteResourceByName(ctx context.Context, datasetID, resourceName string) error
	SearchResources(ctx context.Context, params catalog.ResourceSearchParams) (*catalog.ResourceSearchResult, error)
}

// NewDatasetService creates a dataset service on the given repository.
func NewDatasetService(repo catalog.DataCatalogRepository) DatasetService {
	return &datasetSvc{repo: repo}
}

type datasetSvc struct {
	repo catalog.DataCatalogRepository
}

func (svc *datasetSvc) Create(ctx context.Context, req DatasetRequest) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "create-dataset")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = CheckReservedKeys(req.Extras, ReservedKeys); err != nil {
		return "", err
	}

	pkg, err := svc.repo.PackageCreate(ctx, catalog.PackageCreate{
		Name:     req.Name,
		Title:    req.Title,
		OwnerOrg: req.OwnerOrg,
		Notes:    req.Notes,
		Extras:   domain.ExtrasFromMap(req.Extras),
	})
	if err != nil {
		return "", fmt.Errorf("error creating dataset: %w", err)
	}

	if req.ResourceURL != "" {
		resourceName := req.ResourceName
		if resourceName == "" {
			resourceName = req.Name
		}

		_, err = svc.repo.ResourceCreate(ctx, catalog.ResourceCreate{
			PackageID:   pkg.ID,
			Name:        resourceName,
			URL:         req.ResourceURL,
			Format:      req.ResourceFormat,
			Description: fmt.Sprintf("Resource pointing to %s", req.ResourceURL),
		})
		if err != nil {
			return "", fmt.Errorf("error creating resource: %w", err)
		}
	}

	return pkg.ID, nil
}

// Update is a full replace: fields absent from the payload keep their
// current values, present-but-empty fields are cleared.
func (svc *datasetSvc) Update(ctx context.Context, id string, upd DatasetUpdate) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "update-dataset")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	current, err := svc.repo.PackageShow(ctx, id)
	if err != nil {
		return "", fmt.Errorf("error fetching dataset: %w", err)
	}

	if err = CheckReservedKeys(upd.Extras, ReservedKeys); err != nil {
		return "", err
	}

	next := *current
	if upd.Name != nil {
		next.Name = *upd.Name
	}
	if upd.Title != nil {
		next.Title = *upd.Title
	}
	if upd.OwnerOrg != nil {
		next.OwnerOrg = *upd.OwnerOrg
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}
	next.Extras = MergeExtras(current.Extras, upd.Extras)

	updated, err := svc.repo.PackageUpdate(ctx, next)
	if err != nil {
		return "", fmt.Errorf("error updating dataset: %w", err)
	}

	return updated.ID, nil
}

// Patch only touches the supplied fields.
func (svc *datasetSvc) Patch(ctx context.Context, id string, upd DatasetUpdate) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "patch-dataset")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if err = CheckReservedKeys(upd.Extras, ReservedKeys); err != nil {
		return "", err
	}

	patch := catalog.PackagePatch{
		ID:       id,
		Name:     upd.Name,
		Title:    upd.Title,
		OwnerOrg: upd.OwnerOrg,
		Notes:    upd.Notes,
	}

	if len(upd.Extras) > 0 {
		var current *domain.Package
		current, err = svc.repo.PackageShow(ctx, id)
		if err != nil {
			return "", fmt.Errorf("error fetching dataset: %w", err)
		}
		patch.Extras = MergeExtras(current.Extras, upd.Extras)
	}

	patched, err := svc.repo.PackagePatch(ctx, patch)
	if err != nil {
		return "", fmt.Errorf("error patching dataset: %w", err)
	}

	return patched.ID, nil
}

func (svc *datasetSvc) Delete(ctx context.Context, name string) error {
	var err error
	ctx, span := tracer.Start(ctx, "delete-dataset")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	err = svc.repo.PackageDelete(ctx, name)
	return err
}

func (svc *datasetSvc) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	return svc.repo.ResourceShow(ctx, id)
}

func (svc *datasetSvc) PatchResource(ctx context.Context, patch catalog.ResourcePatch) (*domain.Resource, error) {
	return svc.repo.ResourcePatch(ctx, patch)
}

func (svc *datasetSvc) DeleteResource(ctx context.Context, id string) error {
	return svc.repo.ResourceDelete(ctx, id)
}

// DeleteResourceByName resolves a resource by its name within a dataset
// and deletes it.
func (svc *datasetSvc) DeleteResourceByName(ctx context.Context, datasetID, resourceName string) error {
	pkg, err := svc.repo.PackageShow(ctx, datasetID)
	if err != nil {
		return err
	}

	for _, res := range pkg.Resources {
		if res.Name == resourceName {
			return svc.repo.ResourceDelete(ctx, res.ID)
		}
	}

	return fmt.Errorf("resource '%s' in dataset '%s' %w", resourceName, datasetID, catalog.ErrNotFound)
}

func (svc *datasetSvc) SearchResources(ctx context.Context, params catalog.ResourceSearchParams) (*catalog.ResourceSearchResult, error) {
	return catalog.SearchResources(ctx, svc.repo, params)
}

var solrSpecialChars = regexp.MustCompile(`([+\-!(){}\[\]^"~*?:\\])`)

// EscapeSolrSpecialChars backslash escapes the characters Solr treats as
// query syntax.
func EscapeSolrSpecialChars(value string) string {
	return solrSpecialChars.ReplaceAllString(value, `\$1`)
}

// SearchByTerms searches a repository for packages matching every term.
// A parallel keys list may scope individual terms to a field ("null" or
// empty meaning global). Matches are post filtered so only packages that
// contain every term somewhere in their serialized form are returned.
func SearchByTerms(ctx context.Context, repo catalog.DataCatalogRepository, terms []string, keys []string) ([]domain.DataSource, error) {
	var err error
	ctx, span := tracer.Start(ctx, "search-datasets-by-terms")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	queryParts := make([]string, 0, len(terms))
	for i, term := range terms {
		escaped := EscapeSolrSpecialChars(term)

		if i < len(keys) && keys[i] != "" && !strings.EqualFold(keys[i], "null") {
			queryParts = append(queryParts, EscapeSolrSpecialChars(keys[i])+":"+escaped)
		} else {
			queryParts = append(queryParts, escaped)
		}
	}

	page, err := repo.PackageSearch(ctx, catalog.SearchParams{
		Query: strings.Join(queryParts, " AND "),
		Rows:  1000,
	})
	if err != nil {
		return nil, err
	}

	results := []domain.DataSource{}
	for _, pkg := range page.Results {
		if matchesAllTerms(pkg, terms) {
			results = append(results, domain.NewDataSource(pkg))
		}
	}

	return results, nil
}

func matchesAllTerms(pkg domain.Package, terms []string) bool {
	var sb strings.Builder
	sb.WriteString(pkg.Name)
	sb.WriteString(" ")
	sb.WriteString(pkg.Title)
	sb.WriteString(" ")
	sb.WriteString(pkg.Notes)
	for _, x := range pkg.Extras {
		sb.WriteString(" ")
		sb.WriteString(x.Key)
		sb.WriteString(" ")
		sb.WriteString(x.Value)
	}
	for _, res := range pkg.Resources {
		sb.WriteString(" ")
		sb.WriteString(res.Name)
		sb.WriteString(" ")
		sb.WriteString(res.URL)
		sb.WriteString(" ")
		sb.WriteString(res.Description)
	}

	haystack := strings.ToLower(sb.String())
	for _, term := range terms {
		if !strings.Contains(haystack, strings.ToLower(term)) {
			return false
		}
	}

	return true
}
