package catalog

import (
	"context"
	"testing"

	"github.com/matryer/is"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
)

// pagedRepo serves canned packages through PackageSearch so the shared
// resource search can be exercised without a backend.
type pagedRepo struct {
	DataCatalogRepository
	packages []domain.Package
}

func (r *pagedRepo) PackageSearch(ctx context.Context, params SearchParams) (*SearchResult, error) {
	results := r.packages
	if params.Start >= len(results) {
		results = nil
	} else {
		results = results[params.Start:]
	}
	if params.Rows >= 0 && len(results) > params.Rows {
		results = results[:params.Rows]
	}
	return &SearchResult{Count: len(r.packages), Results: results}, nil
}

func fixtureRepo() *pagedRepo {
	return &pagedRepo{packages: []domain.Package{
		{ID: "p1", Name: "alpha", Resources: []domain.Resource{
			{ID: "r1", Name: "alpha-readings", URL: "s3://bucket/alpha.csv", Format: "s3", Description: "raw sensor dump"},
			{ID: "r2", Name: "alpha-stream", URL: "kafka://broker:9092/alpha", Format: "kafka"},
		}},
		{ID: "p2", Name: "beta", Resources: []domain.Resource{
			{ID: "r3", Name: "beta-download", URL: "https://example.com/beta.json", Format: "URL", Description: "daily export"},
		}},
	}}
}

func TestSearchResourcesByFormat(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	result, err := SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Format: "S3"})
	is.NoErr(err)
	is.Equal(result.Count, 1) // format matching is case insensitive
	is.Equal(result.Results[0].ID, "r1")

	result, err = SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Format: "url"})
	is.NoErr(err)
	is.Equal(result.Count, 1)
	is.Equal(result.Results[0].ID, "r3")
}

func TestSearchResourcesByQuery(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	// query matches name, url or description
	result, err := SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Query: "alpha"})
	is.NoErr(err)
	is.Equal(result.Count, 2)

	result, err = SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Query: "daily export"})
	is.NoErr(err)
	is.Equal(result.Count, 1)
	is.Equal(result.Results[0].ID, "r3")

	result, err = SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Query: "nothing-here"})
	is.NoErr(err)
	is.Equal(result.Count, 0)
}

func TestSearchResourcesPaging(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	result, err := SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Limit: 2})
	is.NoErr(err)
	is.Equal(result.Count, 3) // count reflects the full match set
	is.Equal(len(result.Results), 2)

	result, err = SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Offset: 2})
	is.NoErr(err)
	is.Equal(len(result.Results), 1)

	result, err = SearchResources(ctx, fixtureRepo(), ResourceSearchParams{Offset: 10})
	is.NoErr(err)
	is.Equal(len(result.Results), 0)
}

func TestSearchResourcesCombinedFilters(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	result, err := SearchResources(ctx, fixtureRepo(), ResourceSearchParams{
		Name:   "alpha",
		Format: "kafka",
	})
	is.NoErr(err)
	is.Equal(result.Count, 1)
	is.Equal(result.Results[0].ID, "r2")
}
