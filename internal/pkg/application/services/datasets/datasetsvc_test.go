package datasets

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func setup(t *testing.T) (*is.I, *catalogtest.Repository, DatasetService) {
	is := is.New(t)
	repo := catalogtest.NewRepository()
	_, err := repo.OrganizationCreate(context.Background(), catalog.OrganizationCreate{Name: "test-org", Title: "Test Org"})
	is.NoErr(err)
	return is, repo, NewDatasetService(repo)
}

func TestCreateDataset(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, DatasetRequest{
		Name:     "ocean-temps",
		Title:    "Ocean Temperatures",
		OwnerOrg: "test-org",
		Notes:    "hourly readings",
		Extras:   map[string]string{"region": "pacific"},
	})
	is.NoErr(err)
	is.True(id != "")

	pkg, err := repo.PackageShow(ctx, "ocean-temps")
	is.NoErr(err)
	is.Equal(pkg.Title, "Ocean Temperatures")

	region, ok := pkg.Extras.Get("region")
	is.True(ok)
	is.Equal(region, "pacific")
}

func TestCreateDatasetWithResource(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, DatasetRequest{
		Name:        "ocean-temps",
		Title:       "Ocean Temperatures",
		OwnerOrg:    "test-org",
		ResourceURL: "https://example.com/temps.csv",
	})
	is.NoErr(err)

	pkg, err := repo.PackageShow(ctx, "ocean-temps")
	is.NoErr(err)
	is.Equal(len(pkg.Resources), 1)
	is.Equal(pkg.Resources[0].Name, "ocean-temps") // defaults to the dataset name
	is.Equal(pkg.Resources[0].URL, "https://example.com/temps.csv")
}

func TestCreateDatasetRejectsReservedExtras(t *testing.T) {
	is, _, svc := setup(t)

	_, err := svc.Create(context.Background(), DatasetRequest{
		Name:     "bad-extras",
		Title:    "Bad Extras",
		OwnerOrg: "test-org",
		Extras:   map[string]string{"name": "sneaky"},
	})
	is.True(errors.Is(err, catalog.ErrValidation))
}

func TestCreateDuplicateDataset(t *testing.T) {
	is, _, svc := setup(t)
	ctx := context.Background()

	req := DatasetRequest{Name: "dup", Title: "Dup", OwnerOrg: "test-org"}
	_, err := svc.Create(ctx, req)
	is.NoErr(err)

	_, err = svc.Create(ctx, req)
	is.True(errors.Is(err, catalog.ErrAlreadyExists))
}

func TestPatchDatasetMergesExtras(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, DatasetRequest{
		Name:     "ocean-temps",
		Title:    "Ocean Temperatures",
		OwnerOrg: "test-org",
		Extras:   map[string]string{"region": "pacific", "unit": "celsius"},
	})
	is.NoErr(err)

	newTitle := "Sea Surface Temperatures"
	_, err = svc.Patch(ctx, id, DatasetUpdate{
		Title:  &newTitle,
		Extras: map[string]string{"unit": "kelvin", "depth": "surface"},
	})
	is.NoErr(err)

	pkg, err := repo.PackageShow(ctx, id)
	is.NoErr(err)
	is.Equal(pkg.Title, "Sea Surface Temperatures")
	is.Equal(pkg.Name, "ocean-temps") // untouched

	extras := pkg.Extras.ToMap()
	is.Equal(extras["region"], "pacific") // unmentioned key survives
	is.Equal(extras["unit"], "kelvin")
	is.Equal(extras["depth"], "surface")
}

func TestUpdateWithEmptyPayloadIsIdentity(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, DatasetRequest{
		Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "test-org",
		Notes: "hourly readings", Extras: map[string]string{"region": "pacific"},
	})
	is.NoErr(err)

	before, err := repo.PackageShow(ctx, id)
	is.NoErr(err)

	_, err = svc.Update(ctx, id, DatasetUpdate{})
	is.NoErr(err)

	after, err := repo.PackageShow(ctx, id)
	is.NoErr(err)
	is.Equal(after.Name, before.Name)
	is.Equal(after.Title, before.Title)
	is.Equal(after.Notes, before.Notes)
	is.Equal(after.Extras.ToMap(), before.Extras.ToMap())
}

func TestShowByIDAndByName(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, DatasetRequest{Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "test-org"})
	is.NoErr(err)

	byID, err := repo.PackageShow(ctx, id)
	is.NoErr(err)
	byName, err := repo.PackageShow(ctx, "ocean-temps")
	is.NoErr(err)
	is.Equal(byID.ID, byName.ID)
}

func TestCreateWithUnknownOwnerOrg(t *testing.T) {
	is, _, svc := setup(t)

	_, err := svc.Create(context.Background(), DatasetRequest{
		Name: "orphan", Title: "Orphan", OwnerOrg: "no-such-org",
	})
	is.True(errors.Is(err, catalog.ErrValidation))
}

func TestPatchMissingDataset(t *testing.T) {
	is, _, svc := setup(t)

	newTitle := "nope"
	_, err := svc.Patch(context.Background(), "does-not-exist", DatasetUpdate{Title: &newTitle})
	is.True(errors.Is(err, catalog.ErrNotFound))
}

func TestDeleteResourceByName(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, DatasetRequest{
		Name: "ocean-temps", Title: "Ocean Temperatures", OwnerOrg: "test-org",
		ResourceName: "readings", ResourceURL: "https://example.com/temps.csv",
	})
	is.NoErr(err)

	err = svc.DeleteResourceByName(ctx, id, "readings")
	is.NoErr(err)

	pkg, err := repo.PackageShow(ctx, id)
	is.NoErr(err)
	is.Equal(len(pkg.Resources), 0)

	err = svc.DeleteResourceByName(ctx, id, "readings")
	is.True(errors.Is(err, catalog.ErrNotFound))
}

func TestMergeExtras(t *testing.T) {
	is := is.New(t)

	merged := MergeExtras(
		domain.ExtrasFromMap(map[string]string{"a": "1", "b": "2"}),
		map[string]string{"b": "3", "c": "4"},
	).ToMap()

	is.Equal(merged["a"], "1")
	is.Equal(merged["b"], "3")
	is.Equal(merged["c"], "4")
}

func TestEscapeSolrSpecialChars(t *testing.T) {
	is := is.New(t)
	is.Equal(EscapeSolrSpecialChars("a:b"), `a\:b`)
	is.Equal(EscapeSolrSpecialChars("plain"), "plain")
	is.Equal(EscapeSolrSpecialChars(`wild*card?`), `wild\*card\?`)
}

func TestSearchByTerms(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, DatasetRequest{Name: "apple-orchards", Title: "Apple Orchards", OwnerOrg: "test-org"})
	is.NoErr(err)
	_, err = svc.Create(ctx, DatasetRequest{Name: "pear-orchards", Title: "Pear Orchards", OwnerOrg: "test-org"})
	is.NoErr(err)

	results, err := SearchByTerms(ctx, repo, []string{"apple"}, nil)
	is.NoErr(err)
	is.Equal(len(results), 1)
	is.Equal(results[0].Name, "apple-orchards")

	// scoped to a field
	results, err = SearchByTerms(ctx, repo, []string{"orchards"}, []string{"title"})
	is.NoErr(err)
	is.Equal(len(results), 2)

	// "null" key means global
	results, err = SearchByTerms(ctx, repo, []string{"pear"}, []string{"null"})
	is.NoErr(err)
	is.Equal(len(results), 1)

	results, err = SearchByTerms(ctx, repo, []string{"banana"}, nil)
	is.NoErr(err)
	is.Equal(len(results), 0)
}
