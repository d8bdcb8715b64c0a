package organizations

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func setup(t *testing.T) (*is.I, *catalogtest.Repository, OrganizationService) {
	is := is.New(t)
	repo := catalogtest.NewRepository()
	return is, repo, NewOrganizationService(repo)
}

func TestCreateOrganization(t *testing.T) {
	is, _, svc := setup(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, "noaa", "NOAA", "weather data")
	is.NoErr(err)
	is.True(org.ID != "")
	is.Equal(org.Name, "noaa")

	_, err = svc.Create(ctx, "noaa", "NOAA", "")
	is.True(errors.Is(err, catalog.ErrAlreadyExists))
}

func TestListOrganizations(t *testing.T) {
	is, _, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "noaa", "NOAA", "")
	is.NoErr(err)
	_, err = svc.Create(ctx, "usgs", "USGS", "")
	is.NoErr(err)

	names, err := svc.List(ctx, false)
	is.NoErr(err)
	is.Equal(len(names.([]string)), 2)

	full, err := svc.List(ctx, true)
	is.NoErr(err)
	orgs := full.([]domain.Organization)
	is.Equal(len(orgs), 2)
	is.True(orgs[0].ID != "")
}

func TestDeleteOrganizationCascades(t *testing.T) {
	is, repo, svc := setup(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, "noaa", "NOAA", "")
	is.NoErr(err)

	_, err = repo.PackageCreate(ctx, catalog.PackageCreate{Name: "storms", Title: "Storms", OwnerOrg: org.Name})
	is.NoErr(err)
	_, err = repo.PackageCreate(ctx, catalog.PackageCreate{Name: "tides", Title: "Tides", OwnerOrg: org.Name})
	is.NoErr(err)

	err = svc.Delete(ctx, "noaa")
	is.NoErr(err)

	_, err = repo.OrganizationShow(ctx, "noaa")
	is.True(errors.Is(err, catalog.ErrNotFound))

	_, err = repo.PackageShow(ctx, "storms")
	is.True(errors.Is(err, catalog.ErrNotFound))
	_, err = repo.PackageShow(ctx, "tides")
	is.True(errors.Is(err, catalog.ErrNotFound))
}

func TestDeleteMissingOrganization(t *testing.T) {
	is, _, svc := setup(t)

	err := svc.Delete(context.Background(), "ghost")
	is.True(errors.Is(err, catalog.ErrNotFound))
}
