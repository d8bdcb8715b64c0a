package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/clients/pelican"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog/catalogtest"
)

func setup(t *testing.T, handler http.HandlerFunc) (*is.I, *catalogtest.Repository, FederationService) {
	is := is.New(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	repo := catalogtest.NewRepository()
	return is, repo, NewFederationService(pelican.New(server.URL), repo)
}

func TestImportResource(t *testing.T) {
	var gotMethod, gotPath string
	is, repo, svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Add("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	_, err := repo.OrganizationCreate(ctx, catalog.OrganizationCreate{Name: "noaa", Title: "NOAA"})
	is.NoErr(err)
	pkg, err := repo.PackageCreate(ctx, catalog.PackageCreate{Name: "climate", Title: "Climate", OwnerOrg: "noaa"})
	is.NoErr(err)

	res, err := svc.ImportResource(ctx, ImportRequest{
		PelicanURL: "pelican://osg-htc.org/ndp/climate/temps.nc",
		PackageID:  pkg.ID,
	})
	is.NoErr(err)
	is.Equal(gotMethod, http.MethodHead)
	is.Equal(gotPath, "/ndp/climate/temps.nc")
	is.Equal(res.Name, "temps.nc") // defaults to the file name
	is.Equal(res.Format, "pelican")
	is.Equal(res.Size, int64(4096))
	is.Equal(res.Description, "Pelican federated file: /ndp/climate/temps.nc")

	stored, err := repo.PackageShow(ctx, pkg.ID)
	is.NoErr(err)
	is.Equal(len(stored.Resources), 1)
}

func TestImportResourceRejectsBadURL(t *testing.T) {
	is, _, svc := setup(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := svc.ImportResource(context.Background(), ImportRequest{
		PelicanURL: "https://example.com/file.nc",
		PackageID:  "p1",
	})
	is.True(errors.Is(err, catalog.ErrValidation))

	_, err = svc.ImportResource(context.Background(), ImportRequest{
		PelicanURL: "pelican://osg-htc.org",
		PackageID:  "p1",
	})
	is.True(errors.Is(err, catalog.ErrValidation))
}

func TestMissingPathMapsToNotFound(t *testing.T) {
	is, _, svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	_, err := svc.Stat(ctx, "/missing.nc")
	is.True(errors.Is(err, catalog.ErrNotFound))

	_, err = svc.Browse(ctx, "/missing")
	is.True(errors.Is(err, catalog.ErrNotFound))

	_, err = svc.Download(ctx, "/missing.nc")
	is.True(errors.Is(err, catalog.ErrNotFound))

	_, err = svc.ImportResource(ctx, ImportRequest{
		PelicanURL: "pelican://osg-htc.org/ndp/missing.nc",
		PackageID:  "p1",
	})
	is.True(errors.Is(err, catalog.ErrNotFound))
}

func TestImportResourceMissingPackage(t *testing.T) {
	is, _, svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Length", "1")
		w.WriteHeader(http.StatusOK)
	})

	_, err := svc.ImportResource(context.Background(), ImportRequest{
		PelicanURL: "pelican://osg-htc.org/ndp/file.nc",
		PackageID:  "no-such-package",
	})
	is.True(errors.Is(err, catalog.ErrNotFound))
}

func TestUnconfiguredFederation(t *testing.T) {
	is := is.New(t)
	svc := NewFederationService(nil, catalogtest.NewRepository())
	ctx := context.Background()

	_, err := svc.Browse(ctx, "/")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.Stat(ctx, "/file.nc")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	_, err = svc.Download(ctx, "/file.nc")
	is.True(errors.Is(err, catalog.ErrUnavailable))

	is.True(!svc.CheckHealth(ctx))
}
