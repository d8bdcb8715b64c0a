package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/clients/ckan"
)

// Config selects and configures the repositories backing the local,
// global and pre catalogs. Only the local catalog backend is switchable;
// global and pre are always CKAN.
type Config struct {
	LocalBackend string // "ckan" or "mongodb"

	CKANURL       string
	CKANAPIKey    string
	CKANVerifySSL bool

	GlobalCKANURL string

	PreCKANURL       string
	PreCKANAPIKey    string
	PreCKANVerifySSL bool

	MongoConnectionString string
	MongoDatabase         string
}

// Catalogs holds the configured repository per catalog.
type Catalogs struct {
	local  DataCatalogRepository
	global DataCatalogRepository
	pre    DataCatalogRepository
}

// NewCatalogs builds the repositories from config. An unsupported local
// backend is a startup error.
func NewCatalogs(ctx context.Context, cfg Config) (*Catalogs, error) {
	var local DataCatalogRepository

	switch strings.ToLower(cfg.LocalBackend) {
	case "mongodb":
		repo, err := NewMongoDBRepository(ctx, cfg.MongoConnectionString, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		local = repo
	case "ckan", "":
		local = NewCKANRepository(newCKANClient(cfg.CKANURL, cfg.CKANAPIKey, cfg.CKANVerifySSL))
	default:
		return nil, fmt.Errorf("unsupported catalog backend: %s (supported backends: 'ckan', 'mongodb')", cfg.LocalBackend)
	}

	return &Catalogs{
		local:  local,
		global: NewCKANRepository(ckan.New(cfg.GlobalCKANURL)),
		pre:    NewCKANRepository(newCKANClient(cfg.PreCKANURL, cfg.PreCKANAPIKey, cfg.PreCKANVerifySSL)),
	}, nil
}

// NewCatalogsFromRepositories wraps already constructed repositories.
// Used by tests to swap in fakes.
func NewCatalogsFromRepositories(local, global, pre DataCatalogRepository) *Catalogs {
	return &Catalogs{local: local, global: global, pre: pre}
}

func newCKANClient(url, apiKey string, verifySSL bool) *ckan.Client {
	opts := []ckan.Option{}
	if apiKey != "" {
		opts = append(opts, ckan.WithAPIKey(apiKey))
	}
	if !verifySSL {
		opts = append(opts, ckan.WithoutSSLVerification())
	}
	return ckan.New(url, opts...)
}

// Local returns the repository backing the local catalog.
func (c *Catalogs) Local() DataCatalogRepository {
	return c.local
}

// Global returns the repository for the global catalog, which is treated
// as read only by the service layer.
func (c *Catalogs) Global() DataCatalogRepository {
	return c.global
}

// Pre returns the repository for the staging catalog.
func (c *Catalogs) Pre() DataCatalogRepository {
	return c.pre
}

// ByName looks up a repository by catalog name.
func (c *Catalogs) ByName(name string) (DataCatalogRepository, error) {
	switch name {
	case "local":
		return c.local, nil
	case "global":
		return c.global, nil
	case "pre", "pre_ckan":
		return c.pre, nil
	default:
		return nil, fmt.Errorf("unknown catalog name: %s (valid options: 'local', 'global', 'pre')", name)
	}
}
