package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v2"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var tracer = otel.Tracer("ndp-ep/svcs/seed")

// File is the YAML document describing catalog content to create at
// startup.
type File struct {
	Organizations []Organization `yaml:"organizations"`
	Datasets      []Dataset      `yaml:"datasets"`
}

type Organization struct {
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Dataset struct {
	Name      string            `yaml:"name"`
	Title     string            `yaml:"title"`
	OwnerOrg  string            `yaml:"owner_org"`
	Notes     string            `yaml:"notes"`
	Extras    map[string]string `yaml:"extras"`
	Resources []Resource        `yaml:"resources"`
}

type Resource struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Format      string `yaml:"format"`
	Description string `yaml:"description"`
}

// Load reads and parses a seed file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	f := &File{}
	err = yaml.Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	return f, nil
}

// Apply creates the seed file's organizations and datasets in the given
// catalog. Entries that already exist are skipped, other failures are
// logged and skipped as well so a partial seed never prevents startup.
func Apply(ctx context.Context, repo catalog.DataCatalogRepository, f *File) error {
	var err error
	ctx, span := tracer.Start(ctx, "apply-seed-data")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	logger := logging.GetFromContext(ctx)

	created := 0

	for _, org := range f.Organizations {
		_, err = repo.OrganizationCreate(ctx, catalog.OrganizationCreate{
			Name:        org.Name,
			Title:       org.Title,
			Description: org.Description,
		})
		if err != nil {
			if errors.Is(err, catalog.ErrAlreadyExists) {
				logger.Debug().Msgf("organization %s already exists, skipping", org.Name)
				err = nil
				continue
			}
			logger.Error().Err(err).Msgf("failed to seed organization %s", org.Name)
			err = nil
			continue
		}
		created++
	}

	for _, ds := range f.Datasets {
		var pkg *domain.Package
		pkg, err = repo.PackageCreate(ctx, catalog.PackageCreate{
			Name:     ds.Name,
			Title:    ds.Title,
			OwnerOrg: ds.OwnerOrg,
			Notes:    ds.Notes,
			Extras:   domain.ExtrasFromMap(ds.Extras),
		})
		if err != nil {
			if errors.Is(err, catalog.ErrAlreadyExists) {
				logger.Debug().Msgf("dataset %s already exists, skipping", ds.Name)
				err = nil
				continue
			}
			logger.Error().Err(err).Msgf("failed to seed dataset %s", ds.Name)
			err = nil
			continue
		}
		created++

		for _, res := range ds.Resources {
			_, err = repo.ResourceCreate(ctx, catalog.ResourceCreate{
				PackageID:   pkg.ID,
				Name:        res.Name,
				URL:         res.URL,
				Format:      res.Format,
				Description: res.Description,
			})
			if err != nil {
				logger.Error().Err(err).Msgf("failed to seed resource %s in dataset %s", res.Name, ds.Name)
				err = nil
			}
		}
	}

	logger.Info().Msgf("seeded %d catalog entries", created)

	return nil
}
