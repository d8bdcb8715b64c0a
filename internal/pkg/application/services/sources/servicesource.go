package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

// ServicesOrg is the organization every registered service belongs to.
const ServicesOrg = "services"

var reservedServiceKeys = reservedWith(
	"service_url", "service_type", "health_check_url", "documentation_url",
)

// ServiceRequest registers an external service endpoint so that callers
// can later be redirected to it by name.
type ServiceRequest struct {
	Name             string            `json:"service_name"`
	Title            string            `json:"service_title"`
	OwnerOrg         string            `json:"owner_org"`
	ServiceURL       string            `json:"service_url"`
	ServiceType      string            `json:"service_type,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Extras           map[string]string `json:"extras,omitempty"`
	HealthCheckURL   string            `json:"health_check_url,omitempty"`
	DocumentationURL string            `json:"documentation_url,omitempty"`
}

// ServiceUpdate modifies a registered service. Nil fields are not
// touched.
type ServiceUpdate struct {
	Name             *string           `json:"service_name,omitempty"`
	Title            *string           `json:"service_title,omitempty"`
	OwnerOrg         *string           `json:"owner_org,omitempty"`
	ServiceURL       *string           `json:"service_url,omitempty"`
	ServiceType      *string           `json:"service_type,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	Extras           map[string]string `json:"extras,omitempty"`
	HealthCheckURL   *string           `json:"health_check_url,omitempty"`
	DocumentationURL *string           `json:"documentation_url,omitempty"`
}

func ownerOrgMustBeServicesErr() error {
	return fmt.Errorf("owner_org must be 'services' for service registration: %w", catalog.ErrValidation)
}

func (svc *sourceSvc) RegisterService(ctx context.Context, req ServiceRequest) (string, error) {
	if req.OwnerOrg != "" && req.OwnerOrg != ServicesOrg {
		return "", ownerOrgMustBeServicesErr()
	}

	kindExtras := map[string]string{"service_url": req.ServiceURL}
	if req.ServiceType != "" {
		kindExtras["service_type"] = req.ServiceType
	}
	if req.HealthCheckURL != "" {
		kindExtras["health_check_url"] = req.HealthCheckURL
	}
	if req.DocumentationURL != "" {
		kindExtras["documentation_url"] = req.DocumentationURL
	}

	return svc.createSource(ctx,
		baseFields{name: req.Name, title: req.Title, ownerOrg: ServicesOrg, notes: req.Notes},
		req.ServiceURL, FormatService,
		fmt.Sprintf("Service endpoint for %s accessible at %s", req.Title, req.ServiceURL),
		req.Extras, reservedServiceKeys, kindExtras,
	)
}

func (svc *sourceSvc) UpdateService(ctx context.Context, id string, upd ServiceUpdate) (string, error) {
	if upd.OwnerOrg != nil && *upd.OwnerOrg != ServicesOrg {
		return "", ownerOrgMustBeServicesErr()
	}

	return svc.updateSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.ServiceURL, FormatService, upd.Extras, reservedServiceKeys, serviceKindExtras(upd),
	)
}

func (svc *sourceSvc) PatchService(ctx context.Context, id string, upd ServiceUpdate) (string, error) {
	if upd.OwnerOrg != nil && *upd.OwnerOrg != ServicesOrg {
		return "", ownerOrgMustBeServicesErr()
	}

	return svc.patchSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.ServiceURL, FormatService, upd.Extras, reservedServiceKeys, serviceKindExtras(upd),
	)
}

func serviceKindExtras(upd ServiceUpdate) map[string]string {
	out := map[string]string{}
	if upd.ServiceURL != nil {
		out["service_url"] = *upd.ServiceURL
	}
	if upd.ServiceType != nil {
		out["service_type"] = *upd.ServiceType
	}
	if upd.HealthCheckURL != nil {
		out["health_check_url"] = *upd.HealthCheckURL
	}
	if upd.DocumentationURL != nil {
		out["documentation_url"] = *upd.DocumentationURL
	}
	return out
}

// ResolveServiceURL looks up a registered service by name within the
// services organization and returns the endpoint URL callers should be
// redirected to. The URL comes from the resource whose format is
// "service", falling back to the service_url extra.
func (svc *sourceSvc) ResolveServiceURL(ctx context.Context, identifier string) (string, error) {
	var err error
	ctx, span := tracer.Start(ctx, "resolve-service-url")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result, err := svc.repo.PackageSearch(ctx, catalog.SearchParams{
		Query:       "name:" + identifier,
		FilterQuery: []string{"owner_org:" + ServicesOrg},
		Rows:        10,
	})
	if err != nil {
		return "", fmt.Errorf("error retrieving service: %w", err)
	}

	if result.Count == 0 || len(result.Results) == 0 {
		err = fmt.Errorf("service '%s' not found: %w", identifier, catalog.ErrNotFound)
		return "", err
	}

	pkg := result.Results[0]

	for _, res := range pkg.Resources {
		if strings.EqualFold(res.Format, FormatService) {
			return res.URL, nil
		}
	}

	if u, ok := pkg.Extras.Get("service_url"); ok && u != "" {
		return u, nil
	}

	err = fmt.Errorf("service URL not found for '%s': %w", identifier, catalog.ErrNotFound)
	return "", err
}
