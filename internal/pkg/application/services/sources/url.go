package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/national-data-platform/ndp-ep/internal/pkg/infrastructure/repositories/catalog"
)

var reservedURLKeys = reservedWith("url", "mapping", "processing", "file_type")

// urlFileTypes are the ingestion formats a URL source may declare.
var urlFileTypes = map[string]struct{}{
	"stream": {}, "CSV": {}, "TXT": {}, "JSON": {}, "NetCDF": {},
}

// URLRequest registers a plain URL source, optionally annotated with the
// file type of the content behind it.
type URLRequest struct {
	Name       string            `json:"resource_name"`
	Title      string            `json:"resource_title"`
	OwnerOrg   string            `json:"owner_org"`
	URL        string            `json:"resource_url"`
	FileType   string            `json:"file_type,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
	Mapping    map[string]any    `json:"mapping,omitempty"`
	Processing map[string]any    `json:"processing,omitempty"`
}

// URLUpdate modifies a URL source. Nil fields are not touched.
type URLUpdate struct {
	Name       *string           `json:"resource_name,omitempty"`
	Title      *string           `json:"resource_title,omitempty"`
	OwnerOrg   *string           `json:"owner_org,omitempty"`
	URL        *string           `json:"resource_url,omitempty"`
	FileType   *string           `json:"file_type,omitempty"`
	Notes      *string           `json:"notes,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
	Mapping    map[string]any    `json:"mapping,omitempty"`
	Processing map[string]any    `json:"processing,omitempty"`
}

// ValidFileType reports whether ft is one of the accepted file type
// labels. The empty string is allowed and means unspecified.
func ValidFileType(ft string) bool {
	if ft == "" {
		return true
	}
	_, ok := urlFileTypes[ft]
	return ok
}

func invalidFileTypeErr(ft string) error {
	allowed := make([]string, 0, len(urlFileTypes))
	for k := range urlFileTypes {
		allowed = append(allowed, k)
	}
	sort.Strings(allowed)
	return fmt.Errorf("file_type must be one of %s, got %q: %w", strings.Join(allowed, ", "), ft, catalog.ErrValidation)
}

func (svc *sourceSvc) AddURL(ctx context.Context, req URLRequest) (string, error) {
	if !ValidFileType(req.FileType) {
		return "", invalidFileTypeErr(req.FileType)
	}

	kindExtras := map[string]string{"url": req.URL}
	if req.FileType != "" {
		kindExtras["file_type"] = req.FileType
	}
	encodeJSONExtras(kindExtras, req.Mapping, req.Processing)

	return svc.createSource(ctx,
		baseFields{name: req.Name, title: req.Title, ownerOrg: req.OwnerOrg, notes: req.Notes},
		req.URL, FormatURL, "Resource pointing to "+req.URL,
		req.Extras, reservedURLKeys, kindExtras,
	)
}

func (svc *sourceSvc) UpdateURL(ctx context.Context, id string, upd URLUpdate) (string, error) {
	kindExtras, err := urlKindExtras(upd)
	if err != nil {
		return "", err
	}

	return svc.updateSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.URL, FormatURL, upd.Extras, reservedURLKeys, kindExtras,
	)
}

func (svc *sourceSvc) PatchURL(ctx context.Context, id string, upd URLUpdate) (string, error) {
	kindExtras, err := urlKindExtras(upd)
	if err != nil {
		return "", err
	}

	return svc.patchSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.URL, FormatURL, upd.Extras, reservedURLKeys, kindExtras,
	)
}

func urlKindExtras(upd URLUpdate) (map[string]string, error) {
	out := map[string]string{}
	if upd.URL != nil {
		out["url"] = *upd.URL
	}
	if upd.FileType != nil {
		if !ValidFileType(*upd.FileType) {
			return nil, invalidFileTypeErr(*upd.FileType)
		}
		out["file_type"] = *upd.FileType
	}
	encodeJSONExtras(out, upd.Mapping, upd.Processing)
	return out, nil
}
