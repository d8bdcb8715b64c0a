package sources

import (
	"context"
	"encoding/json"
)

var reservedS3Keys = reservedWith()

// S3Request registers an S3 backed source: a package plus a resource of
// format "s3" pointing at the object URL.
type S3Request struct {
	Name       string            `json:"resource_name"`
	Title      string            `json:"resource_title"`
	OwnerOrg   string            `json:"owner_org"`
	S3URL      string            `json:"resource_s3"`
	Notes      string            `json:"notes,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
	Mapping    map[string]any    `json:"mapping,omitempty"`
	Processing map[string]any    `json:"processing,omitempty"`
}

// S3Update modifies an S3 source. Nil fields are not touched.
type S3Update struct {
	Name     *string           `json:"resource_name,omitempty"`
	Title    *string           `json:"resource_title,omitempty"`
	OwnerOrg *string           `json:"owner_org,omitempty"`
	S3URL    *string           `json:"resource_s3,omitempty"`
	Notes    *string           `json:"notes,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
}

func (svc *sourceSvc) AddS3(ctx context.Context, req S3Request) (string, error) {
	kindExtras := map[string]string{}
	encodeJSONExtras(kindExtras, req.Mapping, req.Processing)

	return svc.createSource(ctx,
		baseFields{name: req.Name, title: req.Title, ownerOrg: req.OwnerOrg, notes: req.Notes},
		req.S3URL, FormatS3, "Resource pointing to "+req.S3URL,
		req.Extras, reservedS3Keys, kindExtras,
	)
}

func (svc *sourceSvc) UpdateS3(ctx context.Context, id string, upd S3Update) (string, error) {
	return svc.updateSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.S3URL, FormatS3, upd.Extras, reservedS3Keys, nil,
	)
}

func (svc *sourceSvc) PatchS3(ctx context.Context, id string, upd S3Update) (string, error) {
	return svc.patchSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		upd.S3URL, FormatS3, upd.Extras, reservedS3Keys, nil,
	)
}

// encodeJSONExtras stores mapping/processing documents as JSON strings in
// the extras map, the encoding both backends expect.
func encodeJSONExtras(extras map[string]string, mapping, processing map[string]any) {
	if len(mapping) > 0 {
		if b, err := json.Marshal(mapping); err == nil {
			extras["mapping"] = string(b)
		}
	}
	if len(processing) > 0 {
		if b, err := json.Marshal(processing); err == nil {
			extras["processing"] = string(b)
		}
	}
}
