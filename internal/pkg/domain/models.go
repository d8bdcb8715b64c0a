package domain

import "encoding/json"

// Extra is a single key value pair of free form metadata attached to a
// package. The ordered list of pairs is the canonical external shape,
// matching what CKAN returns.
type Extra struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Extras is an ordered collection of metadata pairs with map style helpers.
type Extras []Extra

// Get returns the value for key and whether it was present.
func (e Extras) Get(key string) (string, bool) {
	for _, x := range e {
		if x.Key == key {
			return x.Value, true
		}
	}
	return "", false
}

// ToMap flattens the pairs into a map. Later duplicates win.
func (e Extras) ToMap() map[string]string {
	m := make(map[string]string, len(e))
	for _, x := range e {
		m[x.Key] = x.Value
	}
	return m
}

// ExtrasFromMap converts a flat map into the list of pairs shape.
func ExtrasFromMap(m map[string]string) Extras {
	e := make(Extras, 0, len(m))
	for k, v := range m {
		e = append(e, Extra{Key: k, Value: v})
	}
	return e
}

// Resource is an external location registered under a package. The format
// field doubles as a kind discriminator ("s3", "kafka", "url", "service",
// "pelican", ...).
type Resource struct {
	ID           string `json:"id"`
	PackageID    string `json:"package_id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	Format       string `json:"format,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Created      string `json:"created,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// Package is a dataset record. Name is unique per backend and can be used
// interchangeably with ID on lookups.
type Package struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Title            string        `json:"title,omitempty"`
	OwnerOrg         string        `json:"owner_org,omitempty"`
	Notes            string        `json:"notes,omitempty"`
	Extras           Extras        `json:"extras,omitempty"`
	Resources        []Resource    `json:"resources"`
	State            string        `json:"state,omitempty"`
	Type             string        `json:"type,omitempty"`
	MetadataCreated  string        `json:"metadata_created,omitempty"`
	MetadataModified string        `json:"metadata_modified,omitempty"`
	Organization     *Organization `json:"organization,omitempty"`
}

// Organization owns packages. Name is unique per backend.
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	Type        string `json:"type,omitempty"`
	Created     string `json:"created,omitempty"`
}

// DataSource is the search response shape returned to API consumers, with
// extras flattened to a map and mapping/processing decoded when they hold
// embedded JSON.
type DataSource struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	OwnerOrg    string         `json:"owner_org,omitempty"`
	Description string         `json:"description,omitempty"`
	Resources   []Resource     `json:"resources"`
	Extras      map[string]any `json:"extras,omitempty"`
}

// NewDataSource converts a package into the externally served shape.
func NewDataSource(p Package) DataSource {
	extras := make(map[string]any, len(p.Extras))
	for _, x := range p.Extras {
		extras[x.Key] = x.Value
	}

	// mapping and processing hold JSON documents encoded as strings
	for _, key := range []string{"mapping", "processing"} {
		if raw, ok := extras[key].(string); ok {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
				extras[key] = decoded
			}
		}
	}

	ownerOrg := p.OwnerOrg
	if p.Organization != nil {
		ownerOrg = p.Organization.Name
	}

	resources := p.Resources
	if resources == nil {
		resources = []Resource{}
	}

	return DataSource{
		ID:          p.ID,
		Name:        p.Name,
		Title:       p.Title,
		OwnerOrg:    ownerOrg,
		Description: p.Notes,
		Resources:   resources,
		Extras:      extras,
	}
}
