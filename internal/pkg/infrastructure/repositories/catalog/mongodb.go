package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/national-data-platform/ndp-ep/internal/pkg/domain"
)

// MongoDBRepository reimplements the catalog contract on top of three
// MongoDB collections, mimicking CKAN's document shapes and search
// semantics closely enough that callers cannot tell the backends apart.
type MongoDBRepository struct {
	client        *mongo.Client
	packages      *mongo.Collection
	resources     *mongo.Collection
	organizations *mongo.Collection
}

// NewMongoDBRepository connects to MongoDB and ensures the indexes the
// search paths rely on.
func NewMongoDBRepository(ctx context.Context, connectionString, databaseName string) (*MongoDBRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	db := client.Database(databaseName)

	repo := &MongoDBRepository{
		client:        client,
		packages:      db.Collection("packages"),
		resources:     db.Collection("resources"),
		organizations: db.Collection("organizations"),
	}

	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *MongoDBRepository) createIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := r.packages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "owner_org", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "notes", Value: "text"}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create package indexes: %w", err)
	}

	_, err = r.resources.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "package_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create resource indexes: %w", err)
	}

	_, err = r.organizations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return fmt.Errorf("failed to create organization indexes: %w", err)
	}

	return nil
}

// Stored document shapes. Extras live as a flat map so MongoDB can query
// individual keys; conversion to the external list-of-pairs shape happens
// on every read and write.
type packageDoc struct {
	ID               string            `bson:"id"`
	Name             string            `bson:"name"`
	Title            string            `bson:"title"`
	OwnerOrg         string            `bson:"owner_org"`
	Notes            string            `bson:"notes"`
	Extras           map[string]string `bson:"extras"`
	Resources        []resourceDoc     `bson:"resources"`
	State            string            `bson:"state"`
	Type             string            `bson:"type"`
	MetadataCreated  string            `bson:"metadata_created"`
	MetadataModified string            `bson:"metadata_modified"`
}

type resourceDoc struct {
	ID           string `bson:"id"`
	PackageID    string `bson:"package_id"`
	Name         string `bson:"name"`
	URL          string `bson:"url"`
	Description  string `bson:"description"`
	Format       string `bson:"format"`
	Size         int64  `bson:"size"`
	Created      string `bson:"created"`
	LastModified string `bson:"last_modified"`
}

type organizationDoc struct {
	ID          string `bson:"id"`
	Name        string `bson:"name"`
	Title       string `bson:"title"`
	Description string `bson:"description"`
	State       string `bson:"state"`
	Type        string `bson:"type"`
	Created     string `bson:"created"`
}

func (d packageDoc) toDomain() domain.Package {
	resources := make([]domain.Resource, 0, len(d.Resources))
	for _, res := range d.Resources {
		resources = append(resources, res.toDomain())
	}

	return domain.Package{
		ID:               d.ID,
		Name:             d.Name,
		Title:            d.Title,
		OwnerOrg:         d.OwnerOrg,
		Notes:            d.Notes,
		Extras:           domain.ExtrasFromMap(d.Extras),
		Resources:        resources,
		State:            d.State,
		Type:             d.Type,
		MetadataCreated:  d.MetadataCreated,
		MetadataModified: d.MetadataModified,
	}
}

func (d resourceDoc) toDomain() domain.Resource {
	return domain.Resource(d)
}

func (d organizationDoc) toDomain() domain.Organization {
	return domain.Organization(d)
}

// idOrName is the dual lookup filter used by every show operation, since
// CKAN accepts ids and names interchangeably.
func idOrName(id string) bson.M {
	return bson.M{"$or": bson.A{bson.M{"id": id}, bson.M{"name": id}}}
}

func nowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (r *MongoDBRepository) PackageCreate(ctx context.Context, create PackageCreate) (*domain.Package, error) {
	ownerOrg := create.OwnerOrg
	if ownerOrg != "" {
		// referential check, mimicking CKAN's server side validation
		var org organizationDoc
		err := r.organizations.FindOne(ctx, idOrName(ownerOrg)).Decode(&org)
		if err == mongo.ErrNoDocuments {
			return nil, ownerOrgValidationErr()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up organization: %w", err)
		}
		ownerOrg = org.ID
	}

	now := nowISO8601()
	doc := packageDoc{
		ID:               uuid.NewString(),
		Name:             create.Name,
		Title:            create.Title,
		OwnerOrg:         ownerOrg,
		Notes:            create.Notes,
		Extras:           create.Extras.ToMap(),
		Resources:        []resourceDoc{},
		State:            "active",
		Type:             "dataset",
		MetadataCreated:  now,
		MetadataModified: now,
	}

	if _, err := r.packages.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, alreadyExistsErr("package", create.Name)
		}
		return nil, fmt.Errorf("error creating package: %w", err)
	}

	pkg := doc.toDomain()
	return &pkg, nil
}

func (r *MongoDBRepository) PackageShow(ctx context.Context, id string) (*domain.Package, error) {
	var doc packageDoc

	err := r.packages.FindOne(ctx, idOrName(id)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFoundErr("package", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package: %w", err)
	}

	pkg := doc.toDomain()
	return &pkg, nil
}

func (r *MongoDBRepository) PackageUpdate(ctx context.Context, pkg domain.Package) (*domain.Package, error) {
	if pkg.ID == "" {
		return nil, fmt.Errorf("package id is required for update: %w", ErrValidation)
	}

	existing, err := r.PackageShow(ctx, pkg.ID)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"name":              pkg.Name,
		"title":             pkg.Title,
		"owner_org":         pkg.OwnerOrg,
		"notes":             pkg.Notes,
		"extras":            pkg.Extras.ToMap(),
		"metadata_modified": nowISO8601(),
	}
	if pkg.State != "" {
		update["state"] = pkg.State
	}

	_, err = r.packages.UpdateOne(ctx, bson.M{"id": existing.ID}, bson.M{"$set": update})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, alreadyExistsErr("package", pkg.Name)
		}
		return nil, fmt.Errorf("error updating package: %w", err)
	}

	return r.PackageShow(ctx, existing.ID)
}

func (r *MongoDBRepository) PackagePatch(ctx context.Context, patch PackagePatch) (*domain.Package, error) {
	if patch.ID == "" {
		return nil, fmt.Errorf("package id is required for patch: %w", ErrValidation)
	}

	existing, err := r.PackageShow(ctx, patch.ID)
	if err != nil {
		return nil, err
	}

	update := bson.M{"metadata_modified": nowISO8601()}
	if patch.Name != nil {
		update["name"] = *patch.Name
	}
	if patch.Title != nil {
		update["title"] = *patch.Title
	}
	if patch.OwnerOrg != nil {
		update["owner_org"] = *patch.OwnerOrg
	}
	if patch.Notes != nil {
		update["notes"] = *patch.Notes
	}
	if patch.Extras != nil {
		update["extras"] = patch.Extras.ToMap()
	}

	_, err = r.packages.UpdateOne(ctx, bson.M{"id": existing.ID}, bson.M{"$set": update})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) && patch.Name != nil {
			return nil, alreadyExistsErr("package", *patch.Name)
		}
		return nil, fmt.Errorf("error patching package: %w", err)
	}

	return r.PackageShow(ctx, existing.ID)
}

func (r *MongoDBRepository) PackageDelete(ctx context.Context, id string) error {
	pkg, err := r.PackageShow(ctx, id)
	if err != nil {
		return err
	}

	// cascade to child resources first, then remove the package itself;
	// the two deletes are not transactional so a concurrent reader may
	// observe an intermediate state
	if _, err := r.resources.DeleteMany(ctx, bson.M{"package_id": pkg.ID}); err != nil {
		return fmt.Errorf("error deleting package resources: %w", err)
	}

	result, err := r.packages.DeleteOne(ctx, bson.M{"id": pkg.ID})
	if err != nil {
		return fmt.Errorf("error deleting package: %w", err)
	}
	if result.DeletedCount == 0 {
		return notFoundErr("package", id)
	}

	return nil
}

func (r *MongoDBRepository) PackageSearch(ctx context.Context, params SearchParams) (*SearchResult, error) {
	filter := bson.M{}

	if params.Query != "" && params.Query != MatchAll {
		if clauses := parseQueryClauses(params.Query); len(clauses) > 0 {
			filter["$and"] = clauses
		}
	}

	for field, value := range parseFilterQuery(params.FilterQuery) {
		if field == "owner_org" {
			// accept the org's name as well as its id
			var org organizationDoc
			if err := r.organizations.FindOne(ctx, idOrName(value)).Decode(&org); err == nil {
				value = org.ID
			}
		}
		filter[field] = value
	}

	count, err := r.packages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error counting packages: %w", err)
	}

	// mongo treats limit 0 as "no limit", so a count only request has
	// to skip the find entirely
	if params.Rows == 0 {
		return &SearchResult{Count: int(count), Results: []domain.Package{}}, nil
	}

	findOpts := findOptions(params)

	cursor, err := r.packages.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("error searching packages: %w", err)
	}
	defer cursor.Close(ctx)

	results := []domain.Package{}
	for cursor.Next(ctx) {
		var doc packageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding package: %w", err)
		}

		pkg := doc.toDomain()

		// expand the owner_org reference inline, one extra lookup per
		// row (acceptable at this API's traffic levels)
		if pkg.OwnerOrg != "" {
			var org organizationDoc
			if err := r.organizations.FindOne(ctx, bson.M{"id": pkg.OwnerOrg}).Decode(&org); err == nil {
				o := org.toDomain()
				pkg.Organization = &o
			}
		}

		results = append(results, pkg)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return &SearchResult{Count: int(count), Results: results}, nil
}

// parseQueryClauses turns the Solr style queries the service layer builds
// ("name:my-service", "title:river AND notes:salinity") into case
// insensitive substring filters. Unscoped terms match any of title, notes
// and name; unknown scoped fields are looked up under extras. Escaping
// backslashes from EscapeSolrSpecialChars are stripped before matching.
func parseQueryClauses(query string) bson.A {
	clauses := bson.A{}

	for _, part := range strings.Split(query, " AND ") {
		field, term, scoped := strings.Cut(part, ":")
		if !scoped {
			term = part
		}
		term = strings.TrimSpace(strings.ReplaceAll(term, "\\", ""))
		if term == "" {
			continue
		}

		match := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}

		if scoped {
			field = strings.TrimSpace(field)
			switch field {
			case "name", "title", "notes", "owner_org":
			default:
				field = "extras." + field
			}
			clauses = append(clauses, bson.M{field: match})
			continue
		}

		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"title": match},
			bson.M{"notes": match},
			bson.M{"name": match},
		}})
	}

	return clauses
}

func findOptions(params SearchParams) *options.FindOptions {
	opts := options.Find().SetSkip(int64(params.Start))
	if params.Rows > 0 {
		opts.SetLimit(int64(params.Rows))
	}

	sort := params.Sort
	if sort == "" {
		sort = DefaultSort
	}
	if spec := parseSortSpec(sort); len(spec) > 0 {
		opts.SetSort(spec)
	}

	return opts
}

// parseFilterQuery converts Solr style "field:value" clauses into equality
// filters. This covers only the subset the service layer emits: single
// equality terms joined by AND, no OR, ranges or nesting.
func parseFilterQuery(clauses []string) map[string]string {
	filters := map[string]string{}

	for _, clause := range clauses {
		for _, item := range strings.Split(clause, " AND ") {
			field, value, found := strings.Cut(item, ":")
			if !found {
				continue
			}
			field = strings.TrimSpace(field)
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if field != "" {
				filters[field] = value
			}
		}
	}

	return filters
}

// parseSortSpec turns a Solr style sort string ("field asc, field2 desc")
// into a MongoDB sort document. Malformed clauses and the pseudo field
// "score" are dropped silently.
func parseSortSpec(sort string) bson.D {
	spec := bson.D{}

	for _, item := range strings.Split(sort, ",") {
		parts := strings.Fields(strings.TrimSpace(item))
		if len(parts) < 2 {
			continue
		}

		field := parts[0]
		if field == "score" {
			// no text relevance scoring in this backend
			continue
		}

		direction := -1
		if strings.Contains(strings.ToLower(parts[1]), "asc") {
			direction = 1
		}

		spec = append(spec, bson.E{Key: field, Value: direction})
	}

	return spec
}

func (r *MongoDBRepository) ResourceCreate(ctx context.Context, create ResourceCreate) (*domain.Resource, error) {
	if create.PackageID == "" {
		return nil, fmt.Errorf("package_id is required for resource creation: %w", ErrValidation)
	}

	pkg, err := r.PackageShow(ctx, create.PackageID)
	if err != nil {
		return nil, err
	}

	now := nowISO8601()
	doc := resourceDoc{
		ID:           uuid.NewString(),
		PackageID:    pkg.ID,
		Name:         create.Name,
		URL:          create.URL,
		Description:  create.Description,
		Format:       create.Format,
		Size:         create.Size,
		Created:      now,
		LastModified: now,
	}

	if _, err := r.resources.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("error creating resource: %w", err)
	}

	// the resource is duplicated inside the parent package for cheap
	// embedded reads; both writes must stay in sync on every mutation
	_, err = r.packages.UpdateOne(ctx, bson.M{"id": pkg.ID}, bson.M{
		"$push": bson.M{"resources": doc},
		"$set":  bson.M{"metadata_modified": now},
	})
	if err != nil {
		return nil, fmt.Errorf("error embedding resource in package: %w", err)
	}

	res := doc.toDomain()
	return &res, nil
}

func (r *MongoDBRepository) ResourceShow(ctx context.Context, id string) (*domain.Resource, error) {
	var doc resourceDoc

	err := r.resources.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFoundErr("resource", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resource: %w", err)
	}

	res := doc.toDomain()
	return &res, nil
}

func (r *MongoDBRepository) ResourcePatch(ctx context.Context, patch ResourcePatch) (*domain.Resource, error) {
	existing, err := r.ResourceShow(ctx, patch.ID)
	if err != nil {
		return nil, err
	}

	now := nowISO8601()
	update := bson.M{"last_modified": now}
	embedded := bson.M{"resources.$.last_modified": now}

	apply := func(field string, value *string) {
		if value != nil {
			update[field] = *value
			embedded["resources.$."+field] = *value
		}
	}
	apply("name", patch.Name)
	apply("url", patch.URL)
	apply("description", patch.Description)
	apply("format", patch.Format)

	if _, err := r.resources.UpdateOne(ctx, bson.M{"id": patch.ID}, bson.M{"$set": update}); err != nil {
		return nil, fmt.Errorf("error patching resource: %w", err)
	}

	// keep the embedded copy in the parent package in sync
	_, err = r.packages.UpdateOne(ctx,
		bson.M{"id": existing.PackageID, "resources.id": patch.ID},
		bson.M{"$set": embedded},
	)
	if err != nil {
		return nil, fmt.Errorf("error syncing embedded resource: %w", err)
	}

	_, err = r.packages.UpdateOne(ctx, bson.M{"id": existing.PackageID},
		bson.M{"$set": bson.M{"metadata_modified": now}})
	if err != nil {
		return nil, fmt.Errorf("error bumping package modification time: %w", err)
	}

	return r.ResourceShow(ctx, patch.ID)
}

func (r *MongoDBRepository) ResourceDelete(ctx context.Context, id string) error {
	resource, err := r.ResourceShow(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.resources.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("error deleting resource: %w", err)
	}

	_, err = r.packages.UpdateOne(ctx, bson.M{"id": resource.PackageID}, bson.M{
		"$pull": bson.M{"resources": bson.M{"id": id}},
		"$set":  bson.M{"metadata_modified": nowISO8601()},
	})
	if err != nil {
		return fmt.Errorf("error removing embedded resource: %w", err)
	}

	return nil
}

func (r *MongoDBRepository) OrganizationCreate(ctx context.Context, create OrganizationCreate) (*domain.Organization, error) {
	doc := organizationDoc{
		ID:          uuid.NewString(),
		Name:        create.Name,
		Title:       create.Title,
		Description: create.Description,
		State:       "active",
		Type:        "organization",
		Created:     nowISO8601(),
	}

	if _, err := r.organizations.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, alreadyExistsErr("organization", create.Name)
		}
		return nil, fmt.Errorf("error creating organization: %w", err)
	}

	org := doc.toDomain()
	return &org, nil
}

func (r *MongoDBRepository) OrganizationShow(ctx context.Context, id string) (*domain.Organization, error) {
	var doc organizationDoc

	err := r.organizations.FindOne(ctx, idOrName(id)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, notFoundErr("organization", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}

	org := doc.toDomain()
	return &org, nil
}

func (r *MongoDBRepository) OrganizationList(ctx context.Context) ([]domain.Organization, error) {
	cursor, err := r.organizations.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("error listing organizations: %w", err)
	}
	defer cursor.Close(ctx)

	orgs := []domain.Organization{}
	for cursor.Next(ctx) {
		var doc organizationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding organization: %w", err)
		}
		orgs = append(orgs, doc.toDomain())
	}

	return orgs, cursor.Err()
}

// OrganizationDelete removes the organization only. Packages owned by it
// are left in place, matching CKAN's behavior; the service layer cascades
// explicitly when that is wanted.
func (r *MongoDBRepository) OrganizationDelete(ctx context.Context, id string) error {
	org, err := r.OrganizationShow(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.organizations.DeleteOne(ctx, bson.M{"id": org.ID})
	if err != nil {
		return fmt.Errorf("error deleting organization: %w", err)
	}
	if result.DeletedCount == 0 {
		return notFoundErr("organization", id)
	}

	return nil
}

func (r *MongoDBRepository) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.client.Ping(ctx, readpref.Primary()) == nil
}
