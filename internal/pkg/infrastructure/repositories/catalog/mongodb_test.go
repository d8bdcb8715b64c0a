package catalog

import (
	"testing"

	"github.com/matryer/is"
	"go.mongodb.org/mongo-driver/bson"
)

func TestParseFilterQuery(t *testing.T) {
	is := is.New(t)

	filters := parseFilterQuery([]string{"owner_org:services"})
	is.Equal(filters["owner_org"], "services")

	filters = parseFilterQuery([]string{`owner_org:"noaa" AND type:dataset`})
	is.Equal(filters["owner_org"], "noaa") // quotes stripped
	is.Equal(filters["type"], "dataset")

	filters = parseFilterQuery([]string{"malformed clause without colon"})
	is.Equal(len(filters), 0)

	filters = parseFilterQuery(nil)
	is.Equal(len(filters), 0)
}

func TestParseQueryClauses(t *testing.T) {
	is := is.New(t)

	// the fielded lookup service URL resolution relies on
	clauses := parseQueryClauses("name:my\\-service")
	is.Equal(len(clauses), 1)
	is.Equal(clauses[0], bson.M{"name": bson.M{"$regex": "my-service", "$options": "i"}})

	// multi term AND, unknown fields fall back to extras
	clauses = parseQueryClauses("title:river AND station:buoy\\-7")
	is.Equal(len(clauses), 2)
	is.Equal(clauses[0], bson.M{"title": bson.M{"$regex": "river", "$options": "i"}})
	is.Equal(clauses[1], bson.M{"extras.station": bson.M{"$regex": "buoy-7", "$options": "i"}})

	// unscoped term matches any of title, notes and name
	clauses = parseQueryClauses("temperature")
	is.Equal(len(clauses), 1)
	or, ok := clauses[0].(bson.M)["$or"].(bson.A)
	is.True(ok)
	is.Equal(len(or), 3)

	is.Equal(len(parseQueryClauses("  ")), 0)
}

func TestFindOptions(t *testing.T) {
	is := is.New(t)

	opts := findOptions(SearchParams{Start: 10, Rows: 5})
	is.Equal(*opts.Skip, int64(10))
	is.Equal(*opts.Limit, int64(5))

	// a negative row count means unlimited
	opts = findOptions(SearchParams{Rows: -1})
	is.True(opts.Limit == nil)
}

func TestParseSortSpec(t *testing.T) {
	is := is.New(t)

	spec := parseSortSpec("metadata_modified desc")
	is.Equal(len(spec), 1)
	is.Equal(spec[0], bson.E{Key: "metadata_modified", Value: -1})

	spec = parseSortSpec("name asc, metadata_modified desc")
	is.Equal(len(spec), 2)
	is.Equal(spec[0], bson.E{Key: "name", Value: 1})
	is.Equal(spec[1], bson.E{Key: "metadata_modified", Value: -1})

	// score has no meaning here and is dropped
	spec = parseSortSpec(DefaultSort)
	is.Equal(len(spec), 1)
	is.Equal(spec[0].Key, "metadata_modified")

	spec = parseSortSpec("")
	is.Equal(len(spec), 0)
}
