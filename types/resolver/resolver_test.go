package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"stac-validator/test/factories"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/fetcher"
	"stac-validator/types/registries"
	"stac-validator/types/resolver"
)

type mapSource struct {
	sync.Mutex

	documents map[string]string
	loads     map[string]int
}

func newMapSource(documents map[string]string) *mapSource {
	return &mapSource{documents: documents, loads: make(map[string]int)}
}

func (s *mapSource) Load(ctx context.Context, uri string) (*dataclasses.SchemaDocument, error) {
	s.Lock()
	s.loads[uri]++
	raw, found := s.documents[uri]
	s.Unlock()

	if !found {
		return nil, fmt.Errorf("no schema at %s", uri)
	}
	return dataclasses.NewSchemaDocument(uri, []byte(raw), dataclasses.SchemaSourceFetch)
}

type ResolverTestSuite struct {
	suite.Suite
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (suite *ResolverTestSuite) cassetteRegistry() *registries.SchemaRegistry {
	recorder, err := factories.ReplayRecorder(factories.CassetteStacV1)
	suite.Require().NoError(err)

	schemasConfig := config.DefaultConfig().Schemas
	schemasConfig.SetClient(recorder.Client())
	schemasConfig.StrictIDs = true

	return registries.NewSchemaRegistry(fetcher.NewHTTPFetcher(schemasConfig), schemasConfig, nil)
}

func (suite *ResolverTestSuite) TestResolveItemSchema() {
	registry := suite.cassetteRegistry()

	graph, err := resolver.NewResolver(registry, 4).Resolve(context.Background(), factories.ItemSchemaURL+"#")
	suite.Require().NoError(err)

	base := factories.StacBaseURL + "/v1.0.0/item-spec/json-schema/"
	suite.Equal(factories.ItemSchemaURL, graph.Root)
	suite.Equal(
		[]string{
			factories.ItemSchemaURL,
			"https://geojson.org/schema/Feature.json",
			base + "basics.json",
			base + "datetime.json",
		},
		graph.Order,
	)
	suite.Len(graph.Nodes, 4)
	suite.True(graph.IsAcyclic())
	suite.Empty(graph.Cycles())

	order, err := graph.TopologicalOrder()
	suite.Require().NoError(err)
	suite.Len(order, 4)
	suite.Equal(factories.ItemSchemaURL, order[3])

	for _, uri := range graph.Order {
		suite.Equal(1, registry.FetchCount(uri), uri)
	}
}

func (suite *ResolverTestSuite) TestResolveCollectionSchemaSharesDocuments() {
	registry := suite.cassetteRegistry()
	_resolver := resolver.NewResolver(registry, 2)

	itemGraph, err := _resolver.Resolve(context.Background(), factories.ItemSchemaURL)
	suite.Require().NoError(err)
	collectionGraph, err := _resolver.Resolve(context.Background(), factories.CollectionSchemaURL)
	suite.Require().NoError(err)

	suite.Len(itemGraph.Nodes, 4)
	suite.Len(collectionGraph.Nodes, 5)
	suite.Equal([]string{factories.ItemSchemaURL}, collectionGraph.Adjacent(factories.CollectionSchemaURL))

	// the item schema was fetched for the first graph only
	suite.Equal(1, registry.FetchCount(factories.ItemSchemaURL))
	suite.Equal(1, registry.FetchCount(factories.CollectionSchemaURL))
}

func (suite *ResolverTestSuite) TestCycles() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{"properties": {"b": {"$ref": "b.json"}}, "definitions": {"x": {"type": "string"}}}`,
		"https://ex.com/b.json": `{"properties": {"a": {"$ref": "a.json#/definitions/x"}, "c": {"$ref": "c.json"}}}`,
		"https://ex.com/c.json": `{"type": "object"}`,
	})

	graph, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")
	suite.Require().NoError(err)

	suite.False(graph.IsAcyclic())
	suite.Equal(
		[][]string{{"https://ex.com/a.json", "https://ex.com/b.json", "https://ex.com/a.json"}},
		graph.Cycles(),
	)

	_, err = graph.TopologicalOrder()
	suite.ErrorIs(err, resolver.ErrCyclicGraph)

	for uri := range source.documents {
		suite.Equal(1, source.loads[uri], uri)
	}
}

func (suite *ResolverTestSuite) TestMissingPointer() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{"properties": {"x": {"$ref": "b.json#/definitions/missing"}}}`,
		"https://ex.com/b.json": `{"definitions": {"present": {}}}`,
	})

	_, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")

	var refErr *resolver.RefError
	suite.Require().True(errors.As(err, &refErr))
	suite.Equal("https://ex.com/a.json", refErr.Document)
	suite.Equal("/properties/x", refErr.Pointer)
	suite.Equal("b.json#/definitions/missing", refErr.Ref)
	suite.ErrorIs(err, resolver.ErrPointerNotFound)
}

func (suite *ResolverTestSuite) TestMissingLocalPointer() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{"allOf": [{"$ref": "#/definitions/nope"}]}`,
	})

	_, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")

	var refErr *resolver.RefError
	suite.Require().True(errors.As(err, &refErr))
	suite.Equal("/allOf/0", refErr.Pointer)
	suite.ErrorIs(err, resolver.ErrPointerNotFound)
}

func (suite *ResolverTestSuite) TestUnreachableDocument() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{"oneOf": [{"type": "null"}, {"$ref": "https://other.com/gone.json"}]}`,
	})

	_, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")

	var refErr *resolver.RefError
	suite.Require().True(errors.As(err, &refErr))
	suite.Equal("https://ex.com/a.json", refErr.Document)
	suite.Equal("/oneOf/1", refErr.Pointer)

	_, err = resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/none.json")
	suite.Error(err)
	suite.False(errors.As(err, &refErr))
}

func (suite *ResolverTestSuite) TestDataKeywordsAreNotFollowed() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{
			"enum": [{"$ref": "nothing.json"}],
			"default": {"$ref": "nothing.json"},
			"examples": [{"$ref": "nothing.json"}],
			"properties": {
				"enum": {"$ref": "b.json"},
				"const": {"const": {"$ref": "nothing.json"}}
			}
		}`,
		"https://ex.com/b.json": `{"type": "string"}`,
	})

	graph, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")
	suite.Require().NoError(err)
	suite.Equal([]string{"https://ex.com/a.json", "https://ex.com/b.json"}, graph.Order)
	suite.Equal(0, source.loads["https://ex.com/nothing.json"])
}

func (suite *ResolverTestSuite) TestEmbeddedResource() {
	source := newMapSource(map[string]string{
		"https://ex.com/a.json": `{
			"properties": {"name": {"$ref": "inner.json#/definitions/name"}},
			"definitions": {
				"inner": {
					"$id": "https://ex.com/inner.json",
					"definitions": {"name": {"type": "string"}},
					"properties": {"alias": {"$ref": "#/definitions/name"}}
				}
			}
		}`,
	})

	graph, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "https://ex.com/a.json")
	suite.Require().NoError(err)
	suite.Equal([]string{"https://ex.com/a.json"}, graph.Order)
	suite.Empty(graph.Edges)
	suite.Equal(0, source.loads["https://ex.com/inner.json"])
}

func (suite *ResolverTestSuite) TestFilesystemReferences() {
	source := newMapSource(map[string]string{
		"/schemas/a.json":     `{"properties": {"b": {"$ref": "sub/b.json"}}}`,
		"/schemas/sub/b.json": `{"properties": {"c": {"$ref": "../c.json#/definitions/c"}}}`,
		"/schemas/c.json":     `{"definitions": {"c": {"type": "integer"}}}`,
	})

	graph, err := resolver.NewResolver(source, 1).Resolve(context.Background(), "/schemas/a.json")
	suite.Require().NoError(err)
	suite.Equal([]string{"/schemas/a.json", "/schemas/sub/b.json", "/schemas/c.json"}, graph.Order)

	order, err := graph.TopologicalOrder()
	suite.Require().NoError(err)
	suite.Equal([]string{"/schemas/c.json", "/schemas/sub/b.json", "/schemas/a.json"}, order)
}
