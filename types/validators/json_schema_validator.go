package validators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonreference"
	"github.com/xeipuuv/gojsonschema"

	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
	"stac-validator/types/interfaces"
	"stac-validator/types/resolver"
)

// JSONSchemaValidator compiles schemas from the documents of a schema
// registry. Every document of a reference graph is handed to gojsonschema
// up front; anything it still asks for is served by the registry too.
type JSONSchemaValidator struct {
	sync.Mutex

	registry interfaces.SchemaRegistry
	resolver *resolver.Resolver
	compiled map[string]*gojsonschema.Schema
	graphs   map[string]*resolver.Graph
}

// Ensure JSONSchemaValidator implements the SchemaValidator
var _ interfaces.SchemaValidator = (*JSONSchemaValidator)(nil)

func NewJSONSchemaValidator(registry interfaces.SchemaRegistry, concurrency int) *JSONSchemaValidator {
	RegisterFormatCheckers()

	return &JSONSchemaValidator{
		registry: registry,
		resolver: resolver.NewResolver(registry, concurrency),
		compiled: make(map[string]*gojsonschema.Schema),
		graphs:   make(map[string]*resolver.Graph),
	}
}

// Graph returns the reference graph of uri, resolving it on first use.
func (v *JSONSchemaValidator) Graph(ctx context.Context, uri string) (*resolver.Graph, error) {
	key := helpers.NormalizeLocation(uri)

	v.Lock()
	graph, found := v.graphs[key]
	v.Unlock()
	if found {
		return graph, nil
	}

	graph, err := v.resolver.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	v.Lock()
	v.graphs[key] = graph
	v.Unlock()

	return graph, nil
}

func (v *JSONSchemaValidator) Compile(ctx context.Context, uri string) error {
	_, err := v.compile(ctx, uri)
	return err
}

func (v *JSONSchemaValidator) compile(ctx context.Context, uri string) (*gojsonschema.Schema, error) {
	key := helpers.NormalizeLocation(uri)

	v.Lock()
	schema, found := v.compiled[key]
	v.Unlock()
	if found {
		return schema, nil
	}

	graph, err := v.Graph(ctx, key)
	if err != nil {
		return nil, err
	}

	factory := &registryLoaderFactory{ctx: ctx, registry: v.registry}

	schemaLoader := gojsonschema.NewSchemaLoader()
	schemaLoader.Draft = gojsonschema.Draft7
	schemaLoader.AutoDetect = true

	for _, nodeURI := range graph.Order {
		if err := schemaLoader.AddSchema(nodeURI, factory.New(nodeURI)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", nodeURI, err)
		}
	}

	schema, err = schemaLoader.Compile(factory.New(key))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", key, err)
	}

	v.Lock()
	v.compiled[key] = schema
	v.Unlock()

	config.GetLogger().Debugf("Compiled %s from %d documents", key, len(graph.Order))

	return schema, nil
}

// Validate checks document against the schema at uri. A nil slice with a nil
// error means the document is valid.
func (v *JSONSchemaValidator) Validate(ctx context.Context, uri string, document []byte) ([]dataclasses.ValidationError, error) {
	schema, err := v.compile(ctx, uri)
	if err != nil {
		return nil, err
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	validationErrors := make([]dataclasses.ValidationError, 0, len(result.Errors()))
	for _, resultError := range result.Errors() {
		validationErrors = append(validationErrors, dataclasses.ValidationError{
			Schema:      helpers.NormalizeLocation(uri),
			Field:       resultError.Field(),
			Type:        resultError.Type(),
			Description: resultError.Description(),
		})
	}
	return validationErrors, nil
}

// Reset drops compiled schemas and graphs, e.g. after the registry was reset.
func (v *JSONSchemaValidator) Reset() {
	v.Lock()
	defer v.Unlock()

	v.compiled = make(map[string]*gojsonschema.Schema)
	v.graphs = make(map[string]*resolver.Graph)
}

// ValidateSchemaString compiles a self-contained schema given as a string.
func (v *JSONSchemaValidator) ValidateSchemaString(schemaString string) (*gojsonschema.Schema, interface{}, error) {
	RegisterFormatCheckers()

	schemaLoader := gojsonschema.NewStringLoader(schemaString)
	schemaPtr, err := gojsonschema.NewSchema(schemaLoader)
	schema, _ := schemaLoader.LoadJSON()

	return schemaPtr, schema, err
}

// registryLoaderFactory makes gojsonschema read documents from the registry
// instead of its own HTTP client.
type registryLoaderFactory struct {
	ctx      context.Context
	registry interfaces.SchemaRegistry
}

func (f *registryLoaderFactory) New(source string) gojsonschema.JSONLoader {
	return &registryLoader{factory: f, source: source}
}

type registryLoader struct {
	factory *registryLoaderFactory
	source  string
}

func (l *registryLoader) JsonSource() interface{} {
	return l.source
}

// LoadJSON decodes a fresh copy on every call, gojsonschema rewrites $ref
// values in place.
func (l *registryLoader) LoadJSON() (interface{}, error) {
	document, err := l.factory.registry.Load(l.factory.ctx, l.source)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	decoder := json.NewDecoder(bytes.NewReader(document.Raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func (l *registryLoader) JsonReference() (gojsonreference.JsonReference, error) {
	return gojsonreference.NewJsonReference(helpers.NormalizeLocation(l.source))
}

func (l *registryLoader) LoaderFactory() gojsonschema.JSONLoaderFactory {
	return l.factory
}
