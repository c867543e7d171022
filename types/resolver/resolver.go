package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonpointer"
	"github.com/xeipuuv/gojsonreference"
	"golang.org/x/sync/errgroup"

	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
)

var ErrPointerNotFound = errors.New("pointer does not resolve")

// SchemaSource hands out schema documents by location.
type SchemaSource interface {
	Load(ctx context.Context, uri string) (*dataclasses.SchemaDocument, error)
}

// RefError reports a $ref that could not be followed. Document and Pointer
// locate the $ref, Ref is its value as written.
type RefError struct {
	Document string
	Pointer  string
	Ref      string
	Err      error
}

func (e *RefError) Error() string {
	return fmt.Sprintf("%s#%s: $ref %q: %v", e.Document, e.Pointer, e.Ref, e.Err)
}

func (e *RefError) Unwrap() error { return e.Err }

// keywords whose value is a single subschema
var schemaKeywords = map[string]bool{
	"additionalItems":      true,
	"additionalProperties": true,
	"contains":             true,
	"propertyNames":        true,
	"if":                   true,
	"then":                 true,
	"else":                 true,
	"not":                  true,
	"items":                true,
}

// keywords whose value is an array of subschemas
var schemaArrayKeywords = map[string]bool{
	"allOf": true,
	"anyOf": true,
	"oneOf": true,
	"items": true,
}

// keywords whose value maps names to subschemas
var schemaMapKeywords = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"definitions":       true,
	"$defs":             true,
	"dependencies":      true,
}

type Resolver struct {
	source      SchemaSource
	concurrency int
}

func NewResolver(source SchemaSource, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{
		source:      source,
		concurrency: concurrency,
	}
}

// reference is a $ref found while walking a document.
type reference struct {
	pointer string
	ref     string
	target  string
	// fragment of the target, "" for the whole document
	fragment string
}

// Resolve loads rootURI and every document it references, directly or not,
// breadth first. Each document is loaded once; reference cycles end the walk
// along that path and are reported by Graph.Cycles.
func (r *Resolver) Resolve(ctx context.Context, rootURI string) (*Graph, error) {
	root := helpers.NormalizeLocation(rootURI)
	graph := newGraph(root)

	// where each document was first referenced from, for error reporting
	discoveredBy := map[string]Edge{}
	pending := map[string][]reference{}
	frontier := []string{root}
	seen := map[string]bool{root: true}

	for len(frontier) > 0 {
		documents, err := r.loadLevel(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := []string{}
		for index, uri := range frontier {
			loaded := documents[index]
			if loaded.err != nil {
				if uri == root {
					return nil, fmt.Errorf("load root schema %s: %w", root, loaded.err)
				}
				edge := discoveredBy[uri]
				return nil, &RefError{Document: edge.From, Pointer: edge.Pointer, Ref: edge.Ref, Err: loaded.err}
			}

			graph.addNode(uri, loaded.document)

			references, err := collectReferences(loaded.document)
			if err != nil {
				return nil, err
			}
			for _, ref := range references {
				if ref.target == uri {
					continue
				}

				edge := Edge{From: uri, To: ref.target, Pointer: ref.pointer, Ref: ref.ref}
				graph.addEdge(edge)
				pending[ref.target] = append(pending[ref.target], reference{
					pointer:  uri + "#" + ref.pointer,
					ref:      ref.ref,
					fragment: ref.fragment,
				})

				if !seen[ref.target] {
					seen[ref.target] = true
					discoveredBy[ref.target] = edge
					next = append(next, ref.target)
				}
			}
		}
		frontier = next
	}

	// pointers into other documents can only be checked once all are loaded
	for _, target := range graph.Order {
		for _, ref := range pending[target] {
			if err := checkPointer(graph.Nodes[target].Document, ref.fragment); err != nil {
				document, pointer, _ := strings.Cut(ref.pointer, "#")
				return nil, &RefError{Document: document, Pointer: pointer, Ref: ref.ref, Err: err}
			}
		}
	}

	if cycles := graph.Cycles(); len(cycles) > 0 {
		config.GetLogger().Warnf("Schema %s has %d reference cycle(s): %v", root, len(cycles), cycles)
	}

	return graph, nil
}

type loadResult struct {
	document *dataclasses.SchemaDocument
	err      error
}

// loadLevel loads one breadth-first level concurrently. Results keep the
// order of uris.
func (r *Resolver) loadLevel(ctx context.Context, uris []string) ([]loadResult, error) {
	results := make([]loadResult, len(uris))

	group := errgroup.Group{}
	group.SetLimit(r.concurrency)
	for index, uri := range uris {
		group.Go(func() error {
			document, err := r.source.Load(ctx, uri)
			results[index] = loadResult{document: document, err: err}
			return nil
		})
	}
	group.Wait()

	return results, ctx.Err()
}

// collectReferences walks every subschema of a document and returns the
// references to other documents. Local references are checked on the spot.
func collectReferences(document *dataclasses.SchemaDocument) ([]reference, error) {
	base, err := gojsonreference.NewJsonReference(document.URI)
	if err != nil {
		return nil, err
	}

	walker := &walker{
		document:  document,
		resources: map[string]interface{}{document.URI: document.Document},
	}
	walker.collectResources(document.Document, &base, true)

	if err := walker.walkSchema(document.Document, &base, ""); err != nil {
		return nil, err
	}
	return walker.references, nil
}

type walker struct {
	document *dataclasses.SchemaDocument
	// documents embedded under a nested $id, by location
	resources  map[string]interface{}
	references []reference
}

func escapePointerToken(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~", "~0"), "/", "~1")
}

// scope returns the base location for a subschema, following a nested $id.
func scope(schema map[string]interface{}, base *gojsonreference.JsonReference, isRoot bool) *gojsonreference.JsonReference {
	if isRoot {
		return base
	}
	id, ok := schema["$id"].(string)
	if !ok || id == "" || strings.HasPrefix(id, "#") {
		return base
	}

	idRef, err := gojsonreference.NewJsonReference(id)
	if err != nil {
		return base
	}
	resolved, err := inherit(base, idRef)
	if err != nil {
		return base
	}
	return resolved
}

// inherit resolves child against base. Filesystem bases are joined as paths.
func inherit(base *gojsonreference.JsonReference, child gojsonreference.JsonReference) (*gojsonreference.JsonReference, error) {
	baseLocation := base.GetUrl().String()
	if helpers.IsRemoteURL(baseLocation) || helpers.IsStorageURL(baseLocation) || base.HasFileScheme {
		return base.Inherits(child)
	}

	if child.HasFullUrl {
		return &child, nil
	}

	location := helpers.StripFragment(baseLocation)
	if childPath := helpers.StripFragment(child.GetUrl().String()); childPath != "" {
		location = helpers.ResolveLocation(location, childPath)
	}
	if fragment := child.GetUrl().Fragment; fragment != "" {
		location += "#" + fragment
	}

	resolved, err := gojsonreference.NewJsonReference(location)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (w *walker) collectResources(node interface{}, base *gojsonreference.JsonReference, isRoot bool) {
	switch value := node.(type) {
	case map[string]interface{}:
		inner := scope(value, base, isRoot)
		if inner != base {
			w.resources[helpers.StripFragment(inner.String())] = value
		}
		for key, child := range value {
			if isDataKeyword(key) {
				continue
			}
			w.collectResources(child, inner, false)
		}
	case []interface{}:
		for _, child := range value {
			w.collectResources(child, base, false)
		}
	}
}

func isDataKeyword(key string) bool {
	switch key {
	case "enum", "const", "default", "examples":
		return true
	}
	return false
}

func (w *walker) walkSchema(node interface{}, base *gojsonreference.JsonReference, pointer string) error {
	schema, ok := node.(map[string]interface{})
	if !ok {
		// boolean schemas
		return nil
	}

	isRoot := pointer == ""
	base = scope(schema, base, isRoot)

	if ref, ok := schema["$ref"].(string); ok {
		if err := w.addReference(ref, base, pointer); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(schema))
	for key := range schema {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := schema[key]
		location := pointer + "/" + escapePointerToken(key)

		if schemaMapKeywords[key] {
			if children, ok := value.(map[string]interface{}); ok {
				names := make([]string, 0, len(children))
				for name := range children {
					names = append(names, name)
				}
				sort.Strings(names)

				for _, name := range names {
					if err := w.walkSchema(children[name], base, location+"/"+escapePointerToken(name)); err != nil {
						return err
					}
				}
			}
			continue
		}

		if schemaArrayKeywords[key] {
			if children, ok := value.([]interface{}); ok {
				for index, child := range children {
					if err := w.walkSchema(child, base, fmt.Sprintf("%s/%d", location, index)); err != nil {
						return err
					}
				}
				continue
			}
		}

		if schemaKeywords[key] {
			if err := w.walkSchema(value, base, location); err != nil {
				return err
			}
		}
		// enum, const, default, examples and unknown keywords hold data
	}

	return nil
}

func (w *walker) addReference(ref string, base *gojsonreference.JsonReference, pointer string) error {
	refError := func(err error) error {
		return &RefError{Document: w.document.URI, Pointer: pointer, Ref: ref, Err: err}
	}

	// fragments may be plain names, which gojsonreference rejects
	location, fragment, _ := strings.Cut(ref, "#")
	if unescaped, err := url.PathUnescape(fragment); err == nil {
		fragment = unescaped
	}

	child, err := gojsonreference.NewJsonReference(location)
	if err != nil {
		return refError(err)
	}

	resolved, err := inherit(base, child)
	if err != nil {
		return refError(err)
	}

	target := helpers.StripFragment(resolved.String())

	// the target is this document or a resource embedded in it
	if resource, found := w.resources[target]; found {
		if err := checkPointer(resource, fragment); err != nil {
			return refError(err)
		}
		return nil
	}

	w.references = append(w.references, reference{
		pointer:  pointer,
		ref:      ref,
		target:   helpers.NormalizeLocation(target),
		fragment: fragment,
	})
	return nil
}

// checkPointer verifies a fragment against a document. Plain name fragments
// (anchors) are not checked.
func checkPointer(document interface{}, fragment string) error {
	if fragment == "" || !strings.HasPrefix(fragment, "/") {
		return nil
	}

	jsonPointer, err := gojsonpointer.NewJsonPointer(fragment)
	if err != nil {
		return err
	}
	if _, _, err := jsonPointer.Get(document); err != nil {
		return fmt.Errorf("%w: #%s: %v", ErrPointerNotFound, fragment, err)
	}
	return nil
}
