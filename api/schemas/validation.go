package schemas

import (
	"encoding/json"
	"time"

	"stac-validator/types/dataclasses"
	"stac-validator/types/resolver"
	"stac-validator/types/stac"
)

// ValidateRequestSchema is the JSON Schema a POST /validate body must
// satisfy before it is decoded.
const ValidateRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"oneOf": [
		{"required": ["url"]},
		{"required": ["document"]}
	],
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"document": {"type": "object"},
		"location": {"type": "string"},
		"mode": {"enum": ["default", "core", "extensions", "custom"]},
		"custom_schema": {"type": "string"},
		"recursive": {"type": "boolean"},
		"max_depth": {"type": "integer"},
		"links": {"type": "boolean"},
		"assets": {"type": "boolean"},
		"verbose": {"type": "boolean"}
	},
	"additionalProperties": false
}`

// ValidateInputSchema is the body of POST /validate. Exactly one of URL and
// Document is set.
//
// swagger:model
type ValidateInputSchema struct {
	// Location of the STAC object: URL, s3:// URI or server-side path
	// example: "https://example.com/catalog.json"
	URL string `json:"url,omitempty"`

	// Inline STAC object
	Document json.RawMessage `json:"document,omitempty"`

	// Location relative links of an inline document are resolved against
	// example: "https://example.com/items/item.json"
	Location string `json:"location,omitempty"`

	// example: "default"
	Mode         dataclasses.ValidationMethod `json:"mode,omitempty"`
	CustomSchema string                       `json:"custom_schema,omitempty"`
	Recursive    bool                         `json:"recursive,omitempty"`

	// Omitted fields keep the server defaults
	MaxDepth *int  `json:"max_depth,omitempty"`
	Links    *bool `json:"links,omitempty"`
	Assets   *bool `json:"assets,omitempty"`
	Verbose  bool  `json:"verbose,omitempty"`
}

// Options merges the request into the server defaults.
func (i *ValidateInputSchema) Options(defaults stac.Options) stac.Options {
	options := defaults

	if i.Mode != "" {
		options.Mode = i.Mode
	}
	options.CustomSchema = i.CustomSchema
	options.Recursive = i.Recursive
	options.Verbose = i.Verbose

	if i.MaxDepth != nil {
		options.MaxDepth = *i.MaxDepth
	}
	if i.Links != nil {
		options.Links = *i.Links
	}
	if i.Assets != nil {
		options.Assets = *i.Assets
	}

	return options
}

// DocumentLocation names an inline document.
func (i *ValidateInputSchema) DocumentLocation() string {
	if i.Location != "" {
		return i.Location
	}
	return "document.json"
}

// ErrorOutputSchema is the body of every error response.
//
// swagger:model
type ErrorOutputSchema struct {
	// example: "validation 3f0c... not found"
	Error string `json:"error"`

	// Set when a report was stored despite the error
	ReportID string `json:"report_id,omitempty"`
}

// HealthOutputSchema is the body of GET /health.
//
// swagger:model
type HealthOutputSchema struct {
	// example: "OK"
	Status       string   `json:"status"`
	Version      string   `json:"version"`
	StacVersions []string `json:"stac_versions"`
}

// SchemaOutputSchema describes one schema document held by the registry.
//
// swagger:model
type SchemaOutputSchema struct {
	URI        string                   `json:"uri"`
	ID         string                   `json:"id,omitempty"`
	Draft      string                   `json:"draft,omitempty"`
	Source     dataclasses.SchemaSource `json:"source"`
	FetchedAt  time.Time                `json:"fetched_at"`
	FetchCount int                      `json:"fetch_count"`
}

func NewSchemaOutputSchema(document *dataclasses.SchemaDocument, fetchCount int) SchemaOutputSchema {
	return SchemaOutputSchema{
		URI:        document.URI,
		ID:         document.ID,
		Draft:      document.Draft,
		Source:     document.Source,
		FetchedAt:  document.FetchedAt,
		FetchCount: fetchCount,
	}
}

// GraphOutputSchema is the reference graph of a schema.
//
// swagger:model
type GraphOutputSchema struct {
	Root        string          `json:"root"`
	Order       []string        `json:"order"`
	Topological []string        `json:"topological,omitempty"`
	Edges       []resolver.Edge `json:"edges"`
	Cycles      [][]string      `json:"cycles"`
	Acyclic     bool            `json:"acyclic"`
}

func NewGraphOutputSchema(graph *resolver.Graph) GraphOutputSchema {
	output := GraphOutputSchema{
		Root:    graph.Root,
		Order:   graph.Order,
		Edges:   graph.Edges,
		Cycles:  graph.Cycles(),
		Acyclic: graph.IsAcyclic(),
	}
	if output.Cycles == nil {
		output.Cycles = [][]string{}
	}
	if order, err := graph.TopologicalOrder(); err == nil {
		output.Topological = order
	}
	return output
}
