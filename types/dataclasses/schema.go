package dataclasses

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stac-validator/types/helpers"
)

var ErrInvalidSchemaDocument = errors.New("invalid schema document")

// SchemaSource tells where a schema document came from.
type SchemaSource string

const (
	SchemaSourceFetch   SchemaSource = "fetch"
	SchemaSourceStorage SchemaSource = "storage"
	SchemaSourceInline  SchemaSource = "inline"
)

// SchemaDocument is a fetched JSON Schema document, kept both as the raw
// bytes (handed to the schema compiler untouched) and decoded (for walking).
type SchemaDocument struct {
	URI       string                 `json:"uri"`
	ID        string                 `json:"id,omitempty"`
	Draft     string                 `json:"draft,omitempty"`
	Raw       []byte                 `json:"-"`
	Document  map[string]interface{} `json:"-"`
	Source    SchemaSource           `json:"source"`
	FetchedAt time.Time              `json:"fetched_at"`
}

func NewSchemaDocument(uri string, raw []byte, source SchemaSource) (*SchemaDocument, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchemaDocument, uri, err)
	}

	object, ok := document.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s: root is not an object", ErrInvalidSchemaDocument, uri)
	}

	schemaDocument := &SchemaDocument{
		URI:       uri,
		Raw:       raw,
		Document:  object,
		Source:    source,
		FetchedAt: time.Now(),
	}

	// draft-04 documents still use "id"
	if id, ok := object["$id"].(string); ok {
		schemaDocument.ID = id
	} else if id, ok := object["id"].(string); ok {
		schemaDocument.ID = id
	}
	if draft, ok := object["$schema"].(string); ok {
		schemaDocument.Draft = draft
	}

	return schemaDocument, nil
}

func (d *SchemaDocument) HasID() bool {
	return d.ID != ""
}

// IDMatches reports whether the declared $id names the URI the document was
// requested from. Documents without an $id match trivially.
func (d *SchemaDocument) IDMatches() bool {
	if !d.HasID() {
		return true
	}
	return helpers.StripFragment(d.ID) == helpers.StripFragment(d.URI)
}

// IDMismatchError is returned when a fetched schema declares an $id that
// differs from the URI it was requested from.
type IDMismatchError struct {
	URI string
	ID  string
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("schema fetched from %s declares $id %s", e.URI, e.ID)
}
