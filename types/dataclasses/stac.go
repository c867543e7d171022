package dataclasses

import (
	"encoding/json"
	"errors"
	"fmt"

	"stac-validator/types/helpers"
)

var (
	ErrInvalidStacObject = errors.New("invalid STAC object")
	ErrUnknownStacType   = errors.New("unknown STAC object type")
)

type StacType string

const (
	StacTypeItem           StacType = "item"
	StacTypeCollection     StacType = "collection"
	StacTypeCatalog        StacType = "catalog"
	StacTypeItemCollection StacType = "item-collection"
)

// StacObject is a decoded STAC document together with where it was read from.
type StacObject struct {
	Path       string
	Raw        []byte
	Data       map[string]interface{}
	Type       StacType
	Version    string
	Extensions []string
}

func NewStacObject(path string, raw []byte) (*StacObject, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidStacObject, path, err)
	}

	data, ok := document.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s: root is not an object", ErrInvalidStacObject, path)
	}

	return NewStacObjectFromData(path, raw, data)
}

// NewStacObjectFromData wraps an already decoded object. raw may be nil, in
// which case it is re-encoded from data.
func NewStacObjectFromData(path string, raw []byte, data map[string]interface{}) (*StacObject, error) {
	stacType, err := IdentifyStacType(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if raw == nil {
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidStacObject, path, err)
		}
	}

	version, _ := helpers.GetValue[string](data, "stac_version")

	return &StacObject{
		Path:       path,
		Raw:        raw,
		Data:       data,
		Type:       stacType,
		Version:    version,
		Extensions: helpers.GetStringList(data, "stac_extensions"),
	}, nil
}

// IdentifyStacType follows the "type" field; objects written before it was
// mandatory are told apart by their shape.
func IdentifyStacType(data map[string]interface{}) (StacType, error) {
	if objectType, ok := data["type"].(string); ok {
		switch objectType {
		case "Feature":
			return StacTypeItem, nil
		case "FeatureCollection":
			return StacTypeItemCollection, nil
		case "Collection":
			return StacTypeCollection, nil
		case "Catalog":
			return StacTypeCatalog, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownStacType, objectType)
	}

	if _, ok := data["extent"]; ok {
		return StacTypeCollection, nil
	}
	if _, ok := data["geometry"]; ok {
		return StacTypeItem, nil
	}
	if _, ok := data["features"]; ok {
		return StacTypeItemCollection, nil
	}
	return StacTypeCatalog, nil
}

func (o *StacObject) GetID() string {
	id, _ := helpers.GetValue[string](o.Data, "id")
	return id
}

// SchemaType is the object type used to pick the core schema. Item
// collections are validated feature by feature against the item schema.
func (o *StacObject) SchemaType() StacType {
	if o.Type == StacTypeItemCollection {
		return StacTypeItem
	}
	return o.Type
}
