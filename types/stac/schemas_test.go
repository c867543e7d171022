package stac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stac-validator/test/factories"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/stac"
)

func TestCoreSchemaURL(t *testing.T) {
	schemasConfig := config.DefaultConfig().Schemas

	cases := []struct {
		version  string
		stacType dataclasses.StacType
		expected string
	}{
		{"1.0.0", dataclasses.StacTypeItem, factories.ItemSchemaURL},
		{"v1.0.0", dataclasses.StacTypeCollection, factories.CollectionSchemaURL},
		{"1.0.0", dataclasses.StacTypeCatalog, factories.CatalogSchemaURL},
		{"1.1.0", dataclasses.StacTypeItem, "https://schemas.stacspec.org/v1.1.0/item-spec/json-schema/item.json"},
		{"1.0.0-rc.2", dataclasses.StacTypeItem, "https://schemas.stacspec.org/v1.0.0-rc.2/item-spec/json-schema/item.json"},
		{"1.0.0-beta.2", dataclasses.StacTypeCatalog, "https://schemas.stacspec.org/v1.0.0-beta.2/catalog-spec/json-schema/catalog.json"},
		{"1.0.0-beta.1", dataclasses.StacTypeItem, "https://cdn.staclint.com/v1.0.0-beta.1/item.json"},
		{"0.9.0", dataclasses.StacTypeCollection, "https://cdn.staclint.com/v0.9.0/collection.json"},
	}

	for _, c := range cases {
		actual, err := stac.CoreSchemaURL(schemasConfig, c.version, c.stacType)
		assert.NoError(t, err, c.version)
		assert.Equal(t, c.expected, actual, c.version)
	}

	for _, version := range []string{"", "one", "1.x"} {
		_, err := stac.CoreSchemaURL(schemasConfig, version, dataclasses.StacTypeItem)
		assert.ErrorIs(t, err, stac.ErrInvalidVersion, version)
	}
}

func TestExtensionSchemaURL(t *testing.T) {
	schemasConfig := config.DefaultConfig().Schemas

	actual, err := stac.ExtensionSchemaURL(schemasConfig, factories.EOExtension, "1.0.0", "/data/item.json")
	assert.NoError(t, err)
	assert.Equal(t, factories.EOExtension, actual)

	actual, err = stac.ExtensionSchemaURL(schemasConfig, "./extensions/custom.json", "1.0.0", "/data/item.json")
	assert.NoError(t, err)
	assert.Equal(t, "/data/extensions/custom.json", actual)

	actual, err = stac.ExtensionSchemaURL(schemasConfig, "../schema.json", "1.0.0", "https://example.com/stac/items/item.json")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/stac/schema.json", actual)

	actual, err = stac.ExtensionSchemaURL(schemasConfig, "eo", "0.9.0", "/data/item.json")
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.staclint.com/v0.9.0/extension/eo.json", actual)

	_, err = stac.ExtensionSchemaURL(schemasConfig, "eo", "", "/data/item.json")
	assert.ErrorIs(t, err, stac.ErrInvalidVersion)

	_, err = stac.ExtensionSchemaURL(schemasConfig, " ", "1.0.0", "/data/item.json")
	assert.Error(t, err)
}
