package helpers_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"stac-validator/types/helpers"
)

func TestGetValue(t *testing.T) {
	data := map[string]interface{}{
		"string":  "value",
		"boolean": true,
		"number":  1,
		"properties": map[string]interface{}{
			"datetime": "2020-12-11T22:38:32Z",
		},
	}

	valueString, err := helpers.GetValue[string](data, "string")
	assert.Nil(t, err)
	assert.Equal(t, "value", valueString)

	valueBool, err := helpers.GetValue[bool](data, "boolean")
	assert.Nil(t, err)
	assert.Equal(t, true, valueBool)

	valueNumber, err := helpers.GetValue[int](data, "number")
	assert.Nil(t, err)
	assert.Equal(t, 1, valueNumber)

	datetime, err := helpers.GetValue[string](data, "properties.datetime")
	assert.Nil(t, err)
	assert.Equal(t, "2020-12-11T22:38:32Z", datetime)

	_, err = helpers.GetValue[string](data, "number")
	assert.Error(t, err)

	_, err = helpers.GetValue[string](data, "missing")
	assert.Error(t, err)
}

func TestGetStringList(t *testing.T) {
	data := map[string]interface{}{
		"stac_extensions": []interface{}{"eo", 1, "proj"},
		"id":              "item",
	}

	assert.Equal(t, []string{"eo", "proj"}, helpers.GetStringList(data, "stac_extensions"))
	assert.Equal(t, []string{}, helpers.GetStringList(data, "id"))
	assert.Equal(t, []string{}, helpers.GetStringList(data, "missing"))
}

func TestHashInput(t *testing.T) {
	assert.Equal(t, helpers.HashInput("catalog.json"), helpers.HashInput("catalog.json"))
	assert.NotEqual(t, helpers.HashInput("catalog.json"), helpers.HashInput("item.json"))
	assert.Len(t, helpers.HashInput(""), 64)
}

func TestStripFragment(t *testing.T) {
	assert.Equal(t, "https://example.com/item.json", helpers.StripFragment("https://example.com/item.json#"))
	assert.Equal(t, "/data/item.json", helpers.StripFragment("/data/item.json#/features/0"))
	assert.Equal(t, "item.json", helpers.StripFragment("item.json"))
}

func TestLocationKinds(t *testing.T) {
	assert.True(t, helpers.IsRemoteURL("HTTPS://example.com/catalog.json"))
	assert.False(t, helpers.IsRemoteURL("s3://bucket/catalog.json"))
	assert.True(t, helpers.IsStorageURL("s3://bucket/catalog.json"))
	assert.False(t, helpers.IsStorageURL("/data/catalog.json"))
}

func TestResolveLocation(t *testing.T) {
	cases := []struct {
		base     string
		href     string
		expected string
	}{
		{"https://example.com/stac/catalog.json", "./collection/collection.json", "https://example.com/stac/collection/collection.json"},
		{"https://example.com/stac/items/item.json", "../catalog.json", "https://example.com/stac/catalog.json"},
		{"https://example.com/stac/catalog.json", "https://other.org/item.json", "https://other.org/item.json"},
		{"s3://bucket/stac/catalog.json", "items/item.json", "s3://bucket/stac/items/item.json"},
		{"/data/stac/catalog.json", "./collection/collection.json", "/data/stac/collection/collection.json"},
		{"/data/stac/items/item.json", "../catalog.json", "/data/stac/catalog.json"},
		{"/data/stac/catalog.json", "/other/item.json", "/other/item.json"},
		{"/data/stac/catalog.json", "", "/data/stac/catalog.json"},
	}

	for _, c := range cases {
		assert.Equal(t, filepath.FromSlash(c.expected), filepath.FromSlash(helpers.ResolveLocation(c.base, c.href)), c.base+" + "+c.href)
	}
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "https://example.com/item.json", helpers.NormalizeLocation("https://example.com/item.json#"))
	assert.Equal(t, "s3://bucket/item.json", helpers.NormalizeLocation("s3://bucket/item.json"))
	assert.Equal(t, "", helpers.NormalizeLocation(""))

	absolute, err := filepath.Abs("item.json")
	assert.NoError(t, err)
	assert.Equal(t, absolute, helpers.NormalizeLocation("item.json#/features/0"))
}
