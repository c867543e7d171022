package dataclasses_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"stac-validator/types/dataclasses"
)

type DataclassesTestSuite struct {
	suite.Suite
}

func TestDataclassesTestSuite(t *testing.T) {
	suite.Run(t, new(DataclassesTestSuite))
}

func (suite *DataclassesTestSuite) TestNewSchemaDocument() {
	uri := "https://schemas.stacspec.org/v1.0.0/item-spec/json-schema/item.json"

	document, err := dataclasses.NewSchemaDocument(
		uri,
		[]byte(`{"$schema": "http://json-schema.org/draft-07/schema#", "$id": "`+uri+`#"}`),
		dataclasses.SchemaSourceFetch,
	)
	suite.Require().NoError(err)
	suite.True(document.HasID())
	suite.True(document.IDMatches())
	suite.Equal("http://json-schema.org/draft-07/schema#", document.Draft)
	suite.Equal(dataclasses.SchemaSourceFetch, document.Source)

	document, err = dataclasses.NewSchemaDocument(
		uri,
		[]byte(`{"$id": "https://example.com/other.json"}`),
		dataclasses.SchemaSourceFetch,
	)
	suite.Require().NoError(err)
	suite.False(document.IDMatches())

	document, err = dataclasses.NewSchemaDocument(uri, []byte(`{"type": "object"}`), dataclasses.SchemaSourceInline)
	suite.Require().NoError(err)
	suite.False(document.HasID())
	suite.True(document.IDMatches())

	// draft-04 style identifier
	document, err = dataclasses.NewSchemaDocument(uri, []byte(`{"id": "`+uri+`"}`), dataclasses.SchemaSourceFetch)
	suite.Require().NoError(err)
	suite.Equal(uri, document.ID)
}

func (suite *DataclassesTestSuite) TestNewSchemaDocumentInvalid() {
	for _, raw := range []string{`{"type": `, `[1, 2]`, `"schema"`} {
		_, err := dataclasses.NewSchemaDocument("https://example.com/s.json", []byte(raw), dataclasses.SchemaSourceFetch)
		suite.True(errors.Is(err, dataclasses.ErrInvalidSchemaDocument), raw)
	}
}

func (suite *DataclassesTestSuite) TestIdentifyStacType() {
	type cases struct {
		data     map[string]interface{}
		stacType dataclasses.StacType
	}
	casesList := []cases{
		{map[string]interface{}{"type": "Feature"}, dataclasses.StacTypeItem},
		{map[string]interface{}{"type": "FeatureCollection"}, dataclasses.StacTypeItemCollection},
		{map[string]interface{}{"type": "Collection"}, dataclasses.StacTypeCollection},
		{map[string]interface{}{"type": "Catalog"}, dataclasses.StacTypeCatalog},
		{map[string]interface{}{"extent": map[string]interface{}{}}, dataclasses.StacTypeCollection},
		{map[string]interface{}{"geometry": nil}, dataclasses.StacTypeItem},
		{map[string]interface{}{"id": "root"}, dataclasses.StacTypeCatalog},
	}
	for _, _case := range casesList {
		stacType, err := dataclasses.IdentifyStacType(_case.data)
		suite.NoError(err)
		suite.Equal(_case.stacType, stacType)
	}

	_, err := dataclasses.IdentifyStacType(map[string]interface{}{"type": "Polygon"})
	suite.ErrorIs(err, dataclasses.ErrUnknownStacType)
}

func (suite *DataclassesTestSuite) TestNewStacObject() {
	object, err := dataclasses.NewStacObject(
		"catalog/item.json",
		[]byte(`{
			"type": "Feature",
			"stac_version": "1.0.0",
			"id": "item-1",
			"stac_extensions": ["https://stac-extensions.github.io/eo/v1.0.0/schema.json", 7]
		}`),
	)
	suite.Require().NoError(err)
	suite.Equal(dataclasses.StacTypeItem, object.Type)
	suite.Equal("1.0.0", object.Version)
	suite.Equal("item-1", object.GetID())
	suite.Equal([]string{"https://stac-extensions.github.io/eo/v1.0.0/schema.json"}, object.Extensions)

	object, err = dataclasses.NewStacObjectFromData(
		"collection.json",
		nil,
		map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}},
	)
	suite.Require().NoError(err)
	suite.Equal(dataclasses.StacTypeItem, object.SchemaType())
	suite.NotEmpty(object.Raw)

	_, err = dataclasses.NewStacObject("broken.json", []byte(`{`))
	suite.ErrorIs(err, dataclasses.ErrInvalidStacObject)
}

func (suite *DataclassesTestSuite) TestReport() {
	report := dataclasses.NewReport("catalog.json")
	suite.True(report.IsValid())
	suite.False(report.IsFinished())
	suite.NotEmpty(report.GetId())

	message := dataclasses.NewValidationMessage("catalog.json", dataclasses.ValidationMethodDefault)
	report.AddMessage(message)
	suite.True(report.IsValid())

	message = dataclasses.NewValidationMessage("item.json", dataclasses.ValidationMethodDefault)
	message.Fail(dataclasses.ErrorTypeValidation, "first")
	message.Fail(dataclasses.ErrorTypeFetch, "second")
	suite.Equal(dataclasses.ErrorTypeValidation, message.ErrorType)
	suite.Equal("first", message.ErrorMessage)

	report.AddMessage(message)
	suite.False(report.IsValid())
	suite.Len(report.GetMessages(), 2)

	report.Finish("logs")
	suite.True(report.IsFinished())
	suite.Equal("logs", report.Logs)
}

func (suite *DataclassesTestSuite) TestLinkCheckResult() {
	result := dataclasses.NewLinkCheckResult()
	suite.True(result.Valid())

	result.RequestInvalid = append(result.RequestInvalid, "https://example.com/missing.json")
	suite.False(result.Valid())
}

func (suite *DataclassesTestSuite) TestParseStorageLocation() {
	location, err := dataclasses.ParseStorageLocation("s3://stac/catalogs/root/catalog.json")
	suite.Require().NoError(err)
	suite.Equal("stac", location.GetBucket())
	suite.Equal("catalogs/root/catalog.json", location.GetKey())
	suite.Equal("s3://stac/catalogs/root/catalog.json", location.String())

	for _, uri := range []string{"https://stac/catalog.json", "s3://stac", "s3:///catalog.json"} {
		_, err := dataclasses.ParseStorageLocation(uri)
		suite.ErrorIs(err, dataclasses.ErrInvalidStorageLocation, uri)
	}
}
