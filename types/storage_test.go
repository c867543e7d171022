package types_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"

	"stac-validator/types"
	"stac-validator/types/config"
)

const (
	textContent string = "Hello, this is a plain text file. It contains some text data."
	jsonContent string = `{"stac_version": "1.0.0", "id": "catalog"}`
)

type StorageTestSuite struct {
	suite.Suite

	fs      afero.Fs
	storage *types.LocalStorage
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}

func (suite *StorageTestSuite) SetupTest() {
	suite.fs = afero.NewMemMapFs()
	suite.storage = types.NewLocalStorage(suite.fs, "/var/lib/stac-validator")
}

func (suite *StorageTestSuite) TestDetectMimeTypeFromBuffer() {
	type cases struct {
		content  string
		mimeType string
	}
	casesList := []cases{
		{textContent, "text/plain; charset=utf-8"},
		{jsonContent, "application/json"},
	}
	for _, _case := range casesList {
		buffer := bytes.NewBufferString(_case.content)
		mimeType := types.DetectMimeTypeFromBuffer(buffer)
		suite.Equal(_case.mimeType, mimeType.String())

		// detection must not consume the buffer
		suite.Equal(_case.content, buffer.String())
	}
}

func (suite *StorageTestSuite) TestLocalStorageRoundTrip() {
	ctx := context.Background()

	suite.False(suite.storage.ObjectExists(ctx, "schemas/abc.json"))

	err := suite.storage.PutObjectBytes(ctx, "schemas/abc.json", bytes.NewBufferString(jsonContent))
	suite.Require().NoError(err)
	suite.True(suite.storage.ObjectExists(ctx, "schemas/abc.json"))

	content, err := suite.storage.GetObjectBytes(ctx, "schemas/abc.json")
	suite.Require().NoError(err)
	suite.Equal(jsonContent, content.String())

	exists, err := afero.Exists(suite.fs, "/var/lib/stac-validator/schemas/abc.json")
	suite.NoError(err)
	suite.True(exists)
}

func (suite *StorageTestSuite) TestLocalStorageListObjects() {
	ctx := context.Background()

	objects, err := suite.storage.ListObjects(ctx, "")
	suite.NoError(err)
	suite.Empty(objects)

	for _, key := range []string{"schemas/b.json", "schemas/a.json", "reports/1.json"} {
		suite.Require().NoError(
			suite.storage.PutObjectBytes(ctx, key, bytes.NewBufferString(jsonContent)),
		)
	}

	objects, err = suite.storage.ListObjects(ctx, "schemas/")
	suite.NoError(err)
	suite.Equal([]string{"schemas/a.json", "schemas/b.json"}, objects)

	objects, err = suite.storage.ListObjects(ctx, "")
	suite.NoError(err)
	suite.Len(objects, 3)
}

func (suite *StorageTestSuite) TestLocalStorageGetMissingObject() {
	_, err := suite.storage.GetObjectBytes(context.Background(), "missing.json")
	suite.Error(err)
}

func (suite *StorageTestSuite) TestNewStorage() {
	storage, err := types.NewStorage(config.StorageConfig{
		Type:  config.STORAGE_TYPE_LOCAL,
		Local: config.LocalStorageConfig{RootPath: suite.T().TempDir()},
	})
	suite.NoError(err)
	suite.Equal("local", storage.GetStorageName())

	storage, err = types.NewStorage(config.StorageConfig{
		Type: config.STORAGE_TYPE_MINIO,
		Minio: config.MinioStorageConfig{
			Url:       "localhost:9000",
			Bucket:    "stac",
			AccessKey: "access",
			SecretKey: "secret",
		},
	})
	suite.NoError(err)
	suite.Equal("minio", storage.GetStorageName())
	suite.Equal("other", storage.(*types.MINIOStorage).WithBucket("other").GetBucket())

	_, err = types.NewStorage(config.StorageConfig{Type: "ftp"})
	suite.Error(err)
}

func (suite *StorageTestSuite) TestMDNSTXT() {
	_config := config.DefaultConfig()
	mdnsService := types.NewMDNS(_config)

	suite.Equal("stac-validator", mdnsService.DNSSDStatus.ServiceName)
	suite.Equal("_http._tcp.", mdnsService.DNSSDStatus.ServiceType)
	suite.Equal(8080, mdnsService.DNSSDStatus.ServicePort)
	suite.False(mdnsService.GetAvailable())
	suite.Empty(mdnsService.GetStacVersions())

	mdnsService.SetAvailable(true)
	mdnsService.SetStacVersions([]string{"1.0.0", "1.1.0"})
	suite.Equal(
		[]string{
			"version=" + config.VERSION,
			"available=true",
			"stac_versions=1.0.0,1.1.0",
		},
		mdnsService.GetTXT(),
	)

	// shutting down a server that never advertised is a no-op
	mdnsService.Shutdown()
}
