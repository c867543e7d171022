package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/suite"

	"stac-validator/types/config"
)

const yamlConfig = `
log:
  level: debug
http_api_server:
  host: 127.0.0.1
  port: 9090
dns_sd:
  enabled: true
  service_name: stac-validator-test
storage:
  type: minio
  minio:
    credentials_path: /nonexistent/minio.json
schemas:
  stac_base_url: http://schemas.local/
  timeout: 5s
  strict_ids: true
  cache:
    enabled: true
  reliability:
    policy: exponential_backoff
    max_retries: 5
    retry_delay: 2s
    retry_codes: [500, 503]
cassette:
  path: fixtures/item.yaml
  mode: none
validation:
  max_depth: 3
  links: true
`

const tomlConfig = `
[log]
level = "error"

[http_api_server]
port = 7070

[schemas]
legacy_base_url = "http://legacy.local"
user_agent = "custom-agent"

[schemas.reliability]
policy = "none"

[validation]
concurrency = 2
assets = true
`

const minioCredentials = `{
	"bucket": "stac",
	"accessKey": "access",
	"secretKey": "secret",
	"api": "s3v4",
	"path": "auto",
	"url": "localhost:9000"
}`

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (suite *ConfigTestSuite) TestDefaultConfig() {
	_config := config.DefaultConfig()

	suite.Equal("info", _config.Log.Level)
	suite.Equal("0.0.0.0", _config.HTTPAPIServer.Host)
	suite.Equal(8080, _config.HTTPAPIServer.Port)
	suite.Equal(8080, _config.DNSSD.ServicePort)
	suite.Equal("stac-validator", _config.DNSSD.ServiceName)
	suite.False(_config.DNSSD.Enabled)
	suite.Equal(config.STORAGE_TYPE_LOCAL, _config.Storage.Type)
	suite.Equal("https://schemas.stacspec.org", _config.Schemas.StacBaseURL)
	suite.Equal("https://cdn.staclint.com", _config.Schemas.LegacyBaseURL)
	suite.Equal(30*time.Second, _config.Schemas.Timeout)
	suite.Equal("schemas", _config.Schemas.Cache.Prefix)
	suite.Equal(config.RELIABILITY_POLICY_EXPONENTIAL_BACKOFF, _config.Schemas.Reliability.Policy)
	suite.Equal([]int{429, 500, 502, 503, 504}, _config.Schemas.Reliability.RetryCodes)
	suite.Equal("once", _config.Cassette.Mode)
	suite.Equal(8, _config.Validation.Concurrency)
	suite.Equal(1000, _config.Validation.MaxReports)
	suite.Equal(config.DEFAULT_MAX_RETRIES, _config.Schemas.Reliability.Retries())
	suite.Empty(_config.HTTPAPIServer.FilesRoot)
}

func (suite *ConfigTestSuite) TestLoadYAMLConfig() {
	suite.writeFile("minio.json", minioCredentials)
	path := suite.writeFile("config.yaml", yamlConfig)

	_config, err := config.LoadConfig(path)
	suite.Require().NoError(err)

	suite.Equal("debug", _config.Log.Level)
	suite.Equal("127.0.0.1", _config.HTTPAPIServer.Host)
	suite.Equal(9090, _config.HTTPAPIServer.Port)
	suite.Equal(9090, _config.DNSSD.ServicePort)
	suite.True(_config.DNSSD.Enabled)
	suite.Equal("stac-validator-test", _config.DNSSD.ServiceName)

	// credentials are picked up next to the config file
	suite.Equal(config.STORAGE_TYPE_MINIO, _config.Storage.Type)
	suite.Equal("stac", _config.Storage.Minio.Bucket)
	suite.Equal("access", _config.Storage.Minio.AccessKey)
	suite.Equal("secret", _config.Storage.Minio.SecretKey)
	suite.Equal("localhost:9000", _config.Storage.Minio.Url)
	suite.Equal("/nonexistent/minio.json", _config.Storage.Minio.CredentialsPath)

	suite.Equal("http://schemas.local", _config.Schemas.StacBaseURL)
	suite.Equal(5*time.Second, _config.Schemas.Timeout)
	suite.True(_config.Schemas.StrictIDs)
	suite.True(_config.Schemas.Cache.Enabled)
	reliability := _config.Schemas.Reliability
	suite.Equal(config.RELIABILITY_POLICY_EXPONENTIAL_BACKOFF, reliability.Policy)
	suite.Equal(5, reliability.Retries())
	suite.Equal(2*time.Second, reliability.RetryDelay)
	suite.Equal(10*time.Second, reliability.MaxDelay)
	suite.Equal([]int{500, 503}, reliability.RetryCodes)
	suite.True(_config.Schemas.Reliability.IsRetryCode(503))
	suite.False(_config.Schemas.Reliability.IsRetryCode(404))

	suite.Equal("fixtures/item.yaml", _config.Cassette.Path)
	suite.Equal("none", _config.Cassette.Mode)
	suite.Equal(3, _config.Validation.MaxDepth)
	suite.True(_config.Validation.Links)
}

func (suite *ConfigTestSuite) TestLoadTOMLConfig() {
	path := suite.writeFile("config.toml", tomlConfig)

	_config, err := config.LoadConfig(path)
	suite.Require().NoError(err)

	suite.Equal("error", _config.Log.Level)
	suite.Equal(7070, _config.HTTPAPIServer.Port)
	suite.Equal("http://legacy.local", _config.Schemas.LegacyBaseURL)
	suite.Equal("https://schemas.stacspec.org", _config.Schemas.StacBaseURL)
	suite.Equal("custom-agent", _config.Schemas.UserAgent)
	suite.Equal(config.RELIABILITY_POLICY_NONE, _config.Schemas.Reliability.Policy)
	suite.Equal(0, _config.Schemas.Reliability.Retries())
	suite.Equal(2, _config.Validation.Concurrency)
	suite.True(_config.Validation.Assets)
}

func (suite *ConfigTestSuite) TestExplicitZeroRetries() {
	path := suite.writeFile("config.yaml", "schemas:\n  reliability:\n    max_retries: 0\n")

	_config, err := config.LoadConfig(path)
	suite.Require().NoError(err)

	suite.Equal(config.RELIABILITY_POLICY_EXPONENTIAL_BACKOFF, _config.Schemas.Reliability.Policy)
	suite.Require().NotNil(_config.Schemas.Reliability.MaxRetries)
	suite.Equal(0, _config.Schemas.Reliability.Retries())

	path = suite.writeFile("config.toml", "[schemas.reliability]\nmax_retries = 0\n")
	_config, err = config.LoadConfig(path)
	suite.Require().NoError(err)
	suite.Equal(0, _config.Schemas.Reliability.Retries())
}

func (suite *ConfigTestSuite) TestFilesRootAndReportLimit() {
	path := suite.writeFile("config.yaml", "http_api_server:\n  files_root: /srv/stac\nvalidation:\n  max_reports: 10\n")

	_config, err := config.LoadConfig(path)
	suite.Require().NoError(err)

	suite.Equal("/srv/stac", _config.HTTPAPIServer.FilesRoot)
	suite.Equal(10, _config.Validation.MaxReports)
}

func (suite *ConfigTestSuite) TestLoadConfigMissingCredentials() {
	path := suite.writeFile("config.yaml", yamlConfig)

	_, err := config.LoadConfig(path)
	suite.Error(err)
	suite.Contains(err.Error(), "minio credentials")
}

func (suite *ConfigTestSuite) TestLoadConfigMissingFile() {
	_, err := config.LoadConfig(filepath.Join(suite.dir, "missing.yaml"))
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestNewConfigFromEnvironment() {
	path := suite.writeFile("config.toml", tomlConfig)
	suite.T().Setenv("CONFIG_FILE", path)
	suite.T().Setenv("LOG_LEVEL", "debug")
	suite.T().Setenv("HTTP_API_PORT", "6060")
	suite.T().Setenv("CASSETTE_MODE", "once")

	_config := config.NewConfig()

	suite.Equal("debug", _config.Log.Level)
	suite.Equal(6060, _config.HTTPAPIServer.Port)
	suite.Equal(6060, _config.DNSSD.ServicePort)
	suite.Equal("once", _config.Cassette.Mode)
}

func (suite *ConfigTestSuite) TestNewConfigPanicsOnMissingExplicitFile() {
	suite.T().Setenv("CONFIG_FILE", filepath.Join(suite.dir, "missing.yaml"))

	suite.Panics(func() {
		config.NewConfig()
	})
}

func (suite *ConfigTestSuite) TestSchemasHTTPClient() {
	_config := config.DefaultConfig()

	client := _config.Schemas.GetHTTPClient()
	suite.NotNil(client)
	suite.Equal(30*time.Second, client.Timeout)
	suite.Same(client, _config.Schemas.GetHTTPClient())

	copied := _config
	suite.Same(client, copied.Schemas.GetClient())
}

func (suite *ConfigTestSuite) TestParseLevel() {
	suite.Equal(log.DEBUG, config.ParseLevel("debug"))
	suite.Equal(log.INFO, config.ParseLevel("INFO"))
	suite.Equal(log.ERROR, config.ParseLevel("error"))
	suite.Equal(log.OFF, config.ParseLevel("off"))
	suite.Equal(log.WARN, config.ParseLevel("unknown"))
}

func (suite *ConfigTestSuite) TestLoggerForEntity() {
	logger, buffer := config.GetLoggerForEntity("validation", "abc")
	suite.NotNil(logger)
	suite.NotNil(buffer)

	logger.SetLevel(log.INFO)
	logger.Info("resolving schemas")
	suite.Contains(buffer.String(), "resolving schemas")

	_, sameBuffer := config.GetLoggerForEntity("validation", "abc")
	suite.Same(buffer, sameBuffer)

	config.ReleaseLoggerForEntity("validation", "abc")
	_, freshBuffer := config.GetLoggerForEntity("validation", "abc")
	suite.NotSame(buffer, freshBuffer)
	config.ReleaseLoggerForEntity("validation", "abc")
}
