package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	VERSION     = "1.2.0"
	CONFIG_FILE = "config/config.yaml"

	STORAGE_TYPE_LOCAL = "local"
	STORAGE_TYPE_MINIO = "minio"

	RELIABILITY_POLICY_NONE                = "none"
	RELIABILITY_POLICY_EXPONENTIAL_BACKOFF = "exponential_backoff"

	DEFAULT_MAX_RETRIES = 3
)

var (
	config     Config
	onceConfig sync.Once
)

func GetConfig(forceNewInstance ...bool) Config {
	if len(forceNewInstance) > 0 && forceNewInstance[0] {
		newInstance := NewConfig()
		config = newInstance
		onceConfig = sync.Once{}
		onceConfig.Do(func() {})
		return newInstance
	}

	onceConfig.Do(func() {
		config = NewConfig()
	})

	return config
}

type Config struct {
	Log           LogConfig        `yaml:"log" toml:"log" json:"-"`
	HTTPAPIServer HTTPAPIServer    `yaml:"http_api_server" toml:"http_api_server" json:"-"`
	DNSSD         DNSSD            `yaml:"dns_sd" toml:"dns_sd" json:"-"`
	Storage       StorageConfig    `yaml:"storage" toml:"storage" json:"-"`
	Schemas       *SchemasConfig   `yaml:"schemas" toml:"schemas" json:"-"`
	Cassette      CassetteConfig   `yaml:"cassette" toml:"cassette" json:"-"`
	Validation    ValidationConfig `yaml:"validation" toml:"validation" json:"-"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level" json:"-"`
}

type HTTPAPIServer struct {
	Host string `yaml:"host" toml:"host" json:"-"`
	Port int    `yaml:"port" toml:"port" json:"-"`
	// FilesRoot exposes the local files below it to validation requests.
	// Empty keeps the server to http(s) and s3:// locations.
	FilesRoot string `yaml:"files_root" toml:"files_root" json:"-"`
}

type DNSSD struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled" json:"-"`
	ServiceName   string `yaml:"service_name" toml:"service_name" json:"-"`
	ServiceType   string `yaml:"service_type" toml:"service_type" json:"-"`
	ServiceDomain string `yaml:"service_domain" toml:"service_domain" json:"-"`
	ServicePort   int    `yaml:"service_port" toml:"service_port" json:"-"`
	Version       string `yaml:"version" toml:"version" json:"-"`
}

type StorageConfig struct {
	Type  string             `yaml:"type" toml:"type" json:"-"`
	Local LocalStorageConfig `yaml:"local" toml:"local" json:"-"`
	Minio MinioStorageConfig `yaml:"minio" toml:"minio" json:"-"`
}

type LocalStorageConfig struct {
	RootPath string `yaml:"root_path" toml:"root_path" json:"-"`
}

type MinioStorageConfig struct {
	CredentialsPath string `yaml:"credentials_path" toml:"credentials_path" json:"-"`
	Bucket          string `yaml:"bucket" toml:"bucket" json:"bucket"`
	AccessKey       string `yaml:"accessKey" toml:"accessKey" json:"accessKey"`
	Api             string `yaml:"api" toml:"api" json:"api"`
	Path            string `yaml:"path" toml:"path" json:"path"`
	SecretKey       string `yaml:"secretKey" toml:"secretKey" json:"secretKey"`
	Url             string `yaml:"url" toml:"url" json:"url"`
	Secure          bool   `yaml:"secure" toml:"secure" json:"secure"`
}

// SchemasConfig controls how remote JSON Schema documents are fetched.
// The embedded client can be replaced at runtime, e.g. with a cassette-backed one.
type SchemasConfig struct {
	ClientConfig[*http.Client] `yaml:"-" toml:"-"`

	StacBaseURL   string            `yaml:"stac_base_url" toml:"stac_base_url" json:"-"`
	LegacyBaseURL string            `yaml:"legacy_base_url" toml:"legacy_base_url" json:"-"`
	Timeout       time.Duration     `yaml:"timeout" toml:"timeout" json:"-"`
	UserAgent     string            `yaml:"user_agent" toml:"user_agent" json:"-"`
	StrictIDs     bool              `yaml:"strict_ids" toml:"strict_ids" json:"-"`
	Cache         SchemaCacheConfig `yaml:"cache" toml:"cache" json:"-"`
	Reliability   ReliabilityConfig `yaml:"reliability" toml:"reliability" json:"-"`
}

type SchemaCacheConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"-"`
	Prefix  string `yaml:"prefix" toml:"prefix" json:"-"`
}

type ReliabilityConfig struct {
	Policy string `yaml:"policy" toml:"policy" json:"-"`
	// MaxRetries is nil when unset; an explicit zero disables retries.
	MaxRetries *int          `yaml:"max_retries" toml:"max_retries" json:"-"`
	RetryDelay time.Duration `yaml:"retry_delay" toml:"retry_delay" json:"-"`
	MaxDelay   time.Duration `yaml:"max_delay" toml:"max_delay" json:"-"`
	RetryCodes []int         `yaml:"retry_codes" toml:"retry_codes" json:"-"`
}

// CassetteConfig routes schema requests through a cassette when Path is
// set. Command line flags take precedence.
type CassetteConfig struct {
	Path string `yaml:"path" toml:"path" json:"-"`
	Mode string `yaml:"mode" toml:"mode" json:"-"`
}

type ValidationConfig struct {
	// MaxDepth is the number of link levels followed below the root object
	// in recursive mode. Zero or less means unlimited.
	MaxDepth    int  `yaml:"max_depth" toml:"max_depth" json:"-"`
	Concurrency int  `yaml:"concurrency" toml:"concurrency" json:"-"`
	Links       bool `yaml:"links" toml:"links" json:"-"`
	Assets      bool `yaml:"assets" toml:"assets" json:"-"`
	// MaxReports bounds the reports the server keeps in memory.
	MaxReports int `yaml:"max_reports" toml:"max_reports" json:"-"`
}

// GetHTTPClient returns the configured client, creating one with the
// configured timeout on first use.
func (s *SchemasConfig) GetHTTPClient() *http.Client {
	s.Lock()
	defer s.Unlock()

	if s.Client == nil {
		s.Client = &http.Client{Timeout: s.Timeout}
	}

	return s.Client
}

// Retries is the number of retries after a failed attempt.
func (r ReliabilityConfig) Retries() int {
	switch {
	case r.Policy == RELIABILITY_POLICY_NONE:
		return 0
	case r.MaxRetries == nil:
		return DEFAULT_MAX_RETRIES
	case *r.MaxRetries < 0:
		return 0
	}
	return *r.MaxRetries
}

func (r ReliabilityConfig) IsRetryCode(statusCode int) bool {
	for _, code := range r.RetryCodes {
		if code == statusCode {
			return true
		}
	}
	return false
}

func DefaultConfig() Config {
	config := Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.HTTPAPIServer.Host == "" {
		c.HTTPAPIServer.Host = "0.0.0.0"
	}
	if c.HTTPAPIServer.Port == 0 {
		c.HTTPAPIServer.Port = 8080
	}

	if c.DNSSD.ServiceName == "" {
		c.DNSSD.ServiceName = "stac-validator"
	}
	if c.DNSSD.ServiceType == "" {
		c.DNSSD.ServiceType = "_http._tcp."
	}
	if c.DNSSD.ServiceDomain == "" {
		c.DNSSD.ServiceDomain = "local."
	}
	if c.DNSSD.ServicePort == 0 {
		c.DNSSD.ServicePort = c.HTTPAPIServer.Port
	}
	if c.DNSSD.Version == "" {
		c.DNSSD.Version = VERSION
	}

	if c.Storage.Type == "" {
		c.Storage.Type = STORAGE_TYPE_LOCAL
	}
	if c.Storage.Local.RootPath == "" {
		c.Storage.Local.RootPath = filepath.Join(os.TempDir(), "stac-validator")
	}

	if c.Schemas == nil {
		c.Schemas = &SchemasConfig{}
	}
	if c.Schemas.StacBaseURL == "" {
		c.Schemas.StacBaseURL = "https://schemas.stacspec.org"
	}
	if c.Schemas.LegacyBaseURL == "" {
		c.Schemas.LegacyBaseURL = "https://cdn.staclint.com"
	}
	c.Schemas.StacBaseURL = strings.TrimRight(c.Schemas.StacBaseURL, "/")
	c.Schemas.LegacyBaseURL = strings.TrimRight(c.Schemas.LegacyBaseURL, "/")
	if c.Schemas.Timeout == 0 {
		c.Schemas.Timeout = 30 * time.Second
	}
	if c.Schemas.UserAgent == "" {
		c.Schemas.UserAgent = fmt.Sprintf("stac-validator/%s", VERSION)
	}
	if c.Schemas.Cache.Prefix == "" {
		c.Schemas.Cache.Prefix = "schemas"
	}
	if c.Schemas.Reliability.Policy == "" {
		c.Schemas.Reliability.Policy = RELIABILITY_POLICY_EXPONENTIAL_BACKOFF
	}
	if c.Schemas.Reliability.MaxRetries == nil {
		maxRetries := DEFAULT_MAX_RETRIES
		c.Schemas.Reliability.MaxRetries = &maxRetries
	}
	if c.Schemas.Reliability.RetryDelay == 0 {
		c.Schemas.Reliability.RetryDelay = time.Second
	}
	if c.Schemas.Reliability.MaxDelay == 0 {
		c.Schemas.Reliability.MaxDelay = 10 * time.Second
	}
	if len(c.Schemas.Reliability.RetryCodes) == 0 {
		c.Schemas.Reliability.RetryCodes = []int{429, 500, 502, 503, 504}
	}

	if c.Cassette.Mode == "" {
		c.Cassette.Mode = "once"
	}

	if c.Validation.Concurrency <= 0 {
		c.Validation.Concurrency = 8
	}
	if c.Validation.MaxReports <= 0 {
		c.Validation.MaxReports = 1000
	}
}

// applyEnv lets environment variables (and therefore .env files) override
// a handful of frequently tweaked settings.
func (c *Config) applyEnv() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if port := os.Getenv("HTTP_API_PORT"); port != "" {
		if value, err := strconv.Atoi(port); err == nil {
			c.HTTPAPIServer.Port = value
			c.DNSSD.ServicePort = value
		}
	}
	if path := os.Getenv("CASSETTE_PATH"); path != "" {
		c.Cassette.Path = path
	}
	if mode := os.Getenv("CASSETTE_MODE"); mode != "" {
		c.Cassette.Mode = mode
	}
	if baseURL := os.Getenv("STAC_SCHEMAS_BASE_URL"); baseURL != "" {
		c.Schemas.StacBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// LoadConfig reads a YAML or TOML configuration file, chosen by extension.
func LoadConfig(configPath string) (Config, error) {
	config := Config{}

	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		if _, err := toml.DecodeFile(configPath, &config); err != nil {
			return config, fmt.Errorf("config parse failed (%s): %w", configPath, err)
		}
	default:
		file, err := os.Open(configPath)
		if err != nil {
			return config, fmt.Errorf("config load failed (%s): %w", configPath, err)
		}
		defer file.Close()

		d := yaml.NewDecoder(file)
		if err := d.Decode(&config); err != nil {
			return config, fmt.Errorf("config parse failed (%s): %w", configPath, err)
		}
	}

	config.applyDefaults()

	if err := config.loadMinioCredentials(configPath); err != nil {
		return config, err
	}

	return config, nil
}

func (c *Config) loadMinioCredentials(configPath string) error {
	if c.Storage.Minio.CredentialsPath == "" {
		return nil
	}

	credentialsPath := c.Storage.Minio.CredentialsPath
	file, err := os.ReadFile(credentialsPath)
	if os.IsNotExist(err) {
		// Fallback - check credentials file in the same directory as the config file
		configDir := filepath.Dir(configPath)
		credentialsFilename := filepath.Base(credentialsPath)
		credentialsPath = filepath.Join(configDir, credentialsFilename)

		file, err = os.ReadFile(credentialsPath)
	}
	if err != nil {
		return fmt.Errorf("minio credentials load failed (%s): %w", credentialsPath, err)
	}

	minioStorageConfig := MinioStorageConfig{
		CredentialsPath: c.Storage.Minio.CredentialsPath,
		Secure:          c.Storage.Minio.Secure,
	}
	if err = json.Unmarshal(file, &minioStorageConfig); err != nil {
		return fmt.Errorf("minio credentials parse failed (%s): %w", credentialsPath, err)
	}

	c.Storage.Minio = minioStorageConfig
	return nil
}

func NewConfig() Config {
	godotenv.Load()

	configPath := os.Getenv("CONFIG_FILE")
	explicitPath := configPath != ""
	if !explicitPath {
		configPath = CONFIG_FILE
	}

	var config Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) && !explicitPath {
		config = DefaultConfig()
	} else {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			panic(err)
		}
		config = loaded
	}

	config.applyEnv()

	return config
}
