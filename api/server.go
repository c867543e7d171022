package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"stac-validator/api/handlers"
	validatorMiddleware "stac-validator/api/middleware"
	"stac-validator/types"
	"stac-validator/types/cassette"
	"stac-validator/types/config"
	"stac-validator/types/fetcher"
	"stac-validator/types/registries"
	"stac-validator/types/stac"
	"stac-validator/types/validators"
)

type Server struct {
	host   string
	port   int
	config config.Config

	echo               *echo.Echo
	mdns               *types.MDNS
	schemaRegistry     *registries.SchemaRegistry
	validationRegistry *registries.ValidationRegistry
	schemaValidator    *validators.JSONSchemaValidator
	validator          *stac.Validator
	// recorder is set when schema requests go through a cassette
	recorder *cassette.Recorder
}

// NewServer builds a Server from the global config and registries. STAC
// objects are read over HTTP and from storage, local files only below the
// configured files root. A configured cassette serves the schema requests.
func NewServer() *Server {
	_config := config.GetConfig()

	recorder, err := cassette.Attach(afero.NewOsFs(), _config.Cassette, _config.Schemas)
	if err != nil {
		config.GetLogger().Errorf("Cassette %s not used: %v", _config.Cassette.Path, err)
	}

	storage, err := types.NewStorage(_config.Storage)
	if err != nil {
		config.GetLogger().Errorf("s3:// locations are not readable: %v", err)
		storage = nil
	}

	server := NewServerWith(
		_config,
		registries.GetSchemaRegistry(),
		registries.GetValidationRegistry(),
		stac.NewLoader(fetcher.NewObjectFetcher(_config, storage, fetcher.ServerFiles(_config.HTTPAPIServer))),
	)
	server.recorder = recorder
	return server
}

// NewServerWith builds a Server around the given registries and loader.
func NewServerWith(
	_config config.Config,
	schemaRegistry *registries.SchemaRegistry,
	validationRegistry *registries.ValidationRegistry,
	loader *stac.Loader,
) *Server {
	_echo := echo.New()
	_echo.HideBanner = true
	_echo.HidePort = true
	_echo.Logger = config.GetLogger()

	schemaValidator := validators.NewJSONSchemaValidator(
		schemaRegistry,
		_config.Validation.Concurrency,
	)

	server := &Server{
		host:               _config.HTTPAPIServer.Host,
		port:               _config.HTTPAPIServer.Port,
		config:             _config,
		echo:               _echo,
		mdns:               types.NewMDNS(_config),
		schemaRegistry:     schemaRegistry,
		validationRegistry: validationRegistry,
		schemaValidator:    schemaValidator,
		validator:          stac.NewValidator(_config.Schemas, loader, schemaValidator),
	}
	server.echo.Use(middleware.Logger())
	server.echo.Use(middleware.Recover())
	server.echo.Use(middleware.RequestID())
	server.echo.Use(
		validatorMiddleware.ConfigMiddleware(_config),
		validatorMiddleware.MetricsMiddleware(),
	)
	server.RegisterRoutes()

	return server
}

func (s *Server) RegisterRoutes() {
	defaults := stac.DefaultOptions(s.config.Validation)

	s.AddHTTPAPIRoute(http.MethodGet, "/health", handlers.HealthHandler)
	s.AddHTTPAPIRoute(
		http.MethodPost,
		"/validate",
		handlers.ValidateHandler(s.validator, s.schemaValidator, s.validationRegistry, defaults),
	)
	s.AddHTTPAPIRoute(http.MethodGet, "/validations", handlers.ValidationsHandler(s.validationRegistry))
	s.AddHTTPAPIRoute(http.MethodGet, "/validations/:id", handlers.ValidationHandler(s.validationRegistry))
	s.AddHTTPAPIRoute(http.MethodGet, "/schemas", handlers.SchemasHandler(s.schemaRegistry))
	s.AddHTTPAPIRoute(http.MethodGet, "/schemas/graph", handlers.SchemaGraphHandler(s.schemaValidator))
	s.AddHTTPAPIRoute(http.MethodGet, "/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) AddMiddleware(middleware ...echo.MiddlewareFunc) {
	s.echo.Use(middleware...)
}

func (s *Server) AddHTTPAPIRoute(method string, path string, handlerFunc echo.HandlerFunc) {
	s.echo.Add(method, path, handlerFunc)
}

func (s *Server) Start() {
	if s.config.DNSSD.Enabled {
		s.mdns.SetStacVersions(stac.SupportedVersions)
		s.mdns.SetAvailable(true)
		if err := s.mdns.Advertise(); err != nil {
			s.echo.Logger.Errorf("mDNS announcement failed: %v", err)
		}
	}

	s.echo.Logger.Infof("Listening on %s:%d", s.host, s.port)
	if err := s.echo.Start(fmt.Sprintf("%s:%d", s.host, s.port)); err != nil && err != http.ErrServerClosed {
		s.echo.Logger.Fatal(err)
	}
}

func (s *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.mdns.SetAvailable(false)
	s.mdns.Shutdown()

	if err := s.validationRegistry.Shutdown(ctx); err != nil {
		s.echo.Logger.Errorf("Validation registry shutdown: %v", err)
	}
	if err := s.schemaRegistry.Shutdown(ctx); err != nil {
		s.echo.Logger.Errorf("Schema registry shutdown: %v", err)
	}
	if s.recorder != nil {
		if err := s.recorder.Stop(); err != nil {
			s.echo.Logger.Errorf("Failed to save cassette: %v", err)
		}
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.echo.Logger.Errorf("Server shutdown: %v", err)
	}
}

func (s *Server) NewContext(request *http.Request, writer http.ResponseWriter) echo.Context {
	return s.echo.NewContext(request, writer)
}

func (s *Server) GetHost() string {
	return s.host
}

func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

func (s *Server) GetMDNS() *types.MDNS {
	return s.mdns
}

func (s *Server) GetConfig() config.Config {
	return s.config
}

func (s *Server) GetValidator() *stac.Validator {
	return s.validator
}

func (s *Server) GetSchemaRegistry() *registries.SchemaRegistry {
	return s.schemaRegistry
}

func (s *Server) GetValidationRegistry() *registries.ValidationRegistry {
	return s.validationRegistry
}

func (s *Server) GetRecorder() *cassette.Recorder {
	return s.recorder
}
