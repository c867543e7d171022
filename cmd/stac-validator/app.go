package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"stac-validator/types"
	"stac-validator/types/cassette"
	"stac-validator/types/config"
	"stac-validator/types/interfaces"
)

// errFailed ends the process with exit code 1 once the command has printed
// its result.
var errFailed = errors.New("failed")

// GlobalSettings are the flags every command shares.
type GlobalSettings struct {
	ConfigPath string
	LogLevel   string
}

func (s *GlobalSettings) Register(app *kingpin.Application) {
	app.Flag("config", "YAML or TOML configuration file.").
		Envar("CONFIG_FILE").
		StringVar(&s.ConfigPath)
	app.Flag("log-level", "Log level: debug, info, warn, error or off.").
		Envar("LOG_LEVEL").
		StringVar(&s.LogLevel)
}

// Config loads the configuration and applies the log level.
func (s *GlobalSettings) Config() (config.Config, error) {
	_config := config.DefaultConfig()
	if s.ConfigPath != "" {
		loaded, err := config.LoadConfig(s.ConfigPath)
		if err != nil {
			return _config, err
		}
		_config = loaded
	}

	level := _config.Log.Level
	if s.LogLevel != "" {
		level = s.LogLevel
	}
	config.GetLogger().SetLevel(config.ParseLevel(level))

	return _config, nil
}

// CassetteFlags route schema requests through a cassette. They override
// the cassette section of the config.
type CassetteFlags struct {
	Path string
	Mode string
}

func (f *CassetteFlags) Register(cmd *kingpin.CmdClause) {
	cmd.Flag("cassette", "Replay and record schema requests with this cassette file.").
		Envar("CASSETTE_PATH").
		StringVar(&f.Path)
	cmd.Flag("record-mode", "Cassette mode: once, new_episodes, all, none or disabled.").
		Envar("CASSETTE_MODE").
		EnumVar(&f.Mode,
			string(cassette.ModeOnce),
			string(cassette.ModeNewEpisodes),
			string(cassette.ModeAll),
			string(cassette.ModeNone),
			string(cassette.ModeDisabled),
		)
}

// Attach installs the recorder on the schema client. The returned stop
// function saves what was recorded.
func (f *CassetteFlags) Attach(fs afero.Fs, _config config.Config) (func(), error) {
	cassetteConfig := _config.Cassette
	if f.Path != "" {
		cassetteConfig.Path = f.Path
	}
	if f.Mode != "" {
		cassetteConfig.Mode = f.Mode
	}

	recorder, err := cassette.Attach(fs, cassetteConfig, _config.Schemas)
	if err != nil || recorder == nil {
		return func() {}, err
	}

	return func() {
		stats := recorder.GetStats()
		config.GetLogger().Debugf(
			"Cassette %s: %d hits, %d misses, %d recorded",
			cassetteConfig.Path, stats.Hits, stats.Misses, stats.Recorded,
		)
		if err := recorder.Stop(); err != nil {
			config.GetLogger().Errorf("Failed to save cassette %s: %v", cassetteConfig.Path, err)
		}
	}, nil
}

// objectStorage is the storage s3:// locations are read from, nil unless
// minio is configured.
func objectStorage(_config config.Config) interfaces.Storage {
	if _config.Storage.Type != config.STORAGE_TYPE_MINIO {
		return nil
	}

	storage, err := types.NewStorage(_config.Storage)
	if err != nil {
		config.GetLogger().Warnf("s3:// locations are not readable: %v", err)
		return nil
	}
	return storage
}

func writeJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func newApp(fs afero.Fs, out io.Writer) *kingpin.Application {
	app := kingpin.New("stac-validator", "Validate STAC catalogs, collections and items against their JSON Schemas.")
	app.Version(config.VERSION)
	app.HelpFlag.Short('h')

	settings := &GlobalSettings{}
	settings.Register(app)

	(&ValidateCommand{settings: settings, fs: fs, out: out}).Register(app)
	(&ResolveCommand{settings: settings, fs: fs, out: out}).Register(app)
	(&LintCassetteCommand{fs: fs, out: out}).Register(app)

	return app
}
