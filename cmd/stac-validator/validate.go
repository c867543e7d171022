package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"stac-validator/types/dataclasses"
	"stac-validator/types/fetcher"
	"stac-validator/types/registries"
	"stac-validator/types/stac"
	"stac-validator/types/validators"
)

type ValidateCommand struct {
	settings *GlobalSettings
	fs       afero.Fs
	out      io.Writer
	cassette CassetteFlags

	location     string
	mode         string
	customSchema string
	recursive    bool
	maxDepth     int
	links        bool
	assets       bool
	concurrency  int
	verbose      bool
	noOutput     bool
}

func (cmd *ValidateCommand) Register(app *kingpin.Application) {
	validate := app.Command("validate", "Validate a STAC object and print one message per object.").
		Action(cmd.run)

	validate.Arg("location", "URL, s3:// URI or path of the STAC object.").
		Required().
		StringVar(&cmd.location)
	validate.Flag("mode", "Schemas to validate against: default, core, extensions or custom.").
		Default(string(dataclasses.ValidationMethodDefault)).
		EnumVar(&cmd.mode,
			string(dataclasses.ValidationMethodDefault),
			string(dataclasses.ValidationMethodCore),
			string(dataclasses.ValidationMethodExtensions),
			string(dataclasses.ValidationMethodCustom),
		)
	validate.Flag("custom", "Schema used by --mode custom.").
		StringVar(&cmd.customSchema)
	validate.Flag("recursive", "Follow child and item links.").
		Short('r').
		BoolVar(&cmd.recursive)
	validate.Flag("max-depth", "Link levels followed in recursive mode, overrides the configured value.").
		IntVar(&cmd.maxDepth)
	validate.Flag("links", "Check that every link href resolves.").
		BoolVar(&cmd.links)
	validate.Flag("assets", "Check that every asset href resolves and matches its type.").
		BoolVar(&cmd.assets)
	validate.Flag("concurrency", "Parallel fetches, overrides the configured value.").
		IntVar(&cmd.concurrency)
	validate.Flag("verbose", "Include the run log in the output.").
		Short('v').
		BoolVar(&cmd.verbose)
	validate.Flag("no-output", "Print nothing, only set the exit code.").
		BoolVar(&cmd.noOutput)

	cmd.cassette.Register(validate)
}

func (cmd *ValidateCommand) options(defaults stac.Options) stac.Options {
	options := defaults
	options.Mode = dataclasses.ValidationMethod(cmd.mode)
	options.CustomSchema = cmd.customSchema
	options.Recursive = cmd.recursive
	options.Links = options.Links || cmd.links
	options.Assets = options.Assets || cmd.assets
	options.Verbose = cmd.verbose

	if cmd.maxDepth != 0 {
		options.MaxDepth = cmd.maxDepth
	}
	if cmd.concurrency > 0 {
		options.Concurrency = cmd.concurrency
	}
	return options
}

func (cmd *ValidateCommand) run(k *kingpin.ParseContext) error {
	_config, err := cmd.settings.Config()
	if err != nil {
		return err
	}

	options := cmd.options(stac.DefaultOptions(_config.Validation))
	if err := options.Check(); err != nil {
		return err
	}

	stop, err := cmd.cassette.Attach(cmd.fs, _config)
	if err != nil {
		return err
	}
	defer stop()

	storage := objectStorage(_config)
	registry := registries.NewSchemaRegistry(fetcher.NewSchemaFetcher(_config, storage, cmd.fs), _config.Schemas, nil)
	validator := stac.NewValidator(
		_config.Schemas,
		stac.NewLoader(fetcher.NewObjectFetcher(_config, storage, cmd.fs)),
		validators.NewJSONSchemaValidator(registry, options.Concurrency),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report := validator.Validate(ctx, cmd.location, options)

	if !cmd.noOutput {
		var output interface{} = report.GetMessages()
		if cmd.verbose {
			output = report
		}
		if err := writeJSON(cmd.out, output); err != nil {
			return err
		}
	}

	if !report.IsValid() {
		return errFailed
	}
	return nil
}
