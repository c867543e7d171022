package main

import (
	"context"
	"io"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"stac-validator/api/schemas"
	"stac-validator/types/fetcher"
	"stac-validator/types/registries"
	"stac-validator/types/resolver"
)

type ResolveCommand struct {
	settings *GlobalSettings
	fs       afero.Fs
	out      io.Writer
	cassette CassetteFlags

	uri string
}

func (cmd *ResolveCommand) Register(app *kingpin.Application) {
	resolve := app.Command("resolve", "Print the $ref graph below a schema.").
		Action(cmd.run)

	resolve.Arg("schema-uri", "URL or path of the root schema.").
		Required().
		StringVar(&cmd.uri)

	cmd.cassette.Register(resolve)
}

func (cmd *ResolveCommand) run(k *kingpin.ParseContext) error {
	_config, err := cmd.settings.Config()
	if err != nil {
		return err
	}

	stop, err := cmd.cassette.Attach(cmd.fs, _config)
	if err != nil {
		return err
	}
	defer stop()

	schemaFetcher := fetcher.NewSchemaFetcher(_config, objectStorage(_config), cmd.fs)
	registry := registries.NewSchemaRegistry(schemaFetcher, _config.Schemas, nil)
	graph, err := resolver.NewResolver(registry, _config.Validation.Concurrency).Resolve(context.Background(), cmd.uri)
	if err != nil {
		return err
	}

	if err := writeJSON(cmd.out, schemas.NewGraphOutputSchema(graph)); err != nil {
		return err
	}
	if !graph.IsAcyclic() {
		return errFailed
	}
	return nil
}
