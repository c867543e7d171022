package main

import (
	"io"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"stac-validator/types/cassette"
)

type LintCassetteCommand struct {
	fs  afero.Fs
	out io.Writer

	path string
}

func (cmd *LintCassetteCommand) Register(app *kingpin.Application) {
	lint := app.Command("lint-cassette", "Check that a cassette holds consistent draft-07 schemas.").
		Action(cmd.run)

	lint.Arg("file", "Cassette YAML file.").
		Required().
		StringVar(&cmd.path)
}

func (cmd *LintCassetteCommand) run(k *kingpin.ParseContext) error {
	recorded, err := cassette.Load(cmd.fs, cmd.path)
	if err != nil {
		return err
	}

	report := cassette.Lint(recorded)
	if err := writeJSON(cmd.out, report); err != nil {
		return err
	}

	if !report.Valid() {
		return errFailed
	}
	return nil
}
