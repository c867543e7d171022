package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/spf13/afero"

	"stac-validator/types/config"
)

func main() {
	config.SetLogOutput(os.Stderr)

	app := newApp(afero.NewOsFs(), os.Stdout)

	_, err := app.Parse(os.Args[1:])
	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	kingpin.FatalIfError(err, "")
}
