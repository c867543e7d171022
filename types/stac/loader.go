package stac

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/fetcher"
	"stac-validator/types/interfaces"
)

// Loader reads STAC documents from URLs, object storage or the filesystem.
type Loader struct {
	fetcher interfaces.Fetcher
}

func NewLoader(objectFetcher interfaces.Fetcher) *Loader {
	return &Loader{fetcher: objectFetcher}
}

// FetchPrefix reads at most limit leading bytes of location.
func (l *Loader) FetchPrefix(ctx context.Context, location string, limit int64) ([]byte, error) {
	return fetcher.FetchPrefix(ctx, l.fetcher, location, limit)
}

// Supports reports whether location has a scheme the loader can read.
func (l *Loader) Supports(location string) bool {
	if schemeFetcher, ok := l.fetcher.(interfaces.SchemeFetcher); ok {
		return schemeFetcher.Supports(location)
	}
	return true
}

func (l *Loader) Load(ctx context.Context, location string) (*dataclasses.StacObject, error) {
	raw, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", location, err)
	}

	object, err := dataclasses.NewStacObject(location, raw)
	if err != nil {
		return nil, err
	}

	config.GetLogger().Debugf(
		"Loaded %s %s (%s)", object.Type, location, humanize.Bytes(uint64(len(raw))),
	)
	return object, nil
}
