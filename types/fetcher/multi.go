package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"stac-validator/types/config"
	"stac-validator/types/interfaces"
)

var ErrUnsupportedScheme = errors.New("no fetcher supports this location")

// MultiFetcher dispatches to the first fetcher supporting a URI.
type MultiFetcher struct {
	fetchers []interfaces.SchemeFetcher
}

func NewMultiFetcher(fetchers ...interfaces.SchemeFetcher) *MultiFetcher {
	return &MultiFetcher{fetchers: fetchers}
}

// NewSchemaFetcher reads http(s) URLs with the configured schema client,
// s3:// URIs from storage and paths from files. Storage and files are
// optional.
func NewSchemaFetcher(_config config.Config, storage interfaces.Storage, files afero.Fs) *MultiFetcher {
	return newMultiFetcher(NewHTTPFetcher(_config.Schemas), storage, files)
}

// NewObjectFetcher is NewSchemaFetcher for STAC objects and assets, whose
// http(s) requests never go through the schema client.
func NewObjectFetcher(_config config.Config, storage interfaces.Storage, files afero.Fs) *MultiFetcher {
	return newMultiFetcher(NewObjectHTTPFetcher(_config.Schemas, nil), storage, files)
}

func newMultiFetcher(httpFetcher *HTTPFetcher, storage interfaces.Storage, files afero.Fs) *MultiFetcher {
	fetchers := []interfaces.SchemeFetcher{httpFetcher}
	if storage != nil {
		fetchers = append(fetchers, NewStorageFetcher(storage))
	}
	if files != nil {
		fetchers = append(fetchers, NewFileFetcher(files))
	}

	return NewMultiFetcher(fetchers...)
}

// ServerFiles is the part of the OS filesystem the HTTP API may read: the
// tree below files_root, or nothing when it is unset.
func ServerFiles(server config.HTTPAPIServer) afero.Fs {
	if server.FilesRoot == "" {
		return nil
	}
	return afero.NewBasePathFs(afero.NewOsFs(), server.FilesRoot)
}

func (f *MultiFetcher) Supports(uri string) bool {
	return f.fetcherFor(uri) != nil
}

func (f *MultiFetcher) fetcherFor(uri string) interfaces.SchemeFetcher {
	for _, fetcher := range f.fetchers {
		if fetcher.Supports(uri) {
			return fetcher
		}
	}
	return nil
}

func (f *MultiFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	fetcher := f.fetcherFor(uri)
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
	return fetcher.Fetch(ctx, uri)
}

// FetchPrefix reads at most limit leading bytes with the matching fetcher.
func (f *MultiFetcher) FetchPrefix(ctx context.Context, uri string, limit int64) ([]byte, error) {
	fetcher := f.fetcherFor(uri)
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, uri)
	}
	return FetchPrefix(ctx, fetcher, uri, limit)
}

// FetchPrefix reads a prefix with fetcher, falling back to a full read cut
// down to limit when fetcher cannot read prefixes.
func FetchPrefix(ctx context.Context, fetcher interfaces.Fetcher, uri string, limit int64) ([]byte, error) {
	if prefixFetcher, ok := fetcher.(interfaces.PrefixFetcher); ok {
		return prefixFetcher.FetchPrefix(ctx, uri, limit)
	}

	content, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		content = content[:limit]
	}
	return content, nil
}
