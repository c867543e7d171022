package interfaces

import "context"

// Fetcher retrieves the raw bytes behind a URI. Implementations decide which
// schemes they understand.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// SchemeFetcher is a Fetcher that can tell whether it handles a URI.
type SchemeFetcher interface {
	Fetcher

	Supports(uri string) bool
}

// PrefixFetcher reads at most limit leading bytes behind a URI.
type PrefixFetcher interface {
	FetchPrefix(ctx context.Context, uri string, limit int64) ([]byte, error)
}
