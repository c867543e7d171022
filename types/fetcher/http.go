package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"stac-validator/types/cassette"
	"stac-validator/types/config"
	"stac-validator/types/helpers"
	"stac-validator/types/interfaces"
	"stac-validator/types/observability"
)

const acceptHeader = "application/schema+json, application/json;q=0.9, */*;q=0.1"

// FetchError is returned when a remote document could not be retrieved.
// StatusCode is zero for transport failures.
type FetchError struct {
	URI        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URI, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type HTTPFetcher struct {
	schemas *config.SchemasConfig
	// client is nil for the schema fetcher, which follows the client
	// currently installed on the schemas config
	client    *http.Client
	retryable failsafe.Executor[any]
}

// Ensure HTTPFetcher reads prefixes
var _ interfaces.PrefixFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher reads schemas with the client of the schemas config, which
// is where a cassette recorder gets installed.
func NewHTTPFetcher(schemas *config.SchemasConfig) *HTTPFetcher {
	return newHTTPFetcher(schemas, nil)
}

// NewObjectHTTPFetcher reads STAC objects and assets with a client of its
// own, so a cassette only ever sees schema requests. A nil client gets one
// with the schema timeout.
func NewObjectHTTPFetcher(schemas *config.SchemasConfig, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: schemas.Timeout}
	}
	return newHTTPFetcher(schemas, client)
}

func newHTTPFetcher(schemas *config.SchemasConfig, client *http.Client) *HTTPFetcher {
	reliability := schemas.Reliability
	maxRetries := reliability.Retries()

	builder := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return isRetryable(reliability, err)
		}).
		WithMaxRetries(maxRetries).
		OnRetry(func(event failsafe.ExecutionEvent[any]) {
			observability.RecordFetchRetry()
			config.GetLogger().Warnf(
				"Retrying fetch (attempt %d): %v",
				event.Attempts()+1,
				event.LastError(),
			)
		}).
		ReturnLastFailure()
	switch {
	case reliability.RetryDelay > 0 && reliability.MaxDelay > reliability.RetryDelay:
		builder = builder.WithBackoff(reliability.RetryDelay, reliability.MaxDelay)
	case reliability.RetryDelay > 0:
		builder = builder.WithDelay(reliability.RetryDelay)
	}

	return &HTTPFetcher{
		schemas:   schemas,
		client:    client,
		retryable: failsafe.With(builder.Build()),
	}
}

func (f *HTTPFetcher) httpClient() *http.Client {
	if f.client != nil {
		return f.client
	}
	return f.schemas.GetHTTPClient()
}

func isRetryable(reliability config.ReliabilityConfig, err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// replaying a cassette never gets a different answer
	if errors.Is(err, cassette.ErrInteractionNotFound) {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return reliability.IsRetryCode(fetchErr.StatusCode)
	}
	return true
}

func (f *HTTPFetcher) Supports(uri string) bool {
	return helpers.IsRemoteURL(uri)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f.fetch(ctx, uri, 0)
}

// FetchPrefix asks for the first limit bytes with a Range header and stops
// reading there even when the server answers with the whole body.
func (f *HTTPFetcher) FetchPrefix(ctx context.Context, uri string, limit int64) ([]byte, error) {
	return f.fetch(ctx, uri, limit)
}

func (f *HTTPFetcher) fetch(ctx context.Context, uri string, limit int64) ([]byte, error) {
	var body []byte
	start := time.Now()

	err := f.retryable.WithContext(ctx).Run(func() error {
		content, err := f.get(ctx, uri, limit)
		if err != nil {
			return err
		}
		body = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	config.GetLogger().Debugf(
		"Fetched %s (%s in %s)",
		uri,
		humanize.Bytes(uint64(len(body))),
		time.Since(start).Round(time.Millisecond),
	)
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, uri string, limit int64) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	request.Header.Set("Accept", acceptHeader)
	request.Header.Set("User-Agent", f.schemas.UserAgent)
	if limit > 0 {
		request.Header.Set("Range", fmt.Sprintf("bytes=0-%d", limit-1))
	}

	response, err := f.httpClient().Do(request)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	defer response.Body.Close()

	// an empty resource has no first byte to return
	if limit > 0 && response.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		return []byte{}, nil
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, response.Body)
		return nil, &FetchError{
			URI:        uri,
			StatusCode: response.StatusCode,
			Err:        errors.New(response.Status),
		}
	}

	var reader io.Reader = response.Body
	if limit > 0 {
		reader = io.LimitReader(response.Body, limit)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	return body, nil
}
