package registries

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stac-validator/types"
	"stac-validator/types/cassette"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/fetcher"
	"stac-validator/types/helpers"
	"stac-validator/types/interfaces"
	"stac-validator/types/observability"
)

var (
	onceSchemaRegistry     sync.Once
	schemaRegistryInstance *SchemaRegistry
)

func GetSchemaRegistry(forceNewInstance ...bool) *SchemaRegistry {
	if len(forceNewInstance) > 0 && forceNewInstance[0] {
		newInstance := newSchemaRegistryFromConfig(config.GetConfig())
		schemaRegistryInstance = newInstance
		onceSchemaRegistry = sync.Once{}
		onceSchemaRegistry.Do(func() {})
		return newInstance
	}

	onceSchemaRegistry.Do(func() {
		schemaRegistryInstance = newSchemaRegistryFromConfig(config.GetConfig())
	})

	return schemaRegistryInstance
}

func newSchemaRegistryFromConfig(_config config.Config) *SchemaRegistry {
	var storage interfaces.Storage
	if _config.Schemas.Cache.Enabled {
		cacheStorage, err := types.NewStorage(_config.Storage)
		if err != nil {
			config.GetLogger().Errorf("Schema cache disabled: %v", err)
		} else {
			storage = cacheStorage
		}
	}

	return NewSchemaRegistry(
		fetcher.NewSchemaFetcher(_config, storage, fetcher.ServerFiles(_config.HTTPAPIServer)),
		_config.Schemas,
		storage,
	)
}

// SchemaRegistry keeps the schema documents of a validation run. Every
// location is fetched at most once until Reset. Failures that would repeat
// on a second attempt are remembered too; transient ones are not.
type SchemaRegistry struct {
	sync.Mutex

	Schemas map[string]*dataclasses.SchemaDocument

	failures    map[string]error
	fetchCounts map[string]int
	group       singleflight.Group

	fetcher       interfaces.Fetcher
	schemasConfig *config.SchemasConfig
	// storage is the persistent schema cache, nil when disabled
	storage interfaces.Storage
}

// Ensure SchemaRegistry implements the SchemaRegistry
var _ interfaces.SchemaRegistry = (*SchemaRegistry)(nil)

func NewSchemaRegistry(
	fetcher interfaces.Fetcher,
	schemasConfig *config.SchemasConfig,
	storage interfaces.Storage,
) *SchemaRegistry {
	return &SchemaRegistry{
		Schemas:       make(map[string]*dataclasses.SchemaDocument),
		failures:      make(map[string]error),
		fetchCounts:   make(map[string]int),
		fetcher:       fetcher,
		schemasConfig: schemasConfig,
		storage:       storage,
	}
}

func (r *SchemaRegistry) lookup(key string) (*dataclasses.SchemaDocument, bool, error) {
	r.Lock()
	defer r.Unlock()

	if document, found := r.Schemas[key]; found {
		return document, true, nil
	}
	if err, found := r.failures[key]; found {
		return nil, true, err
	}
	return nil, false, nil
}

// Load returns the schema at uri, fetching it on first use. Concurrent
// callers for the same location share one fetch, which is not bound to the
// context of whichever caller started it.
func (r *SchemaRegistry) Load(ctx context.Context, uri string) (*dataclasses.SchemaDocument, error) {
	key := helpers.NormalizeLocation(uri)

	if document, found, err := r.lookup(key); found {
		return document, err
	}

	results := r.group.DoChan(key, func() (interface{}, error) {
		if document, found, err := r.lookup(key); found {
			return document, err
		}

		document, err := r.obtain(context.WithoutCancel(ctx), key)

		r.Lock()
		defer r.Unlock()
		if err != nil {
			if permanentFailure(err) {
				r.failures[key] = err
			}
			return nil, err
		}
		r.Schemas[key] = document
		return document, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*dataclasses.SchemaDocument), nil
	}
}

// permanentFailure tells whether loading the same location again would fail
// the same way.
func permanentFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var mismatch *dataclasses.IDMismatchError
	if errors.As(err, &mismatch) ||
		errors.Is(err, dataclasses.ErrInvalidSchemaDocument) ||
		errors.Is(err, fetcher.ErrUnsupportedScheme) ||
		errors.Is(err, cassette.ErrInteractionNotFound) ||
		errors.Is(err, fs.ErrNotExist) {
		return true
	}

	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
		return fetchErr.StatusCode >= http.StatusBadRequest && fetchErr.StatusCode < http.StatusInternalServerError
	}
	return false
}

func (r *SchemaRegistry) cacheKey(key string) string {
	return path.Join(r.schemasConfig.Cache.Prefix, helpers.HashInput(key)+".json")
}

func (r *SchemaRegistry) obtain(ctx context.Context, key string) (*dataclasses.SchemaDocument, error) {
	logger := config.GetLogger()

	if r.storage != nil && r.storage.ObjectExists(ctx, r.cacheKey(key)) {
		document, err := r.fromCache(ctx, key)
		if err == nil {
			err = r.checkID(key, document)
			if err != nil {
				return nil, err
			}
			logger.Debugf("Schema %s loaded from %s cache", key, r.storage.GetStorageName())
			return document, nil
		}
		logger.Warnf("Ignoring cached schema %s: %v", key, err)
	}

	r.Lock()
	r.fetchCounts[key]++
	r.Unlock()

	source := "file"
	if helpers.IsRemoteURL(key) {
		source = "http"
	} else if helpers.IsStorageURL(key) {
		source = "storage"
	}

	start := time.Now()
	raw, err := r.fetcher.Fetch(ctx, key)
	observability.RecordSchemaFetch(source, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	document, err := dataclasses.NewSchemaDocument(key, raw, dataclasses.SchemaSourceFetch)
	if err != nil {
		return nil, err
	}
	if err := r.checkID(key, document); err != nil {
		return nil, err
	}

	if r.storage != nil {
		if err := r.storage.PutObjectBytes(ctx, r.cacheKey(key), bytes.NewBuffer(raw)); err != nil {
			logger.Warnf("Failed to cache schema %s: %v", key, err)
		}
	}

	return document, nil
}

func (r *SchemaRegistry) fromCache(ctx context.Context, key string) (*dataclasses.SchemaDocument, error) {
	start := time.Now()

	content, err := r.storage.GetObjectBytes(ctx, r.cacheKey(key))
	if err != nil {
		observability.RecordSchemaFetch("cache", false, time.Since(start))
		return nil, err
	}

	document, err := dataclasses.NewSchemaDocument(key, content.Bytes(), dataclasses.SchemaSourceStorage)
	observability.RecordSchemaFetch("cache", err == nil, time.Since(start))
	return document, err
}

// checkID rejects a document whose $id names another location when strict
// ids are on, and only warns otherwise.
func (r *SchemaRegistry) checkID(key string, document *dataclasses.SchemaDocument) error {
	if document.IDMatches() {
		return nil
	}

	mismatch := &dataclasses.IDMismatchError{URI: key, ID: document.ID}
	if r.schemasConfig.StrictIDs {
		return mismatch
	}
	config.GetLogger().Warnf("%v", mismatch)
	return nil
}

// Add registers a schema that was not fetched, e.g. one posted inline.
func (r *SchemaRegistry) Add(document *dataclasses.SchemaDocument) {
	r.Lock()
	defer r.Unlock()

	key := helpers.NormalizeLocation(document.URI)
	r.Schemas[key] = document
	delete(r.failures, key)
}

func (r *SchemaRegistry) Get(uri string) (*dataclasses.SchemaDocument, bool) {
	r.Lock()
	defer r.Unlock()

	document, found := r.Schemas[helpers.NormalizeLocation(uri)]
	return document, found
}

func (r *SchemaRegistry) GetAll() map[string]*dataclasses.SchemaDocument {
	r.Lock()
	defer r.Unlock()

	result := make(map[string]*dataclasses.SchemaDocument, len(r.Schemas))
	for key, document := range r.Schemas {
		result[key] = document
	}
	return result
}

func (r *SchemaRegistry) Delete(uri string) {
	r.Lock()
	defer r.Unlock()

	key := helpers.NormalizeLocation(uri)
	delete(r.Schemas, key)
	delete(r.failures, key)
}

// FetchCount tells how often uri went to its fetcher since the last Reset.
func (r *SchemaRegistry) FetchCount(uri string) int {
	r.Lock()
	defer r.Unlock()

	return r.fetchCounts[helpers.NormalizeLocation(uri)]
}

// Reset forgets everything, starting a new run.
func (r *SchemaRegistry) Reset() {
	r.Lock()
	defer r.Unlock()

	r.Schemas = make(map[string]*dataclasses.SchemaDocument)
	r.failures = make(map[string]error)
	r.fetchCounts = make(map[string]int)
}

func (r *SchemaRegistry) Shutdown(ctx context.Context) error {
	r.Lock()
	defer r.Unlock()

	config.GetLogger().Debugf("Schema registry holds %d documents at shutdown", len(r.Schemas))
	return nil
}
