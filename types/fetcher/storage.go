package fetcher

import (
	"context"
	"path"

	"stac-validator/types"
	"stac-validator/types/dataclasses"
	"stac-validator/types/helpers"
	"stac-validator/types/interfaces"
)

// StorageFetcher reads s3://bucket/key URIs from the configured storage.
// Local storage keeps each bucket as a top level directory.
type StorageFetcher struct {
	storage interfaces.Storage
}

func NewStorageFetcher(storage interfaces.Storage) *StorageFetcher {
	return &StorageFetcher{storage: storage}
}

func (f *StorageFetcher) Supports(uri string) bool {
	return helpers.IsStorageURL(uri)
}

func (f *StorageFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	location, err := dataclasses.ParseStorageLocation(uri)
	if err != nil {
		return nil, err
	}

	storage := f.storage
	key := location.GetKey()

	switch s := f.storage.(type) {
	case *types.MINIOStorage:
		if location.GetBucket() != s.GetBucket() {
			storage = s.WithBucket(location.GetBucket())
		}
	default:
		key = path.Join(location.GetBucket(), key)
	}

	content, err := storage.GetObjectBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}
