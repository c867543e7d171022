package dataclasses

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var ErrInvalidStorageLocation = errors.New("invalid storage location")

// StorageLocation addresses an object in a bucket, e.g. s3://<bucket>/<key>
type StorageLocation struct {
	sync.Mutex

	// Bucket is the name of the bucket
	Bucket string
	// Key is the object name inside the bucket
	Key string
}

func NewStorageLocation(bucket, key string) *StorageLocation {
	return &StorageLocation{
		Bucket: bucket,
		Key:    key,
	}
}

// ParseStorageLocation parses an s3://bucket/key URI.
func ParseStorageLocation(uri string) (*StorageLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidStorageLocation, uri, err)
	}
	if !strings.EqualFold(parsed.Scheme, "s3") {
		return nil, fmt.Errorf("%w: %s: scheme must be s3", ErrInvalidStorageLocation, uri)
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || key == "" {
		return nil, fmt.Errorf("%w: %s: bucket and key are required", ErrInvalidStorageLocation, uri)
	}

	return NewStorageLocation(parsed.Host, key), nil
}

func (s *StorageLocation) GetBucket() string {
	s.Lock()
	defer s.Unlock()

	return s.Bucket
}

func (s *StorageLocation) GetKey() string {
	s.Lock()
	defer s.Unlock()

	return s.Key
}

func (s *StorageLocation) SetBucket(bucket string) {
	s.Lock()
	defer s.Unlock()

	s.Bucket = bucket
}

func (s *StorageLocation) SetKey(key string) {
	s.Lock()
	defer s.Unlock()

	s.Key = key
}

func (s *StorageLocation) String() string {
	return fmt.Sprintf("s3://%s/%s", s.GetBucket(), s.GetKey())
}
