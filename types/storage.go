package types

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"

	"stac-validator/types/config"
	"stac-validator/types/interfaces"
)

const (
	// MimeDetectionLimit is how far mimetype looks into a file
	MimeDetectionLimit = 3072
)

// NewStorage builds the storage backend selected in the config.
func NewStorage(storageConfig config.StorageConfig) (interfaces.Storage, error) {
	switch storageConfig.Type {
	case config.STORAGE_TYPE_LOCAL, "":
		return NewLocalStorage(afero.NewOsFs(), storageConfig.Local.RootPath), nil
	case config.STORAGE_TYPE_MINIO:
		return NewMINIOStorage(storageConfig.Minio)
	}

	return nil, fmt.Errorf("unknown storage type %q", storageConfig.Type)
}

type LocalStorage struct {
	fs       afero.Fs
	rootPath string
}

func NewLocalStorage(fs afero.Fs, rootPath string) *LocalStorage {
	return &LocalStorage{
		fs:       fs,
		rootPath: rootPath,
	}
}

func (s *LocalStorage) GetStorageName() string {
	return "local"
}

func (s *LocalStorage) objectPath(key string) string {
	return filepath.Join(s.rootPath, filepath.FromSlash(key))
}

func (s *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	objects := []string{}

	exists, err := afero.DirExists(s.fs, s.rootPath)
	if err != nil || !exists {
		return objects, err
	}

	err = afero.Walk(s.fs, s.rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(s.rootPath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relative)
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(objects)
	return objects, nil
}

func (s *LocalStorage) PutObjectBytes(ctx context.Context, key string, content *bytes.Buffer) error {
	path := s.objectPath(key)

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		config.GetLogger().Errorf("Failed to create directory for %s: %v", key, err)
		return err
	}

	if err := afero.WriteFile(s.fs, path, content.Bytes(), 0o644); err != nil {
		config.GetLogger().Errorf("Failed to write %s: %v", key, err)
		return err
	}

	return nil
}

func (s *LocalStorage) GetObjectBytes(ctx context.Context, key string) (*bytes.Buffer, error) {
	content, err := afero.ReadFile(s.fs, s.objectPath(key))
	if err != nil {
		return nil, err
	}

	return bytes.NewBuffer(content), nil
}

func (s *LocalStorage) ObjectExists(ctx context.Context, key string) bool {
	exists, err := afero.Exists(s.fs, s.objectPath(key))
	return err == nil && exists
}

type MINIOStorage struct {
	Client *minio.Client
	bucket string
}

func NewMINIOStorage(storageConfig config.MinioStorageConfig) (*MINIOStorage, error) {
	minioClient, err := minio.New(
		storageConfig.Url,
		&minio.Options{
			Creds:  credentials.NewStaticV4(storageConfig.AccessKey, storageConfig.SecretKey, ""),
			Secure: storageConfig.Secure,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error creating MinIO client: %w", err)
	}

	return &MINIOStorage{
		Client: minioClient,
		bucket: storageConfig.Bucket,
	}, nil
}

// WithBucket returns a storage sharing the client but addressing another bucket.
func (s *MINIOStorage) WithBucket(bucket string) *MINIOStorage {
	return &MINIOStorage{
		Client: s.Client,
		bucket: bucket,
	}
}

func (s *MINIOStorage) GetStorageName() string {
	return "minio"
}

func (s *MINIOStorage) GetBucket() string {
	return s.bucket
}

func (s *MINIOStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	objects := []string{}

	for object := range s.Client.ListObjects(
		ctx,
		s.bucket,
		minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		},
	) {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

func (s *MINIOStorage) PutObjectBytes(ctx context.Context, key string, content *bytes.Buffer) error {
	mimeType := DetectMimeTypeFromBuffer(content)

	_, err := s.Client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(content.Bytes()),
		int64(content.Len()),
		minio.PutObjectOptions{
			ContentType: mimeType.String(),
		},
	)
	return err
}

func (s *MINIOStorage) GetObjectBytes(ctx context.Context, key string) (*bytes.Buffer, error) {
	object, err := s.Client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	buffer := new(bytes.Buffer)
	if _, err := buffer.ReadFrom(object); err != nil {
		return nil, err
	}

	return buffer, nil
}

func (s *MINIOStorage) ObjectExists(ctx context.Context, key string) bool {
	_, err := s.Client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	return err == nil
}

// DetectMimeTypeFromBuffer sniffs the content type without consuming the buffer.
func DetectMimeTypeFromBuffer(buffer *bytes.Buffer) *mimetype.MIME {
	content := buffer.Bytes()
	if len(content) > MimeDetectionLimit {
		content = content[:MimeDetectionLimit]
	}

	return mimetype.Detect(content)
}
