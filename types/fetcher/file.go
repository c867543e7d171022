package fetcher

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"stac-validator/types/helpers"
)

// FileFetcher reads local paths and file:// URIs.
type FileFetcher struct {
	fs afero.Fs
}

func NewFileFetcher(fs afero.Fs) *FileFetcher {
	return &FileFetcher{fs: fs}
}

func (f *FileFetcher) Supports(uri string) bool {
	if strings.HasPrefix(strings.ToLower(uri), "file://") {
		return true
	}
	if helpers.IsRemoteURL(uri) || helpers.IsStorageURL(uri) {
		return false
	}

	// anything without a scheme is a path; single letters are Windows drives
	parsed, err := url.Parse(uri)
	return err != nil || len(parsed.Scheme) <= 1
}

func (f *FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return afero.ReadFile(f.fs, FilePath(uri))
}

func (f *FileFetcher) FetchPrefix(ctx context.Context, uri string, limit int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := f.fs.Open(FilePath(uri))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, limit))
}

// FilePath turns a file:// URI into a path and leaves paths untouched.
func FilePath(uri string) string {
	if !strings.HasPrefix(strings.ToLower(uri), "file://") {
		return uri
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(parsed.Path)
}
