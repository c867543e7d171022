package factories

import (
	"embed"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"stac-validator/types/cassette"
)

const (
	CassetteStacV1     = "stac_v1_0_0"
	CassetteLintBroken = "lint_broken"

	StacBaseURL = "https://schemas.stacspec.org"
	EOExtension = "https://stac-extensions.github.io/eo/v1.0.0/schema.json"

	ItemSchemaURL       = StacBaseURL + "/v1.0.0/item-spec/json-schema/item.json"
	CollectionSchemaURL = StacBaseURL + "/v1.0.0/collection-spec/json-schema/collection.json"
	CatalogSchemaURL    = StacBaseURL + "/v1.0.0/catalog-spec/json-schema/catalog.json"
)

//go:embed cassettes/*.yaml
var cassettes embed.FS

//go:embed catalog
var catalog embed.FS

// CassetteBytes returns the raw YAML of an embedded cassette.
func CassetteBytes(name string) ([]byte, error) {
	return cassettes.ReadFile(path.Join("cassettes", name+".yaml"))
}

func Cassette(name string) (*cassette.Cassette, error) {
	content, err := CassetteBytes(name)
	if err != nil {
		return nil, err
	}
	return cassette.Parse(content)
}

// ReplayRecorder replays an embedded cassette. Requests it does not know
// fail with cassette.ErrInteractionNotFound.
func ReplayRecorder(name string) (*cassette.Recorder, error) {
	_cassette, err := Cassette(name)
	if err != nil {
		return nil, err
	}
	return cassette.NewRecorderFromCassette(_cassette, cassette.ModeNone, nil), nil
}

// CassetteFS writes an embedded cassette into an in-memory filesystem and
// returns the filesystem and the file path.
func CassetteFS(name string) (afero.Fs, string, error) {
	content, err := CassetteBytes(name)
	if err != nil {
		return nil, "", err
	}

	memFs := afero.NewMemMapFs()
	cassettePath := filepath.Join("/cassettes", name+".yaml")
	if err := afero.WriteFile(memFs, cassettePath, content, 0o644); err != nil {
		return nil, "", err
	}
	return memFs, cassettePath, nil
}

// StacDocument returns a document of the sample catalog, e.g.
// "collection/items/item-1.json".
func StacDocument(name string) []byte {
	content, err := catalog.ReadFile(path.Join("catalog", name))
	if err != nil {
		panic(err)
	}
	return content
}

// StacCatalogFS copies the sample catalog into an in-memory filesystem, with
// catalog.json directly below root.
func StacCatalogFS(root string) (afero.Fs, error) {
	memFs := afero.NewMemMapFs()

	err := fs.WalkDir(catalog, "catalog", func(name string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		content, err := catalog.ReadFile(name)
		if err != nil {
			return err
		}

		target := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(name, "catalog/")))
		if err := memFs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(memFs, target, content, 0o644)
	})
	if err != nil {
		return nil, err
	}

	return memFs, nil
}

// MockHTTPServer serves fixed bodies by path and counts requests per path.
// It ignores Range headers and always sends the whole body.
type MockHTTPServer struct {
	sync.Mutex
	*httptest.Server

	bodies   map[string]string
	statuses map[string]int
	hits     map[string]int
	headers  map[string]http.Header
}

func NewMockHTTPServer(bodies map[string]string) *MockHTTPServer {
	if bodies == nil {
		bodies = make(map[string]string)
	}
	mock := &MockHTTPServer{
		bodies:   bodies,
		statuses: make(map[string]int),
		hits:     make(map[string]int),
		headers:  make(map[string]http.Header),
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.Lock()
		mock.hits[r.URL.Path]++
		mock.headers[r.URL.Path] = r.Header.Clone()
		status, hasStatus := mock.statuses[r.URL.Path]
		body, found := mock.bodies[r.URL.Path]
		mock.Unlock()

		switch {
		case hasStatus:
			w.WriteHeader(status)
		case !found:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(body))
		}
	}))

	return mock
}

// SetBody serves body at path, e.g. a document naming the server URL.
func (m *MockHTTPServer) SetBody(path, body string) {
	m.Lock()
	defer m.Unlock()

	m.bodies[path] = body
}

// Header returns a header of the last request for path.
func (m *MockHTTPServer) Header(path, key string) string {
	m.Lock()
	defer m.Unlock()

	return m.headers[path].Get(key)
}

// SetStatus makes the server answer path with status and no body.
func (m *MockHTTPServer) SetStatus(path string, status int) {
	m.Lock()
	defer m.Unlock()

	m.statuses[path] = status
}

func (m *MockHTTPServer) ClearStatus(path string) {
	m.Lock()
	defer m.Unlock()

	delete(m.statuses, path)
}

func (m *MockHTTPServer) Hits(path string) int {
	m.Lock()
	defer m.Unlock()

	return m.hits[path]
}
