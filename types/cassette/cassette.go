package cassette

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const FormatVersion = 1

var (
	ErrInteractionNotFound = errors.New("requested interaction not found")
	ErrUnsupportedVersion  = errors.New("unsupported cassette format version")
)

type Request struct {
	Method  string      `yaml:"method"`
	URI     string      `yaml:"uri"`
	Headers http.Header `yaml:"headers,omitempty"`
	Body    string      `yaml:"body"`
}

type Status struct {
	Code    int    `yaml:"code"`
	Message string `yaml:"message"`
}

type Response struct {
	Status  Status      `yaml:"status"`
	Headers http.Header `yaml:"headers,omitempty"`
	Body    string      `yaml:"body"`
}

type Interaction struct {
	Request  Request  `yaml:"request"`
	Response Response `yaml:"response"`
}

func (i *Interaction) matches(method, uri string) bool {
	return strings.EqualFold(i.Request.Method, method) && i.Request.URI == uri
}

// Cassette is an ordered list of recorded HTTP interactions.
type Cassette struct {
	lock sync.RWMutex
	fs   afero.Fs
	path string

	Version      int            `yaml:"version"`
	Interactions []*Interaction `yaml:"interactions"`
}

func New(fs afero.Fs, path string) *Cassette {
	return &Cassette{
		fs:           fs,
		path:         path,
		Version:      FormatVersion,
		Interactions: make([]*Interaction, 0),
	}
}

// Load reads a cassette file. A missing file is reported with an error
// satisfying errors.Is(err, os.ErrNotExist).
func Load(fs afero.Fs, path string) (*Cassette, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	cassette, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("cassette %s: %w", path, err)
	}
	cassette.fs = fs
	cassette.path = path

	return cassette, nil
}

// Parse decodes a cassette that is not backed by a file, e.g. an embedded
// fixture. Saving it requires SetLocation.
func Parse(content []byte) (*Cassette, error) {
	cassette := &Cassette{}
	if err := yaml.Unmarshal(content, cassette); err != nil {
		return nil, err
	}
	if cassette.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, cassette.Version)
	}
	if cassette.Interactions == nil {
		cassette.Interactions = make([]*Interaction, 0)
	}

	return cassette, nil
}

func (c *Cassette) SetLocation(fs afero.Fs, path string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.fs = fs
	c.path = path
}

func (c *Cassette) GetPath() string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.path
}

func (c *Cassette) Save() error {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.fs == nil || c.path == "" {
		return errors.New("cassette has no location")
	}

	content, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	return afero.WriteFile(c.fs, c.path, content, 0o644)
}

// Find returns the first interaction recorded for method and uri.
func (c *Cassette) Find(method, uri string) (*Interaction, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for _, interaction := range c.Interactions {
		if interaction.matches(method, uri) {
			return interaction, true
		}
	}

	return nil, false
}

// Add records an interaction. A previous record for the same method and uri
// is replaced in place so a URI keeps mapping to a single body.
func (c *Cassette) Add(interaction *Interaction) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for index, existing := range c.Interactions {
		if existing.matches(interaction.Request.Method, interaction.Request.URI) {
			c.Interactions[index] = interaction
			return
		}
	}

	c.Interactions = append(c.Interactions, interaction)
}

func (c *Cassette) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.Interactions)
}

func (c *Cassette) GetInteractions() []*Interaction {
	c.lock.RLock()
	defer c.lock.RUnlock()

	interactions := make([]*Interaction, len(c.Interactions))
	copy(interactions, c.Interactions)
	return interactions
}
