package cassette

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/afero"

	"stac-validator/types/config"
)

type Mode string

const (
	// ModeOnce replays an existing cassette and records a new one otherwise.
	ModeOnce Mode = "once"
	// ModeNewEpisodes replays known interactions and records the rest.
	ModeNewEpisodes Mode = "new_episodes"
	// ModeAll records every request, replacing what was there.
	ModeAll Mode = "all"
	// ModeNone only replays; unknown requests fail.
	ModeNone Mode = "none"
	// ModeDisabled passes every request through.
	ModeDisabled Mode = "disabled"
)

func ParseMode(mode string) (Mode, error) {
	switch Mode(mode) {
	case ModeOnce, ModeNewEpisodes, ModeAll, ModeNone, ModeDisabled:
		return Mode(mode), nil
	case "":
		return ModeDisabled, nil
	}
	return "", fmt.Errorf("unknown cassette mode %q", mode)
}

var sensitiveHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
	"Set-Cookie",
}

type Stats struct {
	Hits     int `json:"hits"`
	Misses   int `json:"misses"`
	Recorded int `json:"recorded"`
}

// Recorder is an http.RoundTripper replaying and recording interactions
// from a cassette.
type Recorder struct {
	sync.Mutex

	cassette  *Cassette
	mode      Mode
	transport http.RoundTripper
	replaying bool
	dirty     bool
	stats     Stats
}

// NewRecorder opens (or starts) the cassette at path. transport performs the
// real requests; nil means http.DefaultTransport.
func NewRecorder(fs afero.Fs, path string, mode Mode, transport http.RoundTripper) (*Recorder, error) {
	existing := true

	cassette, err := Load(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		if mode == ModeNone {
			return nil, fmt.Errorf("cassette %s does not exist: %w", path, err)
		}
		existing = false
		cassette = New(fs, path)
	} else if err != nil {
		return nil, err
	}

	recorder := NewRecorderFromCassette(cassette, mode, transport)
	recorder.replaying = existing
	return recorder, nil
}

// NewRecorderFromCassette wraps an already loaded cassette, e.g. an embedded
// fixture, which counts as existing for ModeOnce.
func NewRecorderFromCassette(cassette *Cassette, mode Mode, transport http.RoundTripper) *Recorder {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Recorder{
		cassette:  cassette,
		mode:      mode,
		transport: transport,
		replaying: true,
	}
}

func (r *Recorder) GetMode() Mode {
	return r.mode
}

func (r *Recorder) GetCassette() *Cassette {
	return r.cassette
}

func (r *Recorder) GetStats() Stats {
	r.Lock()
	defer r.Unlock()

	return r.stats
}

// Client returns an http.Client routed through the recorder.
func (r *Recorder) Client() *http.Client {
	return &http.Client{Transport: r}
}

func (r *Recorder) RoundTrip(request *http.Request) (*http.Response, error) {
	if r.mode == ModeDisabled {
		return r.transport.RoundTrip(request)
	}

	uri := request.URL.String()

	if r.mode != ModeAll {
		if interaction, found := r.cassette.Find(request.Method, uri); found {
			r.count(func(stats *Stats) { stats.Hits++ })
			config.GetLogger().Debugf("Replaying %s %s", request.Method, uri)
			return interaction.toResponse(request), nil
		}
	}

	r.count(func(stats *Stats) { stats.Misses++ })

	if r.mode == ModeNone || (r.mode == ModeOnce && r.replaying) {
		return nil, fmt.Errorf("%w: %s %s", ErrInteractionNotFound, request.Method, uri)
	}

	return r.record(request)
}

func (r *Recorder) count(update func(*Stats)) {
	r.Lock()
	defer r.Unlock()

	update(&r.stats)
}

func (r *Recorder) record(request *http.Request) (*http.Response, error) {
	var requestBody []byte
	if request.Body != nil && request.Body != http.NoBody {
		body, err := io.ReadAll(request.Body)
		request.Body.Close()
		if err != nil {
			return nil, err
		}
		requestBody = body
		request.Body = io.NopCloser(bytes.NewReader(body))
	}

	response, err := r.transport.RoundTrip(request)
	if err != nil {
		return nil, err
	}

	responseBody, err := io.ReadAll(response.Body)
	response.Body.Close()
	if err != nil {
		return nil, err
	}
	response.Body = io.NopCloser(bytes.NewReader(responseBody))

	r.cassette.Add(&Interaction{
		Request: Request{
			Method:  request.Method,
			URI:     request.URL.String(),
			Headers: filterHeaders(request.Header),
			Body:    string(requestBody),
		},
		Response: Response{
			Status: Status{
				Code:    response.StatusCode,
				Message: http.StatusText(response.StatusCode),
			},
			Headers: filterHeaders(response.Header),
			Body:    string(responseBody),
		},
	})

	r.Lock()
	r.dirty = true
	r.stats.Recorded++
	r.Unlock()

	config.GetLogger().Debugf("Recorded %s %s", request.Method, request.URL.String())

	return response, nil
}

// Stop writes the cassette back if anything was recorded.
func (r *Recorder) Stop() error {
	r.Lock()
	dirty := r.dirty
	r.dirty = false
	r.Unlock()

	if !dirty {
		return nil
	}
	return r.cassette.Save()
}

func filterHeaders(headers http.Header) http.Header {
	if len(headers) == 0 {
		return nil
	}

	filtered := headers.Clone()
	for _, header := range sensitiveHeaders {
		filtered.Del(header)
	}
	return filtered
}

func (i *Interaction) toResponse(request *http.Request) *http.Response {
	headers := i.Response.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}

	status := i.Response.Status.Message
	if status == "" {
		status = http.StatusText(i.Response.Status.Code)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", i.Response.Status.Code, status),
		StatusCode:    i.Response.Status.Code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewBufferString(i.Response.Body)),
		ContentLength: int64(len(i.Response.Body)),
		Request:       request,
	}
}
