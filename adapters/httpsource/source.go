// Package httpsource loads configuration trees from a remote HTTP endpoint
// serving YAML or JSON, with ETag revalidation and optional polling.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/ports"
)

var _ ports.WatchableSource = (*Source)(nil)

// Source fetches an ordered configuration mapping over HTTP. Responses are
// revalidated with If-None-Match; a 304 returns the cached snapshot.
type Source struct {
	url          string
	apiKey       string
	header       string
	pollInterval time.Duration
	client       *http.Client
	logger       zerolog.Logger

	mu     sync.Mutex
	etag   string
	cached *tree.Map
}

// Option configures a Source.
type Option func(*Source)

// WithAPIKey sends the key in the given header (default X-API-Key) on every
// request.
func WithAPIKey(key string) Option {
	return func(s *Source) { s.apiKey = key }
}

// WithHeader overrides the API key header name.
func WithHeader(name string) Option {
	return func(s *Source) { s.header = name }
}

// WithClient sets a custom HTTP client.
func WithClient(client *http.Client) Option {
	return func(s *Source) { s.client = client }
}

// WithPollInterval sets how often Watch polls for changes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Source) { s.pollInterval = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates an HTTP source for url.
func New(url string, opts ...Option) *Source {
	s := &Source{
		url:          url,
		header:       "X-API-Key",
		pollInterval: 30 * time.Second,
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "http:" + s.url }

// Load fetches the current snapshot, serving from cache on 304.
func (s *Source) Load(ctx context.Context) (*tree.Map, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set(s.header, s.apiKey)
	}

	s.mu.Lock()
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	s.mu.Unlock()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		s.mu.Lock()
		cached := s.cached
		s.mu.Unlock()
		if cached == nil {
			return nil, fmt.Errorf("fetch config: 304 with no cached snapshot")
		}
		return cached, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch config: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	m := tree.NewMap()
	if isJSON(resp.Header.Get("Content-Type")) {
		if err := json.Unmarshal(body, m); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(body, m); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	s.mu.Lock()
	s.etag = resp.Header.Get("ETag")
	s.cached = m
	s.mu.Unlock()

	return m, nil
}

// Watch polls the endpoint and signals when the ETag changes. The channel
// is closed when ctx is cancelled.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				prev := s.etag
				s.mu.Unlock()

				if _, err := s.Load(ctx); err != nil {
					s.logger.Error().Err(err).Str("url", s.url).Msg("poll failed")
					continue
				}

				s.mu.Lock()
				changed := s.etag != prev
				s.mu.Unlock()
				if changed {
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "json")
}
