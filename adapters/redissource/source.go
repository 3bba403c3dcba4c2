// Package redissource loads configuration trees from a redis hash. Dotted
// hash fields ("server.port") fold into nested namespaces.
package redissource

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/ports"
)

var _ ports.WatchableSource = (*Source)(nil)

// Source reads a configuration snapshot from one redis hash key.
type Source struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
	logger       zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithPollInterval sets how often Watch polls for changes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Source) { s.pollInterval = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates a redis source over an existing client. The hash key is
// conventionally namespaced, e.g. "conftree:production".
func New(client *redis.Client, key string, opts ...Option) *Source {
	s := &Source{
		client:       client,
		key:          key,
		pollInterval: 30 * time.Second,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "redis:" + s.key }

// Load reads the full hash and folds dotted fields into a nested mapping.
func (s *Source) Load(ctx context.Context) (*tree.Map, error) {
	flat, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read hash %s: %w", s.key, err)
	}
	return tree.Unflatten(flat), nil
}

// Watch polls the hash and signals when its contents change. The channel is
// closed when ctx is cancelled.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		var last map[string]string
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				flat, err := s.client.HGetAll(ctx, s.key).Result()
				if err != nil {
					s.logger.Error().Err(err).Str("key", s.key).Msg("poll failed")
					continue
				}
				if last != nil && !equal(last, flat) {
					select {
					case ch <- struct{}{}:
					default:
					}
				}
				last = flat
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func equal(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
