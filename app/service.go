// Package app contains the loader Service: it turns a configuration source
// into a cached, periodically refreshed tree snapshot.
package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/ports"
)

// Options configures a Service.
type Options struct {
	Source ports.Source
	Cipher ports.Cipher
	Logger zerolog.Logger

	// Parallel schemas handed to tree.Load on every refresh.
	TypeSchema      map[string]any
	LockSchema      map[string]any
	EncryptedFields map[string]any

	// RefreshInterval enables periodic background refresh when non-zero.
	// Each tick is jittered by up to 10% to avoid thundering herds across
	// replicas.
	RefreshInterval time.Duration

	// ReloadsPerMinute caps how often watch events may trigger a reload.
	// Zero means 12 per minute.
	ReloadsPerMinute int

	// Metrics receives load instrumentation when non-nil.
	Metrics ports.Metrics
}

func (o *Options) setDefaults() {
	if o.ReloadsPerMinute == 0 {
		o.ReloadsPerMinute = 12
	}
}

// Service provides thread-safe access to the current configuration tree
// with background refresh. A failed refresh keeps the last good snapshot.
type Service struct {
	source  ports.Source
	cipher  ports.Cipher
	logger  zerolog.Logger
	opts    Options
	metrics ports.Metrics

	sf      singleflight.Group
	limiter *rate.Limiter

	mu       sync.RWMutex
	current  *tree.Node
	loadedAt time.Time
	onChange []func(*tree.Node)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewService creates a loader service. Call Load before first use, or Start
// to load and begin background refresh.
func NewService(opts Options) *Service {
	opts.setDefaults()
	return &Service{
		source:  opts.Source,
		cipher:  opts.Cipher,
		logger:  opts.Logger,
		opts:    opts,
		metrics: opts.Metrics,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.ReloadsPerMinute)/60.0), 1),
		stopCh:  make(chan struct{}),
	}
}

// Load fetches a snapshot from the source and swaps it in. Concurrent calls
// are deduplicated; all callers observe the result of one underlying load.
func (s *Service) Load(ctx context.Context) error {
	_, err, _ := s.sf.Do("load", func() (any, error) {
		return nil, s.load(ctx)
	})
	return err
}

func (s *Service) load(ctx context.Context) error {
	start := time.Now()
	data, err := s.source.Load(ctx)
	if s.metrics != nil {
		s.metrics.ObserveLoad(s.source.Name(), time.Since(start))
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncLoadError(s.source.Name())
		}
		s.logger.Error().Err(err).Str("source", s.source.Name()).
			Msg("config load failed, keeping old snapshot")
		return err
	}

	node := tree.New(tree.WithCipher(s.cipher))
	loadOpts := []tree.LoadOption{}
	if s.opts.TypeSchema != nil {
		loadOpts = append(loadOpts, tree.WithTypeSchema(s.opts.TypeSchema))
	}
	if s.opts.LockSchema != nil {
		loadOpts = append(loadOpts, tree.WithLockSchema(s.opts.LockSchema))
	}
	if s.opts.EncryptedFields != nil {
		loadOpts = append(loadOpts, tree.WithEncryptedFields(s.opts.EncryptedFields))
	}
	if err := node.Load(data, loadOpts...); err != nil {
		if s.metrics != nil {
			s.metrics.IncLoadError(s.source.Name())
		}
		s.logger.Error().Err(err).Str("source", s.source.Name()).
			Msg("config rejected, keeping old snapshot")
		return err
	}

	s.mu.Lock()
	s.current = node
	s.loadedAt = time.Now()
	listeners := make([]func(*tree.Node), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetSnapshotAge(0)
	}
	for _, fn := range listeners {
		fn(node)
	}

	s.logger.Info().
		Str("source", s.source.Name()).
		Int("fields", data.Len()).
		Dur("took", time.Since(start)).
		Msg("configuration loaded")
	return nil
}

// Snapshot returns the current tree. The tree must be treated as read-only;
// the next refresh replaces it wholesale.
func (s *Service) Snapshot() *tree.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LoadedAt returns when the current snapshot was taken.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// OnChange registers a callback invoked with each new snapshot.
func (s *Service) OnChange(fn func(*tree.Node)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Start performs an initial load and begins background refresh: a jittered
// ticker when RefreshInterval is set, plus source watch events when the
// source supports them. Watch-triggered reloads are rate limited.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	if s.opts.RefreshInterval > 0 {
		go s.refreshLoop(ctx)
	}

	if ws, ok := s.source.(ports.WatchableSource); ok {
		ch, err := ws.Watch(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("source watch unavailable, relying on interval refresh")
		} else {
			go s.watchLoop(ctx, ch)
		}
	}
	return nil
}

// Stop halts background refresh. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Service) refreshLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(jittered(s.opts.RefreshInterval))
		select {
		case <-timer.C:
			if s.metrics != nil {
				s.metrics.SetSnapshotAge(time.Since(s.LoadedAt()).Seconds())
			}
			if err := s.Load(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("background refresh failed")
			}
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Service) watchLoop(ctx context.Context, ch <-chan struct{}) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
			if !s.limiter.Allow() {
				s.logger.Debug().Msg("reload suppressed by rate limit")
				continue
			}
			if err := s.Load(ctx); err != nil {
				s.logger.Debug().Err(err).Msg("watch-triggered reload failed")
			}
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

// jittered spreads ticks by up to 10% of the interval.
func jittered(d time.Duration) time.Duration {
	if d < 10 {
		return d
	}
	j := time.Duration(rand.Int63n(int64(d) / 10))
	return d + j
}
