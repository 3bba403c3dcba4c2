// Package ports defines interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/conftree/core/tree"
)

// Cipher is the encryption gateway contract (see tree.Cipher): an opaque
// encrypt/decrypt capability over string payloads.
type Cipher = tree.Cipher

// Source produces a configuration snapshot as an ordered mapping. A Source
// may perform blocking I/O; it must honor context cancellation.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Load reads the current configuration snapshot.
	Load(ctx context.Context) (*tree.Map, error)
}

// WatchableSource is a Source that can signal when its data changes. The
// returned channel is closed when the context is cancelled.
type WatchableSource interface {
	Source

	Watch(ctx context.Context) (<-chan struct{}, error)
}

// SettingsStore persists flat dotted-key settings with an encrypted marker
// per key.
type SettingsStore interface {
	// Get retrieves a single value by key.
	Get(ctx context.Context, key string) (value string, encrypted bool, err error)

	// GetAll retrieves every key/value pair.
	GetAll(ctx context.Context) (map[string]string, error)

	// EncryptedKeys lists the keys stored with the encrypted marker.
	EncryptedKeys(ctx context.Context) ([]string, error)

	// Set stores a value, replacing any previous one.
	Set(ctx context.Context, key, value string, encrypted bool) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}

// Metrics receives loader instrumentation. The Prometheus implementation
// lives in adapters/metrics.
type Metrics interface {
	// ObserveLoad records one load attempt against a source, successful
	// or not.
	ObserveLoad(source string, took time.Duration)

	// IncLoadError records a failed load for a source.
	IncLoadError(source string)

	// SetSnapshotAge reports the age of the current snapshot in seconds.
	SetSnapshotAge(seconds float64)
}
