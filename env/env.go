// Package env provides environment- and team-scoped configuration roots.
// The active environment travels as an explicit context value rather than
// mutable global state; scoping is therefore naturally restored on every
// exit path.
package env

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/artpar/conftree/core/tree"
)

// Environment names an isolation scope for a configuration root.
type Environment string

// Common environments.
const (
	Development Environment = "development"
	Test        Environment = "test"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

type ctxKey struct{}

// WithEnvironment returns a context carrying the active environment.
// Deriving a child context is the scoped-override mechanism: the parent
// context keeps its own value no matter how the child scope exits.
func WithEnvironment(ctx context.Context, e Environment) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromContext returns the active environment, defaulting to Development.
func FromContext(ctx context.Context) Environment {
	if e, ok := ctx.Value(ctxKey{}).(Environment); ok && e != "" {
		return e
	}
	return Development
}

// Detect reads the environment from CONFTREE_ENV, APP_ENV, or GO_ENV, in
// that order, defaulting to Development.
func Detect() Environment {
	for _, key := range []string{"CONFTREE_ENV", "APP_ENV", "GO_ENV"} {
		if v := os.Getenv(key); v != "" {
			return Environment(v)
		}
	}
	return Development
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCipher sets the encryption gateway inherited by every root the
// registry creates.
func WithCipher(c tree.Cipher) RegistryOption {
	return func(r *Registry) { r.cipher = c }
}

// Registry holds one isolated configuration root per environment. Roots are
// created lazily and never share state.
type Registry struct {
	mu     sync.Mutex
	cipher tree.Cipher
	roots  map[Environment]*tree.Node
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{roots: make(map[Environment]*tree.Node)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Env returns the root for an environment, creating it on first use.
func (r *Registry) Env(e Environment) *tree.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, ok := r.roots[e]
	if !ok {
		root = tree.New(tree.WithCipher(r.cipher))
		r.roots[e] = root
	}
	return root
}

// Configure runs fn against the root for the context's active environment.
func (r *Registry) Configure(ctx context.Context, fn func(*tree.Node) error) error {
	return fn(r.Env(FromContext(ctx)))
}

// Environments lists the environments with existing roots, sorted.
func (r *Registry) Environments() []Environment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Environment, 0, len(r.roots))
	for e := range r.roots {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Teams holds one isolated configuration root per team. Two teams declaring
// the same field name never observe each other's values.
type Teams struct {
	mu     sync.Mutex
	cipher tree.Cipher
	roots  map[string]*tree.Node
}

// NewTeams creates an empty team registry.
func NewTeams(opts ...TeamsOption) *Teams {
	t := &Teams{roots: make(map[string]*tree.Node)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TeamsOption configures a Teams registry.
type TeamsOption func(*Teams)

// WithTeamCipher sets the encryption gateway inherited by team roots.
func WithTeamCipher(c tree.Cipher) TeamsOption {
	return func(t *Teams) { t.cipher = c }
}

// Team returns the root for a team, creating it on first use.
func (t *Teams) Team(name string) *tree.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	root, ok := t.roots[name]
	if !ok {
		root = tree.New(tree.WithCipher(t.cipher))
		t.roots[name] = root
	}
	return root
}

// Configure runs fn against a team's root.
func (t *Teams) Configure(name string, fn func(*tree.Node) error) error {
	return fn(t.Team(name))
}
