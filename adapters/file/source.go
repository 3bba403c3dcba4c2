// Package file loads configuration trees from local YAML or JSON files,
// with optional change watching.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/conftree/core/tree"
	"github.com/artpar/conftree/ports"
)

var _ ports.WatchableSource = (*Source)(nil)

// Source reads an ordered configuration mapping from a file. The format is
// chosen by extension: .json is JSON, everything else is YAML.
type Source struct {
	path      string
	expandEnv bool
	logger    zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithEnvExpansion expands $VAR references in the file before parsing.
func WithEnvExpansion() Option {
	return func(s *Source) { s.expandEnv = true }
}

// WithLogger sets the logger for watch events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates a file source for path.
func New(path string, opts ...Option) *Source {
	s := &Source{path: path, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the source in logs and metrics.
func (s *Source) Name() string { return "file:" + s.path }

// Load reads and parses the file into an ordered mapping.
func (s *Source) Load(ctx context.Context) (*tree.Map, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if s.expandEnv {
		data = []byte(os.ExpandEnv(string(data)))
	}

	m := tree.NewMap()
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		return m, nil
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}
