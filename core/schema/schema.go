// Package schema provides versioned configuration schemas: required,
// optional and deprecated field declarations plus registered migrations
// between versions.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/conftree/core/typespec"
)

// RequiredField declares a field that must be present from a version on.
type RequiredField struct {
	Type  typespec.Spec
	Since string
}

// OptionalField declares a field with a default value.
type OptionalField struct {
	Type    typespec.Spec
	Default any
	Since   string
}

// DeprecatedField declares a field scheduled for removal.
type DeprecatedField struct {
	Since    string
	RemoveIn string
}

// Definition is a versioned schema for a configuration shape. Declarations
// are registered up front; Validate and Migrate never mutate the
// definition.
type Definition struct {
	version    string
	required   map[string]RequiredField
	optional   map[string]OptionalField
	deprecated map[string]DeprecatedField
	migrations map[string]MigrationFunc

	logger        zerolog.Logger
	onDeprecation func(field, message string)
}

// Option configures a Definition.
type Option func(*Definition)

// WithLogger sets the logger used for deprecation warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Definition) { d.logger = logger }
}

// WithDeprecationHook registers a callback invoked for each live
// deprecation found during Validate, in addition to the log warning.
func WithDeprecationHook(fn func(field, message string)) Option {
	return func(d *Definition) { d.onDeprecation = fn }
}

// New creates a Definition for the given version.
func New(version string, opts ...Option) *Definition {
	d := &Definition{
		version:    version,
		required:   make(map[string]RequiredField),
		optional:   make(map[string]OptionalField),
		deprecated: make(map[string]DeprecatedField),
		migrations: make(map[string]MigrationFunc),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Version returns the declared schema version.
func (d *Definition) Version() string { return d.version }

// Required declares a required field. Returns the definition for chaining.
func (d *Definition) Required(name string, typ typespec.Spec, since string) *Definition {
	d.required[name] = RequiredField{Type: typ, Since: since}
	return d
}

// Optional declares an optional field with a default.
func (d *Definition) Optional(name string, typ typespec.Spec, def any, since string) *Definition {
	d.optional[name] = OptionalField{Type: typ, Default: def, Since: since}
	return d
}

// Deprecated declares a field as deprecated since a version, optionally
// removed in a later one.
func (d *Definition) Deprecated(name, since, removeIn string) *Definition {
	d.deprecated[name] = DeprecatedField{Since: since, RemoveIn: removeIn}
	return d
}

// FieldError describes one validation failure.
type FieldError struct {
	Field   string
	Rule    string
	Value   any
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates all failures from one Validate call.
type ValidationError struct {
	Version string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("schema validation failed at version %s: %s",
		e.Version, strings.Join(msgs, "; "))
}

func (e *ValidationError) add(field, rule string, value any, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Value: value, Message: message})
}

// Validate checks data against the schema at the given version (the
// definition's own version when omitted). The three passes run
// independently over the full field set every call: required presence,
// deprecations, then type checks. Live deprecations warn without failing.
func (d *Definition) Validate(data map[string]any, version ...string) error {
	current := d.version
	if len(version) > 0 && version[0] != "" {
		current = version[0]
	}

	verr := &ValidationError{Version: current}

	for _, name := range sortedKeys(d.required) {
		f := d.required[name]
		if Compare(f.Since, current) > 0 {
			continue
		}
		if _, ok := data[name]; !ok {
			verr.add(name, "required", nil, "missing required field")
		}
	}

	for _, name := range sortedKeys(d.deprecated) {
		f := d.deprecated[name]
		value, present := data[name]
		if !present || Compare(f.Since, current) > 0 {
			continue
		}
		if f.RemoveIn != "" && Compare(f.RemoveIn, current) <= 0 {
			verr.add(name, "removed", value,
				fmt.Sprintf("field removed in version %s", f.RemoveIn))
			continue
		}
		msg := fmt.Sprintf("field %q is deprecated since version %s", name, f.Since)
		d.logger.Warn().
			Str("field", name).
			Str("since", f.Since).
			Str("remove_in", f.RemoveIn).
			Msg("deprecated field in use")
		if d.onDeprecation != nil {
			d.onDeprecation(name, msg)
		}
	}

	for _, name := range sortedKeys(data) {
		spec, declared := d.typeFor(name)
		if !declared {
			continue
		}
		value := data[name]
		ok, err := typespec.Matches(value, spec)
		if err != nil {
			// Unresolvable specifier is a declaration error, not a
			// validation failure.
			return err
		}
		if !ok {
			verr.add(name, "type", value,
				fmt.Sprintf("invalid type: expected %s, got %T",
					typespec.Describe(spec), value))
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ApplyDefaults fills absent optional fields with their defaults. Defaults
// are deep-copied so trees hydrated from one definition never alias a
// shared mutable value.
func (d *Definition) ApplyDefaults(data map[string]any) {
	for name, f := range d.optional {
		if f.Default == nil {
			continue
		}
		if _, ok := data[name]; ok {
			continue
		}
		data[name] = cloneValue(f.Default)
	}
}

func (d *Definition) typeFor(name string) (typespec.Spec, bool) {
	if f, ok := d.required[name]; ok {
		return f.Type, true
	}
	if f, ok := d.optional[name]; ok {
		return f.Type, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
