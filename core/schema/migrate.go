package schema

import "fmt"

// MigrationFunc transforms a data record in place. It receives a shallow
// copy of the input; the original is never mutated.
type MigrationFunc func(data map[string]any)

// MigrationError reports a malformed registration or a missing migration
// path.
type MigrationError struct {
	From   string
	To     string
	Reason string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s -> %s: %s", e.From, e.To, e.Reason)
}

// AddMigration registers a transform from one exact version to another.
// Both endpoints are required.
func (d *Definition) AddMigration(from, to string, fn MigrationFunc) error {
	if from == "" || to == "" {
		return &MigrationError{From: from, To: to,
			Reason: "both source and destination versions are required"}
	}
	if fn == nil {
		return &MigrationError{From: from, To: to, Reason: "nil transform"}
	}
	d.migrations[migrationKey(from, to)] = fn
	return nil
}

// HasMigration reports whether an exact (from, to) pair is registered.
func (d *Definition) HasMigration(from, to string) bool {
	_, ok := d.migrations[migrationKey(from, to)]
	return ok
}

// Migrate applies the transform registered for the exact (from, to) pair to
// a shallow copy of data and returns the copy. No multi-hop chaining is
// attempted: 1.0->2.0 and 2.0->3.0 do not imply 1.0->3.0.
func (d *Definition) Migrate(data map[string]any, from, to string) (map[string]any, error) {
	fn, ok := d.migrations[migrationKey(from, to)]
	if !ok {
		return nil, &MigrationError{From: from, To: to, Reason: "no migration path"}
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	fn(out)
	return out, nil
}

func migrationKey(from, to string) string {
	return from + "->" + to
}
