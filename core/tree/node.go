package tree

import (
	"github.com/artpar/conftree/core/typespec"
)

// Cipher is the encryption gateway consumed when a field is marked
// encrypted. Implementations live outside the tree; the envelope format is
// opaque here.
type Cipher interface {
	Encrypt(plaintext string) (ciphertext string, err error)
	Decrypt(ciphertext string) (plaintext string, err error)
}

// Node is one level of the configuration tree. It holds named values with
// per-field type specifiers, immutability locks, and encrypted-field
// markers. Child nodes are owned exclusively by their parent.
//
// A Node is not safe for concurrent mutation; build the tree first, then
// share it read-only, or serialize writes externally.
type Node struct {
	values    map[string]any
	types     map[string]typespec.Spec
	locks     map[string]bool
	encrypted map[string]struct{}
	order     []string
	cipher    Cipher
}

// NodeOption configures a new Node.
type NodeOption func(*Node)

// WithCipher sets the encryption gateway. Children created under this node
// inherit it.
func WithCipher(c Cipher) NodeOption {
	return func(n *Node) { n.cipher = c }
}

// New creates an empty node.
func New(opts ...NodeOption) *Node {
	n := &Node{
		values:    make(map[string]any),
		types:     make(map[string]typespec.Spec),
		locks:     make(map[string]bool),
		encrypted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type declareConfig struct {
	spec      typespec.Spec
	hasSpec   bool
	lock      bool
	hasLock   bool
	encrypted bool
}

// DeclareOption configures a single Declare call.
type DeclareOption func(*declareConfig)

// WithType declares the field's type specifier. An explicit type wins over
// any previously recorded one.
func WithType(spec typespec.Spec) DeclareOption {
	return func(c *declareConfig) {
		c.spec = spec
		c.hasSpec = true
	}
}

// WithLock sets the field's immutability flag. Once locked, a later Declare
// must pass WithLock(false) to be allowed through.
func WithLock(lock bool) DeclareOption {
	return func(c *declareConfig) {
		c.lock = lock
		c.hasLock = true
	}
}

// Encrypted marks the field as encrypted at rest. The value must be a
// string, or nil to mark an already-stored string field without changing it.
func Encrypted() DeclareOption {
	return func(c *declareConfig) { c.encrypted = true }
}

// Declare sets or updates a field. Mapping values (*Map or map[string]any)
// recurse into a child namespace; scalars are validated against the
// resolved type specifier before storage.
func (n *Node) Declare(name string, value any, opts ...DeclareOption) error {
	var cfg declareConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if !cfg.encrypted {
		switch mv := value.(type) {
		case *Map:
			return n.declareNamespace(name, mv)
		case map[string]any:
			return n.declareNamespace(name, FromGoMap(mv))
		}
	}

	if err := n.checkLock(name, cfg); err != nil {
		return err
	}

	if cfg.encrypted {
		return n.declareEncrypted(name, value, cfg)
	}

	spec := n.resolveSpec(name, cfg)
	ok, err := typespec.Matches(value, spec)
	if err != nil {
		return err
	}
	if !ok {
		return &TypeMismatchError{Field: name, Expected: spec, Value: value}
	}

	n.setValue(name, value)
	n.types[name] = spec
	delete(n.encrypted, name)
	if cfg.hasLock {
		n.locks[name] = cfg.lock
	}
	return nil
}

// Set is sugar for Declare with no options.
func (n *Node) Set(name string, value any) error {
	return n.Declare(name, value)
}

// Namespace gets or creates a child node at name and, if fn is non-nil,
// runs it with the child as the declaration target.
func (n *Node) Namespace(name string, fn func(*Node) error) (*Node, error) {
	child, err := n.childFor(name)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(child); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// Get returns the child node, the decrypted value for encrypted fields, or
// the stored scalar. Reading an undeclared field fails.
func (n *Node) Get(name string) (any, error) {
	v, ok := n.values[name]
	if !ok {
		return nil, &NoSuchFieldError{Field: name}
	}
	if child, ok := v.(*Node); ok {
		return child, nil
	}
	if _, enc := n.encrypted[name]; enc {
		if n.cipher == nil {
			return nil, ErrNoCipher
		}
		plain, err := n.cipher.Decrypt(v.(string))
		if err != nil {
			return nil, &DecryptError{Field: name, Err: err}
		}
		return plain, nil
	}
	return v, nil
}

// Has reports whether the field exists on this node.
func (n *Node) Has(name string) bool {
	_, ok := n.values[name]
	return ok
}

// Fields returns the field names in declaration order.
func (n *Node) Fields() []string {
	out := make([]string, len(n.order))
	copy(out, n.order)
	return out
}

// Child returns the nested node at name, failing if the field is absent or
// holds a scalar.
func (n *Node) Child(name string) (*Node, error) {
	v, err := n.Get(name)
	if err != nil {
		return nil, err
	}
	child, ok := v.(*Node)
	if !ok {
		return nil, &NotANamespaceError{Field: name}
	}
	return child, nil
}

// GetString returns a string field value.
func (n *Node) GetString(name string) (string, error) {
	v, err := n.Get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeMismatchError{Field: name, Expected: typespec.TagString, Value: v}
	}
	return s, nil
}

// GetInt returns an integer field value.
func (n *Node) GetInt(name string) (int, error) {
	v, err := n.Get(name)
	if err != nil {
		return 0, err
	}
	switch i := v.(type) {
	case int:
		return i, nil
	case int32:
		return int(i), nil
	case int64:
		return int(i), nil
	}
	return 0, &TypeMismatchError{Field: name, Expected: typespec.TagInt, Value: v}
}

// GetBool returns a boolean field value.
func (n *Node) GetBool(name string) (bool, error) {
	v, err := n.Get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeMismatchError{Field: name, Expected: typespec.TagBool, Value: v}
	}
	return b, nil
}

// GetFloat returns a floating-point field value.
func (n *Node) GetFloat(name string) (float64, error) {
	v, err := n.Get(name)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float64:
		return f, nil
	case float32:
		return float64(f), nil
	}
	return 0, &TypeMismatchError{Field: name, Expected: typespec.TagFloat, Value: v}
}

// Locked reports whether the field is immutable.
func (n *Node) Locked(name string) bool {
	return n.locks[name]
}

// IsEncrypted reports whether the field is stored as ciphertext.
func (n *Node) IsEncrypted(name string) bool {
	_, ok := n.encrypted[name]
	return ok
}

func (n *Node) declareNamespace(name string, data *Map) error {
	_, err := n.Namespace(name, func(child *Node) error {
		var loopErr error
		data.Range(func(k string, v any) bool {
			loopErr = child.Declare(k, v)
			return loopErr == nil
		})
		return loopErr
	})
	return err
}

func (n *Node) declareEncrypted(name string, value any, cfg declareConfig) error {
	if n.cipher == nil {
		return ErrNoCipher
	}

	// nil marks an existing field as encrypted without changing it.
	if value == nil {
		cur, ok := n.values[name]
		if !ok {
			return &NoSuchFieldError{Field: name}
		}
		if _, already := n.encrypted[name]; already {
			return nil
		}
		plain, ok := cur.(string)
		if !ok {
			return &TypeMismatchError{Field: name, Expected: typespec.TagString, Value: cur}
		}
		ct, err := n.cipher.Encrypt(plain)
		if err != nil {
			return err
		}
		n.values[name] = ct
		n.encrypted[name] = struct{}{}
		return nil
	}

	plain, ok := value.(string)
	if !ok {
		return &TypeMismatchError{Field: name, Expected: typespec.TagString, Value: value}
	}

	spec := n.resolveSpec(name, cfg)
	okSpec, err := typespec.Matches(plain, spec)
	if err != nil {
		return err
	}
	if !okSpec {
		return &TypeMismatchError{Field: name, Expected: spec, Value: value}
	}

	ct, err := n.cipher.Encrypt(plain)
	if err != nil {
		return err
	}
	n.setValue(name, ct)
	n.types[name] = spec
	n.encrypted[name] = struct{}{}
	if cfg.hasLock {
		n.locks[name] = cfg.lock
	}
	return nil
}

// checkLock enforces write-once fields. Passing WithLock(false) explicitly
// clears the lock and allows the write.
func (n *Node) checkLock(name string, cfg declareConfig) error {
	if !n.locks[name] {
		return nil
	}
	if _, exists := n.values[name]; !exists {
		return nil
	}
	if cfg.hasLock && !cfg.lock {
		return nil
	}
	return &ImmutableFieldError{Field: name}
}

// resolveSpec applies the type resolution order: explicit argument, then
// previously recorded type, then any.
func (n *Node) resolveSpec(name string, cfg declareConfig) typespec.Spec {
	if cfg.hasSpec {
		return cfg.spec
	}
	if prev, ok := n.types[name]; ok {
		return prev
	}
	return typespec.TagAny
}

func (n *Node) childFor(name string) (*Node, error) {
	if v, ok := n.values[name]; ok {
		if child, ok := v.(*Node); ok {
			return child, nil
		}
		if n.locks[name] {
			return nil, &ImmutableFieldError{Field: name}
		}
	}
	child := New(WithCipher(n.cipher))
	n.setValue(name, child)
	delete(n.types, name)
	delete(n.encrypted, name)
	return child, nil
}

func (n *Node) setValue(name string, value any) {
	if _, ok := n.values[name]; !ok {
		n.order = append(n.order, name)
	}
	n.values[name] = value
}
