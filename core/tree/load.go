package tree

type loadConfig struct {
	types     map[string]any
	locks     map[string]any
	encrypted map[string]any
}

// LoadOption configures a Load call.
type LoadOption func(*loadConfig)

// WithTypeSchema supplies a nested mapping of field name to type specifier,
// mirroring the shape of the data being loaded.
func WithTypeSchema(schema map[string]any) LoadOption {
	return func(c *loadConfig) { c.types = schema }
}

// WithLockSchema supplies a nested mapping of field name to lock flag.
func WithLockSchema(schema map[string]any) LoadOption {
	return func(c *loadConfig) { c.locks = schema }
}

// WithEncryptedFields supplies a nested mapping of field name to a true
// marker for fields that must be stored encrypted.
func WithEncryptedFields(schema map[string]any) LoadOption {
	return func(c *loadConfig) { c.encrypted = schema }
}

// Load walks an external ordered mapping and replays it through Declare.
// Nested mappings and nested nodes recurse into namespaces; scalars carry
// the schema's type, lock, and encrypted flags for their key.
func (n *Node) Load(data *Map, opts ...LoadOption) error {
	var cfg loadConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return n.load(data, cfg)
}

func (n *Node) load(data *Map, cfg loadConfig) error {
	var loopErr error
	data.Range(func(key string, value any) bool {
		loopErr = n.loadEntry(key, value, cfg)
		return loopErr == nil
	})
	return loopErr
}

func (n *Node) loadEntry(key string, value any, cfg loadConfig) error {
	switch v := value.(type) {
	case *Map:
		_, err := n.Namespace(key, func(child *Node) error {
			return child.load(v, descend(cfg, key))
		})
		return err
	case map[string]any:
		_, err := n.Namespace(key, func(child *Node) error {
			return child.load(FromGoMap(v), descend(cfg, key))
		})
		return err
	case *Node:
		exported, err := v.ToMap()
		if err != nil {
			return err
		}
		_, err = n.Namespace(key, func(child *Node) error {
			return child.load(exported, descend(cfg, key))
		})
		return err
	default:
		var opts []DeclareOption
		if spec, ok := lookupSchema(cfg.types, key); ok {
			opts = append(opts, WithType(spec))
		}
		if lock, ok := lookupSchema(cfg.locks, key); ok {
			if b, isBool := lock.(bool); isBool {
				opts = append(opts, WithLock(b))
			}
		}
		if enc, ok := lookupSchema(cfg.encrypted, key); ok {
			if b, isBool := enc.(bool); isBool && b {
				opts = append(opts, Encrypted())
			}
		}
		return n.Declare(key, value, opts...)
	}
}

// descend narrows each parallel schema to the nested mapping under key.
func descend(cfg loadConfig, key string) loadConfig {
	return loadConfig{
		types:     subSchema(cfg.types, key),
		locks:     subSchema(cfg.locks, key),
		encrypted: subSchema(cfg.encrypted, key),
	}
}

func subSchema(schema map[string]any, key string) map[string]any {
	if schema == nil {
		return nil
	}
	if sub, ok := schema[key].(map[string]any); ok {
		return sub
	}
	return nil
}

// lookupSchema returns the leaf entry for key, ignoring nested mappings
// (those belong to child namespaces).
func lookupSchema(schema map[string]any, key string) (any, bool) {
	if schema == nil {
		return nil, false
	}
	v, ok := schema[key]
	if !ok {
		return nil, false
	}
	if _, nested := v.(map[string]any); nested {
		return nil, false
	}
	return v, true
}

// TypeSchema produces a nested mapping from field name to declared type,
// descending into child nodes. Fields with no recorded type report any.
func (n *Node) TypeSchema() map[string]any {
	out := make(map[string]any, len(n.order))
	for _, k := range n.order {
		if child, ok := n.values[k].(*Node); ok {
			out[k] = child.TypeSchema()
			continue
		}
		if spec, ok := n.types[k]; ok {
			out[k] = spec
		} else {
			out[k] = "any"
		}
	}
	return out
}

// LockSchema produces a nested mapping from field name to lock flag.
func (n *Node) LockSchema() map[string]any {
	out := make(map[string]any, len(n.order))
	for _, k := range n.order {
		if child, ok := n.values[k].(*Node); ok {
			out[k] = child.LockSchema()
			continue
		}
		out[k] = n.locks[k]
	}
	return out
}
