/*
Package tree implements the configuration tree: mutable nodes of named,
typed values with nested namespaces, immutability locks, and transparent
field-level encryption.

# Building a tree

	cfg := tree.New()
	_ = cfg.Declare("count", 10, tree.WithType("int"))
	_, _ = cfg.Namespace("database", func(db *tree.Node) error {
		if err := db.Declare("url", "postgres://localhost", tree.WithLock(true)); err != nil {
			return err
		}
		return db.Declare("pool_size", 5, tree.WithType("int"))
	})

Declarations validate values against their resolved type specifier (explicit
argument, previously recorded type, then "any") via core/typespec. A field
declared with WithLock(true) rejects later writes unless the caller
explicitly passes WithLock(false).

# Encryption

A node constructed with WithCipher stores fields declared Encrypted() as
ciphertext and decrypts them transparently on Get and on export. Encrypted
values must be strings; declaring Encrypted() with a nil value marks an
existing string field without changing it.

# Loading and exporting

Load replays an external ordered mapping (tree.Map) through the declaration
path, optionally carrying parallel type/lock/encrypted schemas of the same
shape. ToMap, ToJSON, ToYAML and WriteYAML walk the tree back out in
declaration order with encrypted fields decrypted.

Nodes are not safe for concurrent mutation. Build first, then share
read-only, or serialize writes externally.
*/
package tree
