package tree

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// ToMap exports the tree as a plain ordered mapping. Nested nodes become
// nested Maps and encrypted fields are decrypted, so the external
// representation is always plaintext.
func (n *Node) ToMap() (*Map, error) {
	out := NewMap()
	for _, k := range n.order {
		v := n.values[k]
		if child, ok := v.(*Node); ok {
			exported, err := child.ToMap()
			if err != nil {
				return nil, err
			}
			out.Set(k, exported)
			continue
		}
		if _, enc := n.encrypted[k]; enc {
			if n.cipher == nil {
				return nil, ErrNoCipher
			}
			plain, err := n.cipher.Decrypt(v.(string))
			if err != nil {
				return nil, &DecryptError{Field: k, Err: err}
			}
			out.Set(k, plain)
			continue
		}
		out.Set(k, v)
	}
	return out, nil
}

// ToJSON serializes the exported mapping as JSON, preserving declaration
// order.
func (n *Node) ToJSON() ([]byte, error) {
	m, err := n.ToMap()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// ToYAML serializes the exported mapping as YAML, preserving declaration
// order.
func (n *Node) ToYAML() ([]byte, error) {
	m, err := n.ToMap()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(m)
}

// WriteYAML serializes the tree and writes it to path.
func (n *Node) WriteYAML(path string) error {
	data, err := n.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
