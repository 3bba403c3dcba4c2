package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Map is an insertion-ordered string-keyed mapping. It is the exchange type
// between loaders, nodes, and exporters: YAML and JSON codecs preserve key
// order in both directions.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Set stores a value, appending the key to the order if it is new.
func (m *Map) Set(key string, value any) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
}

// Get returns the value for key and whether it exists.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Delete removes a key, preserving the order of the rest.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// FromGoMap builds a Map from a plain Go map. Go maps have no insertion
// order, so keys are sorted for determinism. Nested maps convert recursively.
func FromGoMap(src map[string]any) *Map {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := NewMap()
	for _, k := range keys {
		if nested, ok := src[k].(map[string]any); ok {
			out.Set(k, FromGoMap(nested))
			continue
		}
		out.Set(k, src[k])
	}
	return out
}

// Unflatten folds dotted keys ("server.port") into nested Maps. Keys are
// sorted first, so flat stores (redis hashes, settings tables) produce a
// deterministic tree.
func Unflatten(flat map[string]string) *Map {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := NewMap()
	for _, k := range keys {
		parts := strings.Split(k, ".")
		cur := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur.Get(part)
			child, isMap := next.(*Map)
			if !ok || !isMap {
				child = NewMap()
				cur.Set(part, child)
			}
			cur = child
		}
		cur.Set(parts[len(parts)-1], flat[k])
	}
	return out
}

// Flatten renders the map as dotted keys with string values, the inverse of
// Unflatten for string-valued trees. Non-string scalars are formatted with
// %v.
func (m *Map) Flatten() map[string]string {
	out := make(map[string]string)
	m.flattenInto("", out)
	return out
}

func (m *Map) flattenInto(prefix string, out map[string]string) {
	for _, k := range m.keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m.vals[k].(type) {
		case *Map:
			v.flattenInto(key, out)
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order. Nested objects
// become nested Maps.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	m.keys = nil
	m.vals = make(map[string]any)
	return decodeJSONObject(dec, m)
}

func decodeJSONObject(dec *json.Decoder, m *Map) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeJSONValue(dec)
		if err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		m.Set(key, val)
	}
	// Consume the closing brace.
	_, err := dec.Token()
	return err
}

func decodeJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			child := NewMap()
			if err := decodeJSONObject(dec, child); err != nil {
				return nil, err
			}
			return child, nil
		case '[':
			var items []any
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing bracket
				return nil, err
			}
			return items, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

// MarshalYAML encodes the map as a YAML mapping node in insertion order.
func (m *Map) MarshalYAML() (any, error) {
	return m.yamlNode()
}

func (m *Map) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		valNode, err := encodeYAMLValue(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

func encodeYAMLValue(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case *Map:
		return val.yamlNode()
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			child, err := encodeYAMLValue(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(v); err != nil {
			return nil, err
		}
		return node, nil
	}
}

// UnmarshalYAML decodes a YAML mapping, preserving document order.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected YAML mapping, got %v", node.Kind)
	}
	m.keys = nil
	m.vals = make(map[string]any)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		val, err := decodeYAMLValue(valNode)
		if err != nil {
			return fmt.Errorf("decode %q: %w", keyNode.Value, err)
		}
		m.Set(keyNode.Value, val)
	}
	return nil
}

func decodeYAMLValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		child := NewMap()
		if err := child.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return child, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			item, err := decodeYAMLValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case yaml.AliasNode:
		return decodeYAMLValue(node.Alias)
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
