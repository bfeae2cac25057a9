// Package secrets provides a hierarchical key/value store with
// {{dotted.path}} interpolation over arbitrary text, and a flattening
// projection into environment variables.
package secrets

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is a recursive secret value: either a leaf string or a mapping from
// string keys to further Trees. Lookup is defined only for paths that
// terminate at a leaf.
type Tree struct {
	leaf     string
	isLeaf   bool
	children map[string]*Tree
}

// Store holds a parsed secret tree. The zero value is a valid empty store.
type Store struct {
	root *Tree
}

// Empty returns a Store with no keys.
func Empty() *Store {
	return &Store{root: &Tree{children: map[string]*Tree{}}}
}

// Load reads a YAML document at path whose top level is a map of
// string -> (string | nested map) and builds a Store from it. A missing
// or unreadable file is an error, as is a malformed one; an empty file
// yields an empty store, and Empty builds one without any file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing secrets YAML: %w", err)
	}

	root, err := buildTree(raw)
	if err != nil {
		return nil, fmt.Errorf("secrets file %s: %w", path, err)
	}
	return &Store{root: root}, nil
}

// buildTree converts a decoded YAML map into a Tree, failing loudly on any
// shape other than string leaves and nested string-keyed maps.
func buildTree(raw map[string]any) (*Tree, error) {
	node := &Tree{children: map[string]*Tree{}}
	for key, value := range raw {
		child, err := buildNode(value)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		node.children[key] = child
	}
	return node, nil
}

func buildNode(value any) (*Tree, error) {
	switch v := value.(type) {
	case string:
		return &Tree{leaf: v, isLeaf: true}, nil
	case map[string]any:
		return buildTree(v)
	case map[any]any:
		// yaml.v3 decodes some untyped maps with interface{} keys.
		converted := make(map[string]any, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v in nested map", k)
			}
			converted[ks] = val
		}
		return buildTree(converted)
	default:
		return nil, fmt.Errorf("unsupported secret value %T, want string or map", value)
	}
}

// Get splits path on "." and descends one level per segment, returning the
// leaf string iff the final node is a leaf. A path whose terminal node is
// a map, or whose traversal hits a missing key, yields ok=false.
func (s *Store) Get(path string) (string, bool) {
	if s == nil || s.root == nil {
		return "", false
	}
	node := s.root
	for _, segment := range strings.Split(path, ".") {
		if node.isLeaf || node.children == nil {
			return "", false
		}
		next, ok := node.children[segment]
		if !ok {
			return "", false
		}
		node = next
	}
	if !node.isLeaf {
		return "", false
	}
	return node.leaf, true
}

// Replace scans text for {{…}} tokens left to right, non-overlapping. The
// text inside is trimmed and looked up; a hit emits the leaf verbatim, a
// miss or malformed token (unterminated, or a nested "{{" before the
// closing "}}") emits the original {{…}} bytes unchanged. The scanner
// never rescans emitted output, so Replace is idempotent when no token
// resolves and a resolved token's value is never itself re-expanded.
func (s *Store) Replace(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start == -1 {
			out.WriteString(text[i:])
			break
		}
		start += i
		out.WriteString(text[i:start])

		end := strings.Index(text[start+2:], "}}")
		if end == -1 {
			// Unterminated token: emit the rest verbatim.
			out.WriteString(text[start:])
			break
		}
		end += start + 2

		// Reject nested "{{" appearing before the closing "}}".
		inner := text[start+2 : end]
		if strings.Contains(inner, "{{") {
			// Malformed token: emit the literal opening braces and resume
			// scanning from just past them, so a later, well-formed token
			// inside this span still gets a chance to resolve.
			out.WriteString("{{")
			i = start + 2
			continue
		}

		key := strings.TrimSpace(inner)
		if value, ok := s.Get(key); ok {
			out.WriteString(value)
		} else {
			out.WriteString(text[start : end+2])
		}
		i = end + 2
	}
	return out.String()
}

// Flatten performs a depth-first traversal producing dotted keys for
// every leaf. Order is not part of the contract.
func (s *Store) Flatten() map[string]string {
	out := map[string]string{}
	if s == nil || s.root == nil {
		return out
	}
	flattenInto(s.root, "", out)
	return out
}

func flattenInto(node *Tree, prefix string, out map[string]string) {
	if node.isLeaf {
		out[prefix] = node.leaf
		return
	}
	for key, child := range node.children {
		next := key
		if prefix != "" {
			next = prefix + "." + key
		}
		flattenInto(child, next, out)
	}
}

// ToEnv transforms a flattened secret map into environment-variable form:
// each key is prefixed with SECRETS_, upper-cased, and has "." replaced
// with "_".
func ToEnv(flat map[string]string) map[string]string {
	out := make(map[string]string, len(flat))
	for key, value := range flat {
		envKey := "SECRETS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		out[envKey] = value
	}
	return out
}
