// Package config reads, edits and writes configuration value trees: nested
// maps and lists of YAML scalars, with object-construction nodes marked by a
// TYPE key.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/synconf/internal/model"
)

// Tag prefixes that mark a scalar as a class reference.
var classTags = []string{"!!python/name:", "tag:yaml.org,2002:python/name:"}

// Load reads a YAML configuration file. An empty file yields an empty tree.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	tree, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// Parse decodes a YAML document into a configuration tree.
func Parse(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	v, err := fromNode(&doc)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return x, nil
	}
	return nil, errors.New("top level of a configuration must be a mapping")
}

// ParseValue types a scalar written on the command line or produced by
// interpolation with the same rules used for configuration files, so "3"
// becomes an int and "[1, 2]" a list. Text YAML cannot parse is returned as is.
func ParseValue(text string) any {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return text
	}
	v, err := fromNode(&doc)
	if err != nil {
		return text
	}
	return v
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return fromMapping(n)
	case yaml.ScalarNode:
		if name, ok := className(n.Tag); ok {
			return model.ClassRef{Name: name}, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func fromMapping(n *yaml.Node) (map[string]any, error) {
	out := make(map[string]any, len(n.Content)/2)
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]
		if isMerge(key) {
			merges = append(merges, value)
			continue
		}
		v, err := fromNode(value)
		if err != nil {
			return nil, err
		}
		out[key.Value] = v
	}

	// Explicit keys win over merged ones.
	for _, m := range merges {
		v, err := fromNode(m)
		if err != nil {
			return nil, err
		}
		sources := []any{v}
		if list, ok := v.([]any); ok {
			sources = list
		}
		for _, src := range sources {
			sm, ok := src.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("line %d: merge value must be a mapping", m.Line)
			}
			for k, item := range sm {
				if _, exists := out[k]; !exists {
					out[k] = item
				}
			}
		}
	}
	return out, nil
}

func isMerge(key *yaml.Node) bool {
	return key.Kind == yaml.ScalarNode && key.Value == "<<" && (key.Tag == "!!merge" || key.Tag == "")
}

func className(tag string) (string, bool) {
	for _, prefix := range classTags {
		if name, ok := strings.CutPrefix(tag, prefix); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// Marshal renders a tree as YAML. Mapping keys are sorted with TYPE first and
// class references are written back with their python/name tag.
func Marshal(tree any) ([]byte, error) {
	node, err := toNode(tree)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func toNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case map[string]any:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := model.SortedKeys(x)
		if _, ok := x[model.TypeKey]; ok {
			keys = append([]string{model.TypeKey}, without(keys, model.TypeKey)...)
		}
		for _, k := range keys {
			child, err := toNode(x[k])
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, child)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			child, err := toNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case model.ClassRef:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: classTags[0] + x.Name}, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return n, nil
}

func without(keys []string, drop string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}
