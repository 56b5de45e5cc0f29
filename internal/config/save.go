package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SaveFoldToggles writes the enabled state of fold types and code renderers
// into the config file. Only the touched keys change; comments and every
// other section are preserved by editing the yaml.Node tree.
func SaveFoldToggles(configPath string, fold, foldCode map[string]bool) error {
	return updateConfig(configPath, func(root *yaml.Node) {
		for _, name := range slices.Sorted(maps.Keys(fold)) {
			setScalar(root, []string{"fold", name}, strconv.FormatBool(fold[name]), "!!bool")
		}
		for _, name := range slices.Sorted(maps.Keys(foldCode)) {
			setScalar(root, []string{"fold_code", name}, strconv.FormatBool(foldCode[name]), "!!bool")
		}
	})
}

// SaveEditorToggles writes hide_token.enabled and active_line.enabled.
func SaveEditorToggles(configPath string, hideToken, activeLine bool) error {
	return updateConfig(configPath, func(root *yaml.Node) {
		setScalar(root, []string{"hide_token", "enabled"}, strconv.FormatBool(hideToken), "!!bool")
		setScalar(root, []string{"active_line", "enabled"}, strconv.FormatBool(activeLine), "!!bool")
	})
}

// updateConfig parses configPath (a missing file is an empty document),
// lets edit change the root mapping and writes the result atomically.
func updateConfig(configPath string, edit func(root *yaml.Node)) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: user config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s: top level is not a mapping", ErrInvalid, configPath)
	}
	edit(doc.Content[0])

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	return writeAtomic(configPath, buf.Bytes())
}

// setScalar sets the scalar at path below root, creating intermediate
// mappings. An existing scalar keeps its comments.
func setScalar(root *yaml.Node, path []string, value, tag string) {
	node := root
	for i, key := range path {
		child := lookup(node, key)
		last := i == len(path)-1
		if child == nil || (!last && child.Kind != yaml.MappingNode) {
			if last {
				child = &yaml.Node{Kind: yaml.ScalarNode}
			} else {
				child = &yaml.Node{Kind: yaml.MappingNode}
			}
			replace(node, key, child)
		}
		node = child
	}
	node.Kind = yaml.ScalarNode
	node.Tag = tag
	node.Value = value
	node.Style = 0
	node.Content = nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func replace(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(configPath string, data []byte) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".mdfold.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
