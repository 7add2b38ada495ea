package ir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MarshalTree encodes an element tree in the intermediate JSON form.
// Output is indented and attribute keys are sorted, so the same tree always
// produces the same bytes. Nil attribute maps and lists in root are
// replaced with empty ones in place.
func MarshalTree(root *NodeRecord) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("MarshalTree: nil tree")
	}
	data, err := json.MarshalIndent(normalizeTree(root), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("MarshalTree: %w", err)
	}
	return append(data, '\n'), nil
}

// UnmarshalTree decodes the intermediate JSON form into an element tree.
// Missing attribute objects and lists decode as empty.
func UnmarshalTree(data []byte) (*NodeRecord, error) {
	var root NodeRecord
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("UnmarshalTree: %w", err)
	}
	if root.StableID == "" {
		return nil, fmt.Errorf("UnmarshalTree: root has no id")
	}
	return normalizeTree(&root), nil
}

// WriteTreeFile writes the intermediate form to path atomically: the bytes go
// to a temporary file in the same directory which is then renamed over path.
func WriteTreeFile(path string, root *NodeRecord) error {
	data, err := MarshalTree(root)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".warp-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadTreeFile reads and decodes an intermediate form file.
func ReadTreeFile(path string) (*NodeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

// normalizeTree replaces nil attribute maps and lists with empty ones so the
// encoded form always carries every field.
func normalizeTree(n *NodeRecord) *NodeRecord {
	n.Attributes = nonNil(n.Attributes)
	if n.Facets == nil {
		n.Facets = []FacetRecord{}
	}
	for i := range n.Facets {
		n.Facets[i].Attributes = nonNil(n.Facets[i].Attributes)
	}
	if n.Children == nil {
		n.Children = []NodeRecord{}
	}
	for i := range n.Children {
		normalizeTree(&n.Children[i])
	}
	return n
}
