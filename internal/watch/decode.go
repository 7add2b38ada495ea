package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/ir"
)

// DecodeTree turns the bytes of a watched file into a tree. Names ending in
// ".json" are intermediate trees; anything else is compiled as a scene
// document.
func DecodeTree(name string, data []byte, opts ...compiler.TreeOption) (*ir.NodeRecord, error) {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		tree, err := ir.UnmarshalTree(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return tree, nil
	}
	tree, err := compiler.CompileDocument(string(data), opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return tree, nil
}

// LoadFile reads and decodes path.
func LoadFile(path string, opts ...compiler.TreeOption) (*ir.NodeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeTree(path, data, opts...)
}
