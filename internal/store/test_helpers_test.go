package store

import (
	"path/filepath"
	"testing"

	"github.com/ryohey/warp/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPass creates a successful pass record with minimal fields.
func createTestPass(id, source string, seq int64, hash string) ir.PassRecord {
	return ir.PassRecord{
		ID:       id,
		Seq:      seq,
		Kind:     ir.PassReconcile,
		Source:   source,
		TreeHash: hash,
		Status:   ir.PassOK,
	}
}

// createTestTree creates a two-node tree named after root.
func createTestTree(root string) *ir.NodeRecord {
	return &ir.NodeRecord{
		StableID:   "100",
		TypeName:   "GameObject",
		Attributes: ir.IRObject{"m_Name": ir.IRString(root)},
		Facets: []ir.FacetRecord{
			{StableID: "400", KindName: "Transform", ClassID: 4, Attributes: ir.IRObject{}},
		},
		Children: []ir.NodeRecord{{
			StableID:   "101",
			TypeName:   "GameObject",
			Attributes: ir.IRObject{"m_Name": ir.IRString("Child")},
		}},
	}
}

// treeHash fingerprints tree or fails the test.
func treeHash(t *testing.T, tree *ir.NodeRecord) string {
	t.Helper()
	h, err := ir.TreeFingerprint(tree)
	if err != nil {
		t.Fatalf("TreeFingerprint() failed: %v", err)
	}
	return h
}
