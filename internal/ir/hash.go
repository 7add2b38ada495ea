package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainAttributes = "warp/attributes/v1"
	DomainTree       = "warp/tree/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AttributesFingerprint hashes one entity's attribute set. Two attribute sets
// with the same keys and values produce the same fingerprint regardless of
// the order they were declared in.
func AttributesFingerprint(attrs IRObject) (string, error) {
	if attrs == nil {
		attrs = IRObject{}
	}
	canonical, err := MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("AttributesFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAttributes, canonical), nil
}

// TreeFingerprint hashes a whole element tree, including structure and
// declaration order of facets and children.
func TreeFingerprint(root *NodeRecord) (string, error) {
	if root == nil {
		return "", fmt.Errorf("TreeFingerprint: nil tree")
	}
	canonical, err := MarshalCanonical(canonicalNode(root))
	if err != nil {
		return "", fmt.Errorf("TreeFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// MustTreeFingerprint is like TreeFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTreeFingerprint(root *NodeRecord) string {
	hash, err := TreeFingerprint(root)
	if err != nil {
		panic(err)
	}
	return hash
}

func canonicalNode(n *NodeRecord) map[string]any {
	facets := make([]any, len(n.Facets))
	for i, f := range n.Facets {
		facets[i] = map[string]any{
			"id":         f.StableID,
			"kind":       f.KindName,
			"class_id":   int64(f.ClassID),
			"attributes": nonNil(f.Attributes),
		}
	}
	children := make([]any, len(n.Children))
	for i := range n.Children {
		children[i] = canonicalNode(&n.Children[i])
	}
	return map[string]any{
		"id":         n.StableID,
		"type":       n.TypeName,
		"attributes": nonNil(n.Attributes),
		"facets":     facets,
		"children":   children,
	}
}

func nonNil(obj IRObject) IRObject {
	if obj == nil {
		return IRObject{}
	}
	return obj
}
