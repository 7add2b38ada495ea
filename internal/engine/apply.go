package engine

import (
	"context"
	"log/slog"

	"github.com/ryohey/warp/internal/coerce"
	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/ir"
)

// applyTree assigns declared attributes to every live entity of tree. Unless
// force is set, entities whose attribute fingerprint matches the last
// successful apply are left alone.
func (s *Session) applyTree(ctx context.Context, tree *ir.NodeRecord, force bool, st *passStats) {
	tree.Walk(func(n *ir.NodeRecord, _ int) bool {
		s.applyEntity(ctx, n.StableID, n.TypeName, n.Attributes, force, st)
		for i := range n.Facets {
			f := &n.Facets[i]
			s.applyEntity(ctx, f.StableID, f.KindName, f.Attributes, force, st)
		}
		return true
	})
}

func (s *Session) applyEntity(ctx context.Context, id, kind string, attrs ir.IRObject, force bool, st *passStats) {
	h, ok := s.identity.Lookup(id)
	if !ok || !s.host.Alive(h) {
		slog.Debug("no live entity for declared id", "id", id, "kind", kind)
		return
	}

	fp, err := ir.AttributesFingerprint(attrs)
	if err != nil {
		// Unfingerprintable attributes are still applied, just never gated.
		slog.Warn("fingerprint attributes", "id", id, "error", err)
		fp = ""
	}
	if !force && fp != "" {
		if last, ok := s.identity.Fingerprint(h); ok && last == fp {
			return
		}
	}

	failed := false
	for _, key := range attrs.SortedKeys() {
		if !s.applyField(ctx, h, id, kind, key, attrs[key], st) {
			failed = true
		}
	}
	st.applied++

	if failed {
		// Retry the whole entity next pass once the asset shows up.
		s.identity.SetFingerprint(h, "")
	} else {
		s.identity.SetFingerprint(h, fp)
	}
}

// applyField coerces and assigns one attribute. It reports false when an
// asset lookup failed; skipped fields report true since retrying them cannot
// succeed until the document changes.
func (s *Session) applyField(ctx context.Context, h host.Handle, id, kind, key string, v ir.IRValue, st *passStats) bool {
	field := coerce.FieldName(key)
	ft, ok := s.host.FieldType(h, field)
	if !ok {
		slog.Debug("unknown field", "id", id, "kind", kind, "field", field)
		st.skipped++
		return true
	}

	value, err := coerce.Coerce(ctx, v, ft, s.assets)
	switch {
	case err == nil:
	case coerce.IsSkip(err):
		slog.Warn("field coercion skipped", "id", id, "kind", kind, "field", field, "type", ft, "reason", err)
		st.skipped++
		return true
	default:
		slog.Error("asset resolution failed", "id", id, "kind", kind, "field", field, "error", err)
		st.assetFailures++
		return false
	}

	if !s.host.SetField(h, field, value) {
		slog.Warn("field assignment rejected", "id", id, "kind", kind, "field", field, "type", ft)
		st.skipped++
	}
	return true
}
