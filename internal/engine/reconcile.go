package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ryohey/warp/internal/host"
	"github.com/ryohey/warp/internal/ir"
)

type passStats struct {
	creates       int
	destroys      int
	applied       int
	skipped       int
	assetFailures int
}

// reconcileNode makes the live subtree for decl match its structure.
//
// Per node the order is fixed: undeclared facets are destroyed, then
// undeclared children, then missing facets are created, then children are
// reconciled in declared order.
func (s *Session) reconcileNode(ctx context.Context, decl *ir.NodeRecord, parent host.Handle, st *passStats) error {
	h, ok := s.identity.Lookup(decl.StableID)
	if ok && !s.host.Alive(h) {
		// Destroyed behind the engine's back.
		s.identity.ForgetHandle(h)
		ok = false
	}
	if ok {
		if p, _ := s.host.Parent(h); p != parent {
			slog.Debug("node moved, recreating", "id", decl.StableID, "from", p, "to", parent)
			if err := s.destroyNode(h, st); err != nil {
				return err
			}
			ok = false
		}
	}
	if !ok {
		return s.createNode(ctx, decl, parent, st)
	}

	if err := s.pruneFacets(h, decl, st); err != nil {
		return err
	}
	if err := s.pruneChildren(h, decl, st); err != nil {
		return err
	}
	if err := s.createFacets(h, decl, st); err != nil {
		return err
	}
	for i := range decl.Children {
		if err := s.reconcileNode(ctx, &decl.Children[i], h, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) createNode(ctx context.Context, decl *ir.NodeRecord, parent host.Handle, st *passStats) error {
	h, err := s.host.CreateNode(parent)
	if err != nil {
		return fmt.Errorf("create node %s: %w", decl.StableID, err)
	}
	s.identity.Bind(decl.StableID, h)
	st.creates++

	if err := s.createFacets(h, decl, st); err != nil {
		return err
	}
	for i := range decl.Children {
		if err := s.reconcileNode(ctx, &decl.Children[i], h, st); err != nil {
			return err
		}
	}
	return nil
}

// createFacets creates every declared facet not already live on node.
func (s *Session) createFacets(node host.Handle, decl *ir.NodeRecord, st *passStats) error {
	for i := range decl.Facets {
		f := &decl.Facets[i]
		if fh, ok := s.identity.Lookup(f.StableID); ok && s.host.Alive(fh) {
			if owner, _ := s.host.Parent(fh); owner == node {
				continue
			}
		}

		if f.KindName == s.positionalKind {
			pos, ok := s.host.PositionalFacet(node)
			if !ok {
				return newFacetConstructionFailed(f.StableID, f.KindName)
			}
			s.identity.Bind(f.StableID, pos)
			continue
		}

		fh, err := s.host.CreateFacet(node, f.KindName)
		if err != nil {
			if errors.Is(err, host.ErrUnknownFacetKind) {
				return newUnknownFacetKind(f.StableID, f.KindName, err)
			}
			return fmt.Errorf("create facet %s (%s): %w", f.StableID, f.KindName, err)
		}
		if fh.IsZero() {
			return newFacetConstructionFailed(f.StableID, f.KindName)
		}
		s.identity.Bind(f.StableID, fh)
		st.creates++
	}
	return nil
}

// pruneFacets destroys live facets of node whose id is not declared. The
// positional facet is never destroyed; an undeclared binding to it is
// dropped instead.
func (s *Session) pruneFacets(node host.Handle, decl *ir.NodeRecord, st *passStats) error {
	declared := make(map[string]bool, len(decl.Facets))
	for i := range decl.Facets {
		declared[decl.Facets[i].StableID] = true
	}

	pos, _ := s.host.PositionalFacet(node)
	for _, fh := range s.host.Facets(node) {
		id, known := s.identity.IDOf(fh)
		if known && declared[id] {
			continue
		}
		if fh == pos {
			s.identity.ForgetHandle(fh)
			continue
		}
		if err := s.host.Destroy(fh); err != nil {
			return fmt.Errorf("destroy facet %s: %w", fh, err)
		}
		s.identity.ForgetHandle(fh)
		st.destroys++
	}
	return nil
}

// pruneChildren destroys live children of node whose id is not declared.
func (s *Session) pruneChildren(node host.Handle, decl *ir.NodeRecord, st *passStats) error {
	declared := make(map[string]bool, len(decl.Children))
	for i := range decl.Children {
		declared[decl.Children[i].StableID] = true
	}

	for _, ch := range s.host.Children(node) {
		if id, known := s.identity.IDOf(ch); known && declared[id] {
			continue
		}
		if err := s.destroyNode(ch, st); err != nil {
			return err
		}
	}
	return nil
}

// destroyNode destroys a live node and purges every id bound inside its
// subtree.
func (s *Session) destroyNode(h host.Handle, st *passStats) error {
	doomed := s.collect(h, nil)
	if err := s.host.Destroy(h); err != nil {
		return fmt.Errorf("destroy node %s: %w", h, err)
	}
	for _, d := range doomed {
		s.identity.ForgetHandle(d)
	}
	st.destroys++
	return nil
}

func (s *Session) collect(node host.Handle, acc []host.Handle) []host.Handle {
	acc = append(acc, node)
	acc = append(acc, s.host.Facets(node)...)
	for _, ch := range s.host.Children(node) {
		acc = s.collect(ch, acc)
	}
	return acc
}
