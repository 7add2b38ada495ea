package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ryohey/warp/internal/ir"
)

// RecordPass appends a pass to the log. When the pass succeeded and tree is
// non-nil, the tree is stored as the snapshot for the pass's tree hash.
// Both writes happen in one transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency - recording the same pass ID
// or the same snapshot twice is silently ignored.
func (s *Store) RecordPass(ctx context.Context, rec ir.PassRecord, tree *ir.NodeRecord) error {
	var treeJSON []byte
	if rec.Status == ir.PassOK && tree != nil && rec.TreeHash != "" {
		data, err := ir.MarshalTree(tree)
		if err != nil {
			return fmt.Errorf("record pass: %w", err)
		}
		treeJSON = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record pass: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, seq, kind, source, tree_hash, creates, destroys, applied, skipped, asset_failures, status, error, engine_version, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		string(rec.Kind),
		rec.Source,
		rec.TreeHash,
		rec.Creates,
		rec.Destroys,
		rec.Applied,
		rec.Skipped,
		rec.AssetFailures,
		string(rec.Status),
		rec.Error,
		ir.EngineVersion,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}

	if treeJSON != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshots (tree_hash, tree)
			VALUES (?, ?)
			ON CONFLICT(tree_hash) DO NOTHING
		`, rec.TreeHash, string(treeJSON))
		if err != nil {
			return fmt.Errorf("record snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record pass: commit: %w", err)
	}
	return nil
}
