package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ryohey/warp/internal/ir"
)

// ErrNoSnapshot is returned when no snapshot matches the request.
var ErrNoSnapshot = errors.New("no snapshot")

// PassFilter narrows ReadPasses.
type PassFilter struct {
	Source   string // exact match; empty matches all
	AfterSeq int64  // only passes with seq > AfterSeq
	Limit    int    // 0 means unlimited
	Failed   bool   // only failed passes
}

// ReadPasses returns recorded passes ordered by seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no passes match.
func (s *Store) ReadPasses(ctx context.Context, f PassFilter) ([]ir.PassRecord, error) {
	query := `
		SELECT id, seq, kind, source, tree_hash, creates, destroys, applied, skipped, asset_failures, status, error
		FROM passes
		WHERE seq > ?`
	args := []any{f.AfterSeq}
	if f.Source != "" {
		query += ` AND source = ?`
		args = append(args, f.Source)
	}
	if f.Failed {
		query += ` AND status = 'failed'`
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []ir.PassRecord{}
	for rows.Next() {
		rec, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

// ReadPass retrieves a single pass by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPass(ctx context.Context, id string) (ir.PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, kind, source, tree_hash, creates, destroys, applied, skipped, asset_failures, status, error
		FROM passes
		WHERE id = ?
	`, id)
	return scanPass(row)
}

// LastSeq returns the highest recorded seq, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM passes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadSnapshot returns the tree stored under hash.
func (s *Store) ReadSnapshot(ctx context.Context, hash string) (*ir.NodeRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT tree FROM snapshots WHERE tree_hash = ?`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	tree, err := ir.UnmarshalTree([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", hash, err)
	}
	return tree, nil
}

// LatestSnapshot returns the tree of the most recent successful pass for
// source, along with that pass.
func (s *Store) LatestSnapshot(ctx context.Context, source string) (ir.PassRecord, *ir.NodeRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.seq, p.kind, p.source, p.tree_hash, p.creates, p.destroys, p.applied, p.skipped, p.asset_failures, p.status, p.error
		FROM passes p
		JOIN snapshots sn ON sn.tree_hash = p.tree_hash
		WHERE p.source = ? AND p.status = 'ok'
		ORDER BY p.seq DESC, p.id COLLATE BINARY DESC
		LIMIT 1
	`, source)
	rec, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.PassRecord{}, nil, fmt.Errorf("%w: source %q", ErrNoSnapshot, source)
	}
	if err != nil {
		return ir.PassRecord{}, nil, err
	}
	tree, err := s.ReadSnapshot(ctx, rec.TreeHash)
	if err != nil {
		return ir.PassRecord{}, nil, err
	}
	return rec, tree, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (ir.PassRecord, error) {
	var (
		rec          ir.PassRecord
		kind, status string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&kind,
		&rec.Source,
		&rec.TreeHash,
		&rec.Creates,
		&rec.Destroys,
		&rec.Applied,
		&rec.Skipped,
		&rec.AssetFailures,
		&status,
		&rec.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.PassRecord{}, err
	}
	if err != nil {
		return ir.PassRecord{}, fmt.Errorf("scan pass: %w", err)
	}
	rec.Kind = ir.PassKind(kind)
	rec.Status = ir.PassStatus(status)
	return rec, nil
}
