package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Artifact is one cached lowering result.
type Artifact struct {
	// ScriptHash is the content hash of the script document, computed
	// by ScriptHash.
	ScriptHash string

	// ModuleID identifies the lowering session that produced the IR.
	ModuleID string

	// IRText is the deterministic textual dump of the lowered module.
	IRText string

	// CreatedSeq is a logical insertion counter, not wall time.
	CreatedSeq int64
}

// PutArtifact inserts a lowering result. A record with the same
// script hash is replaced; the cache keeps only the latest IR per
// script.
func (s *Store) PutArtifact(ctx context.Context, a Artifact) error {
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_seq) FROM artifacts`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (script_hash, module_id, ir_text, created_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(script_hash) DO UPDATE SET
			module_id = excluded.module_id,
			ir_text = excluded.ir_text,
			created_seq = excluded.created_seq
	`, a.ScriptHash, a.ModuleID, a.IRText, maxSeq.Int64+1)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// GetArtifact looks a script hash up. The second return value reports
// whether a record exists.
func (s *Store) GetArtifact(ctx context.Context, scriptHash string) (Artifact, bool, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx, `
		SELECT script_hash, module_id, ir_text, created_seq
		FROM artifacts
		WHERE script_hash = ?
	`, scriptHash).Scan(&a.ScriptHash, &a.ModuleID, &a.IRText, &a.CreatedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, false, nil
	}
	if err != nil {
		return Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	return a, true, nil
}
