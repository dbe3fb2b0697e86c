package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLiteCheckpointStorage persists reindex progress. Batch updates and the
// checkpoint advance commit in one transaction, so a crash mid-batch rolls
// the job back to its last committed position instead of corrupting
// half-written canonical fields.
type SQLiteCheckpointStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteCheckpointStorage creates a new checkpoint storage handler.
func NewSQLiteCheckpointStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteCheckpointStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteCheckpointStorage{sqlite: sqlite, logger: logger}
}

// GetCheckpoint fetches a job's checkpoint.
func (scs *SQLiteCheckpointStorage) GetCheckpoint(ctx context.Context, job string) (*Checkpoint, error) {
	var cp Checkpoint
	err := scs.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT job, last_rule_id, processed, failed, updated_at
		 FROM reindex_checkpoints WHERE job = ?`, job).
		Scan(&cp.Job, &cp.LastRuleID, &cp.Processed, &cp.Failed, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for job %s: %w", job, err)
	}
	return &cp, nil
}

// CommitBatch applies canonical updates and advances the checkpoint in one
// transaction.
func (scs *SQLiteCheckpointStorage) CommitBatch(ctx context.Context, updates []CanonicalUpdate, checkpoint *Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint is required")
	}
	checkpoint.UpdatedAt = time.Now().UTC()

	err := scs.sqlite.WithTransaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE rules SET
				logsource_key = ?,
				exact_hash = ?,
				canonical_version = ?,
				canonical_json = ?,
				canonical_text = ?,
				updated_at = ?
			WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare canonical update: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, u.LogsourceKey, u.ExactHash,
				u.CanonicalVersion, u.CanonicalJSON, u.CanonicalText, now, u.RuleID); err != nil {
				return fmt.Errorf("failed to update canonical fields for rule %s: %w", u.RuleID, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reindex_checkpoints (job, last_rule_id, processed, failed, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(job) DO UPDATE SET
				last_rule_id = excluded.last_rule_id,
				processed = excluded.processed,
				failed = excluded.failed,
				updated_at = excluded.updated_at`,
			checkpoint.Job, checkpoint.LastRuleID, checkpoint.Processed,
			checkpoint.Failed, checkpoint.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to advance checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	scs.logger.Debugw("Committed reindex batch",
		"job", checkpoint.Job,
		"batch_size", len(updates),
		"last_rule_id", checkpoint.LastRuleID,
		"processed", checkpoint.Processed)
	return nil
}

// ResetCheckpoint clears a job's checkpoint for a forced full rerun.
func (scs *SQLiteCheckpointStorage) ResetCheckpoint(ctx context.Context, job string) error {
	_, err := scs.sqlite.WriteDB.ExecContext(ctx,
		"DELETE FROM reindex_checkpoints WHERE job = ?", job)
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint for job %s: %w", job, err)
	}
	return nil
}
