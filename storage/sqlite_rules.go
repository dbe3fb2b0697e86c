package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLiteRuleStorage handles rule-corpus persistence in SQLite.
type SQLiteRuleStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteRuleStorage creates a new SQLite rule storage handler.
func NewSQLiteRuleStorage(sqlite *SQLite, logger *zap.SugaredLogger) *SQLiteRuleStorage {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteRuleStorage{sqlite: sqlite, logger: logger}
}

const ruleColumns = `id, title, description, tags, severity, author, yaml,
	logsource_key, exact_hash, canonical_version, canonical_json, canonical_text,
	created_at, updated_at`

// SaveRule inserts or replaces a rule row.
func (srs *SQLiteRuleStorage) SaveRule(ctx context.Context, rule *StoredRule) error {
	tags, err := json.Marshal(rule.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	query := `
		INSERT INTO rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			severity = excluded.severity,
			author = excluded.author,
			yaml = excluded.yaml,
			logsource_key = excluded.logsource_key,
			exact_hash = excluded.exact_hash,
			canonical_version = excluded.canonical_version,
			canonical_json = excluded.canonical_json,
			canonical_text = excluded.canonical_text,
			updated_at = excluded.updated_at
	`
	_, err = srs.sqlite.WriteDB.ExecContext(ctx, query,
		rule.ID, rule.Title, rule.Description, string(tags), rule.Severity,
		rule.Author, rule.YAML, rule.LogsourceKey, rule.ExactHash,
		rule.CanonicalVersion, rule.CanonicalJSON, rule.CanonicalText,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	return nil
}

// GetRule fetches one rule by id.
func (srs *SQLiteRuleStorage) GetRule(ctx context.Context, id string) (*StoredRule, error) {
	row := srs.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	return scanRule(row)
}

// GetRuleByExactHash fetches the rule whose canonical hash matches. The
// exact-hash index makes this the cheap duplicate short-circuit.
func (srs *SQLiteRuleStorage) GetRuleByExactHash(ctx context.Context, exactHash string) (*StoredRule, error) {
	if exactHash == "" {
		return nil, ErrNotFound
	}
	row := srs.sqlite.ReadDB.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE exact_hash = ? LIMIT 1`, exactHash)
	return scanRule(row)
}

// CandidatesByLogsource fetches up to topK rules sharing a logsource key.
// The gate fails closed on invalid keys: an empty candidate list, never a
// corpus scan and never an error.
func (srs *SQLiteRuleStorage) CandidatesByLogsource(ctx context.Context, logsourceKey string, topK int) ([]*StoredRule, error) {
	if !validLogsourceKey(logsourceKey) {
		return nil, nil
	}
	if topK <= 0 {
		topK = 50
	}

	rows, err := srs.sqlite.ReadDB.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE logsource_key = ? ORDER BY id LIMIT ?`,
		logsourceKey, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*StoredRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, rule)
	}
	return candidates, rows.Err()
}

// ListRuleIDs returns rule ids in ascending order, starting after afterID.
// Reindex walks the corpus through this in resumable pages.
func (srs *SQLiteRuleStorage) ListRuleIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := srs.sqlite.ReadDB.QueryContext(ctx,
		`SELECT id FROM rules WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan rule id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRules returns the corpus size.
func (srs *SQLiteRuleStorage) CountRules(ctx context.Context) (int64, error) {
	var count int64
	if err := srs.sqlite.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return count, nil
}

// DeleteRule removes a rule row.
func (srs *SQLiteRuleStorage) DeleteRule(ctx context.Context, id string) error {
	result, err := srs.sqlite.WriteDB.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*StoredRule, error) {
	var rule StoredRule
	var tags, description, severity, author, canonicalJSON, canonicalText sql.NullString

	err := row.Scan(&rule.ID, &rule.Title, &description, &tags, &severity,
		&author, &rule.YAML, &rule.LogsourceKey, &rule.ExactHash,
		&rule.CanonicalVersion, &canonicalJSON, &canonicalText,
		&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	rule.Description = description.String
	rule.Severity = severity.String
	rule.Author = author.String
	rule.CanonicalJSON = canonicalJSON.String
	rule.CanonicalText = canonicalText.String

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &rule.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for rule %s: %w", rule.ID, err)
		}
	}
	return &rule, nil
}

// validLogsourceKey rejects empty keys and the degenerate "|" key.
func validLogsourceKey(key string) bool {
	return key != "" && key != "|"
}
