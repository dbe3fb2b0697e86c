package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Section vector columns of the rule_vectors table. Guards column
// interpolation in similarity queries, which cannot be parameterized.
var vectorColumns = []string{
	"title",
	"description",
	"tags",
	"logsource",
	"detection_structure",
	"detection_fields",
}

const vectorDimension = 768

func validVectorColumn(section string) bool {
	for _, col := range vectorColumns {
		if col == section {
			return true
		}
	}
	return false
}

// createVectorTable creates the section-vector table. One row per rule with
// one Array(Float32) column per section; ReplacingMergeTree keeps the latest
// row per rule across re-embeddings.
func (ch *ClickHouse) createVectorTable(ctx context.Context) error {
	cols := make([]string, 0, len(vectorColumns))
	for _, col := range vectorColumns {
		cols = append(cols, fmt.Sprintf("%s Array(Float32) DEFAULT []", col))
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.rule_vectors (
			rule_id String,
			%s,
			updated_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY rule_id
	`, ch.Config.ClickHouse.Database, strings.Join(cols, ",\n\t\t\t"))

	return ch.Conn.Exec(ctx, query)
}

// UpsertRuleVectors stores every section vector for a rule. Missing sections
// are written as empty arrays, which similarity queries score as 0.
func (ch *ClickHouse) UpsertRuleVectors(ctx context.Context, ruleID string, vectors map[string][]float32) error {
	args := make([]interface{}, 0, len(vectorColumns)+2)
	args = append(args, ruleID)
	for _, col := range vectorColumns {
		vec := vectors[col]
		if len(vec) != vectorDimension {
			vec = []float32{}
		}
		args = append(args, vec)
	}
	args = append(args, time.Now().UTC())

	query := fmt.Sprintf(`
		INSERT INTO %s.rule_vectors (rule_id, %s, updated_at)
		VALUES (?, %s, ?)
	`, ch.Config.ClickHouse.Database, strings.Join(vectorColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(vectorColumns)), ", "))

	if err := ch.Conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert vectors for rule %s: %w", ruleID, err)
	}
	return nil
}

// NearestBySection returns up to limit rules ordered by descending cosine
// similarity of one section against the query vector. Rules whose section
// vector is absent score 0 through the CASE fallback instead of dropping out
// of the result, so the caller always sees the full candidate surface.
func (ch *ClickHouse) NearestBySection(ctx context.Context, section string, query []float32, limit int) ([]VectorMatch, error) {
	if !validVectorColumn(section) {
		return nil, fmt.Errorf("unknown vector section %q", section)
	}
	if len(query) != vectorDimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(query), vectorDimension)
	}
	if limit <= 0 {
		limit = 20
	}

	sql := fmt.Sprintf(`
		SELECT rule_id,
			CASE
				WHEN length(%s) = %d THEN 1 - cosineDistance(%s, ?)
				ELSE 0.0
			END AS similarity
		FROM %s.rule_vectors FINAL
		ORDER BY similarity DESC
		LIMIT ?
	`, section, vectorDimension, section, ch.Config.ClickHouse.Database)

	rows, err := ch.Conn.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("vector similarity query failed: %w", err)
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var m VectorMatch
		if err := rows.Scan(&m.RuleID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// GetRuleVectors fetches all section vectors for the given rules.
func (ch *ClickHouse) GetRuleVectors(ctx context.Context, ruleIDs []string) (map[string]map[string][]float32, error) {
	if len(ruleIDs) == 0 {
		return map[string]map[string][]float32{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT rule_id, %s
		FROM %s.rule_vectors FINAL
		WHERE has(?, rule_id)
	`, strings.Join(vectorColumns, ", "), ch.Config.ClickHouse.Database)

	rows, err := ch.Conn.Query(ctx, sql, ruleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rule vectors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string][]float32, len(ruleIDs))
	for rows.Next() {
		var ruleID string
		vecs := make([][]float32, len(vectorColumns))
		dest := make([]interface{}, 0, len(vectorColumns)+1)
		dest = append(dest, &ruleID)
		for i := range vecs {
			dest = append(dest, &vecs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan rule vectors: %w", err)
		}

		sections := make(map[string][]float32, len(vectorColumns))
		for i, col := range vectorColumns {
			if len(vecs[i]) == vectorDimension {
				sections[col] = vecs[i]
			}
		}
		out[ruleID] = sections
	}
	return out, rows.Err()
}

// DeleteRuleVectors removes all vectors for a rule.
func (ch *ClickHouse) DeleteRuleVectors(ctx context.Context, ruleID string) error {
	sql := fmt.Sprintf("ALTER TABLE %s.rule_vectors DELETE WHERE rule_id = ?",
		ch.Config.ClickHouse.Database)
	if err := ch.Conn.Exec(ctx, sql, ruleID); err != nil {
		return fmt.Errorf("failed to delete vectors for rule %s: %w", ruleID, err)
	}
	return nil
}
