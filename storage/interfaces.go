package storage

import (
	"context"
	"time"
)

// StoredRule is a corpus rule row: the raw SIGMA source plus the derived
// canonical fields used for dedup and candidate retrieval.
type StoredRule struct {
	ID               string
	Title            string
	Description      string
	Tags             []string
	Severity         string
	Author           string
	YAML             string
	LogsourceKey     string
	ExactHash        string
	CanonicalVersion int
	CanonicalJSON    string
	CanonicalText    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanonicalUpdate is one rule's recomputed canonical fields, applied in
// reindex batches.
type CanonicalUpdate struct {
	RuleID           string
	LogsourceKey     string
	ExactHash        string
	CanonicalVersion int
	CanonicalJSON    string
	CanonicalText    string
}

// Checkpoint records reindex progress so a rerun resumes after the last
// committed rule instead of starting over.
type Checkpoint struct {
	Job        string
	LastRuleID string
	Processed  int64
	Failed     int64
	UpdatedAt  time.Time
}

// RuleStore is the corpus metadata contract backed by SQLite.
type RuleStore interface {
	// SaveRule inserts or replaces a rule row.
	SaveRule(ctx context.Context, rule *StoredRule) error

	// GetRule fetches one rule by id. Returns ErrNotFound when absent.
	GetRule(ctx context.Context, id string) (*StoredRule, error)

	// GetRuleByExactHash fetches the rule whose canonical hash matches.
	// Returns ErrNotFound when no rule has that hash.
	GetRuleByExactHash(ctx context.Context, exactHash string) (*StoredRule, error)

	// CandidatesByLogsource fetches up to topK rules sharing a logsource key.
	// An invalid key fails closed: an empty candidate list and no error.
	CandidatesByLogsource(ctx context.Context, logsourceKey string, topK int) ([]*StoredRule, error)

	// ListRuleIDs returns all rule ids in ascending order, optionally only
	// those after a resume point.
	ListRuleIDs(ctx context.Context, afterID string, limit int) ([]string, error)

	// CountRules returns the corpus size.
	CountRules(ctx context.Context) (int64, error)

	// DeleteRule removes a rule row.
	DeleteRule(ctx context.Context, id string) error
}

// CheckpointStore persists reindex progress transactionally with the batch
// it describes.
type CheckpointStore interface {
	// GetCheckpoint fetches a job's checkpoint. Returns ErrNotFound for a
	// job that has never committed.
	GetCheckpoint(ctx context.Context, job string) (*Checkpoint, error)

	// CommitBatch applies a batch of canonical updates and the advanced
	// checkpoint in one transaction. A crash mid-batch leaves both the rule
	// rows and the checkpoint at their previous committed state.
	CommitBatch(ctx context.Context, updates []CanonicalUpdate, checkpoint *Checkpoint) error

	// ResetCheckpoint clears a job's checkpoint for a forced full rerun.
	ResetCheckpoint(ctx context.Context, job string) error
}

// VectorMatch is one nearest-neighbor hit from the vector store.
type VectorMatch struct {
	RuleID     string
	Similarity float64
}

// VectorStore is the section-embedding contract backed by ClickHouse.
type VectorStore interface {
	// UpsertRuleVectors stores every section vector for a rule.
	UpsertRuleVectors(ctx context.Context, ruleID string, vectors map[string][]float32) error

	// NearestBySection returns up to limit rules ordered by descending
	// cosine similarity of the given section against the query vector.
	// Rules without a stored vector for the section score 0 rather than
	// being excluded.
	NearestBySection(ctx context.Context, section string, query []float32, limit int) ([]VectorMatch, error)

	// GetRuleVectors fetches all section vectors for the given rules.
	GetRuleVectors(ctx context.Context, ruleIDs []string) (map[string]map[string][]float32, error)

	// DeleteRuleVectors removes all vectors for a rule.
	DeleteRuleVectors(ctx context.Context, ruleID string) error
}
