package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"argus/canonical"
	"argus/embed"
	"argus/metrics"
	"argus/sigma"
	"argus/storage"
)

// reindexJob is the checkpoint identity of the canonical rebuild job.
const reindexJob = "canonical_reindex"

// embeddingCacheSize bounds the in-process dedupe of section vectors during a
// reindex run. Corpora imported from rule packs contain many rules sharing
// section texts, so identical texts embed once per run.
const embeddingCacheSize = 512

// corpusReader walks the stored corpus during reindex.
type corpusReader interface {
	GetRule(ctx context.Context, id string) (*storage.StoredRule, error)
	ListRuleIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	CountRules(ctx context.Context) (int64, error)
}

// checkpointer commits canonical updates transactionally with progress.
type checkpointer interface {
	GetCheckpoint(ctx context.Context, job string) (*storage.Checkpoint, error)
	CommitBatch(ctx context.Context, updates []storage.CanonicalUpdate, checkpoint *storage.Checkpoint) error
	ResetCheckpoint(ctx context.Context, job string) error
}

// vectorWriter upserts rebuilt section vectors.
type vectorWriter interface {
	UpsertRuleVectors(ctx context.Context, ruleID string, vectors map[string][]float32) error
}

// ReindexConfig tunes batch sizing for the reindex job.
type ReindexConfig struct {
	BatchSize int
}

func (c *ReindexConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
}

// ReindexStats summarizes one reindex run.
type ReindexStats struct {
	Processed int64 `json:"processed"`
	Updated   int64 `json:"updated"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// ReindexService rebuilds canonical fields and section vectors for the whole
// corpus. Progress checkpoints after every batch commit, so a rerun resumes
// after the last committed rule instead of starting over; a crash mid-batch
// leaves previously committed canonical fields intact.
type ReindexService struct {
	rules       corpusReader
	checkpoints checkpointer
	vectors     vectorWriter
	embedder    embed.Embedder
	parser      *sigma.Parser
	config      ReindexConfig
	logger      *zap.SugaredLogger

	vectorCache *lru.Cache[string, map[string][]float32]
}

// NewReindexService creates a reindex service. The vector writer and embedder
// are optional: without them only the canonical fields are rebuilt.
func NewReindexService(
	rules corpusReader,
	checkpoints checkpointer,
	vectors vectorWriter,
	embedder embed.Embedder,
	config ReindexConfig,
	logger *zap.SugaredLogger,
) (*ReindexService, error) {
	if rules == nil {
		return nil, errors.New("rule storage is required")
	}
	if checkpoints == nil {
		return nil, errors.New("checkpoint storage is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	config.applyDefaults()

	vectorCache, err := lru.New[string, map[string][]float32](embeddingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &ReindexService{
		rules:       rules,
		checkpoints: checkpoints,
		vectors:     vectors,
		embedder:    embedder,
		parser:      sigma.NewParser(logger),
		config:      config,
		logger:      logger,
		vectorCache: vectorCache,
	}, nil
}

// Run reindexes the corpus, resuming from the last checkpoint. With force set
// the checkpoint is cleared first and every rule is reprocessed.
func (s *ReindexService) Run(ctx context.Context, force bool) (*ReindexStats, error) {
	start := time.Now()

	if force {
		if err := s.checkpoints.ResetCheckpoint(ctx, reindexJob); err != nil {
			return nil, fmt.Errorf("failed to reset checkpoint: %w", err)
		}
	}

	stats := &ReindexStats{}
	afterID := ""
	checkpoint, err := s.checkpoints.GetCheckpoint(ctx, reindexJob)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint != nil {
		afterID = checkpoint.LastRuleID
		stats.Processed = checkpoint.Processed
		stats.Failed = checkpoint.Failed
		s.logger.Infow("Resuming reindex from checkpoint",
			"last_rule_id", afterID,
			"processed", checkpoint.Processed,
			"failed", checkpoint.Failed)
	}

	total, err := s.rules.CountRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count corpus: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ids, err := s.rules.ListRuleIDs(ctx, afterID, s.config.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to list rules after %q: %w", afterID, err)
		}
		if len(ids) == 0 {
			break
		}

		updates := s.reindexBatch(ctx, ids, stats)
		afterID = ids[len(ids)-1]

		batchCheckpoint := &storage.Checkpoint{
			Job:        reindexJob,
			LastRuleID: afterID,
			Processed:  stats.Processed,
			Failed:     stats.Failed,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := s.checkpoints.CommitBatch(ctx, updates, batchCheckpoint); err != nil {
			return stats, fmt.Errorf("failed to commit batch ending at %q: %w", afterID, err)
		}

		s.logger.Infow("Committed reindex batch",
			"last_rule_id", afterID,
			"batch_updates", len(updates),
			"processed", stats.Processed,
			"total", total)
	}

	s.logger.Infow("Reindex complete",
		"processed", stats.Processed,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", time.Since(start))
	return stats, nil
}

// reindexBatch rebuilds one page of rules. Per-rule failures are counted and
// skipped so one malformed rule never aborts the run.
func (s *ReindexService) reindexBatch(ctx context.Context, ids []string, stats *ReindexStats) []storage.CanonicalUpdate {
	var updates []storage.CanonicalUpdate
	for _, id := range ids {
		stats.Processed++
		metrics.ReindexProcessed.Inc()

		update, changed, err := s.reindexRule(ctx, id)
		if err != nil {
			stats.Failed++
			metrics.ReindexFailures.Inc()
			s.logger.Warnw("Failed to reindex rule", "rule_id", id, "error", err)
			continue
		}
		if !changed {
			stats.Skipped++
			continue
		}
		stats.Updated++
		updates = append(updates, *update)
	}
	return updates
}

// reindexRule recomputes one rule's canonical fields from its stored YAML.
// Returns changed=false when the stored fields already match the current
// canonical version and hash.
func (s *ReindexService) reindexRule(ctx context.Context, id string) (*storage.CanonicalUpdate, bool, error) {
	stored, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, false, err
	}

	rule, err := s.parser.ParseYAML([]byte(stored.YAML))
	if err != nil {
		return nil, false, fmt.Errorf("stored YAML unparseable: %w", err)
	}

	canon, err := canonical.Canonicalize(rule.Logsource, rule.Detection)
	if err != nil {
		metrics.CanonicalizeErrors.Inc()
		return nil, false, err
	}
	fingerprint, err := canonical.NewFingerprint(canon)
	if err != nil {
		return nil, false, err
	}

	if stored.CanonicalVersion == canonical.Version &&
		stored.ExactHash == fingerprint.ExactHash &&
		stored.CanonicalJSON != "" {
		return nil, false, nil
	}

	canonicalJSON, err := canon.MarshalJSON()
	if err != nil {
		return nil, false, err
	}
	if err := canonical.ValidateDocument(canonicalJSON); err != nil {
		return nil, false, fmt.Errorf("canonical document rejected by schema: %w", err)
	}

	s.upsertVectors(ctx, stored.ID, rule, canon)

	return &storage.CanonicalUpdate{
		RuleID:           stored.ID,
		LogsourceKey:     fingerprint.LogsourceKey,
		ExactHash:        fingerprint.ExactHash,
		CanonicalVersion: canonical.Version,
		CanonicalJSON:    string(canonicalJSON),
		CanonicalText:    fingerprint.CanonicalText,
	}, true, nil
}

// upsertVectors re-embeds a rule's sections and stores them. Vector failures
// are logged but never fail the canonical rebuild; the next assessment simply
// sees a zero cosine for this rule. The dedupe cache is keyed by the section
// texts, not the exact hash: the exact hash ignores title, description and
// tags, which are embedded.
func (s *ReindexService) upsertVectors(ctx context.Context, ruleID string, rule *sigma.Rule, canon *canonical.CanonicalRule) {
	if s.vectors == nil || s.embedder == nil {
		return
	}

	texts := embed.SectionTexts(embed.BuildSections(rule.Title, rule.Description, rule.Tags, canon))
	cacheKey := embed.CacheKey(texts)
	vectors, ok := s.vectorCache.Get(cacheKey)
	if !ok {
		rawVectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			metrics.EmbeddingRequests.WithLabelValues("error").Inc()
			s.logger.Warnw("Skipping vector rebuild for rule", "rule_id", ruleID, "error", err)
			return
		}
		metrics.EmbeddingRequests.WithLabelValues("success").Inc()
		vectors = embed.ZipSections(rawVectors)
		s.vectorCache.Add(cacheKey, vectors)
	}

	if err := s.vectors.UpsertRuleVectors(ctx, ruleID, vectors); err != nil {
		s.logger.Warnw("Failed to store rebuilt vectors", "rule_id", ruleID, "error", err)
	}
}
