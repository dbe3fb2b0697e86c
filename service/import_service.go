package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"argus/canonical"
	"argus/embed"
	"argus/metrics"
	"argus/sigma"
	"argus/storage"
)

// ruleWriter persists imported rules.
type ruleWriter interface {
	SaveRule(ctx context.Context, rule *storage.StoredRule) error
}

// ImportStats summarizes one directory import.
type ImportStats struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// ImportService loads SIGMA rule files into the corpus with their canonical
// fields and section vectors precomputed, so assessments never pay the
// canonicalization cost for stored rules.
type ImportService struct {
	rules    ruleWriter
	vectors  vectorWriter
	embedder embed.Embedder
	parser   *sigma.Parser
	logger   *zap.SugaredLogger
}

// NewImportService creates an import service. The vector writer and embedder
// are optional; without them rules import with canonical fields only.
func NewImportService(
	rules ruleWriter,
	vectors vectorWriter,
	embedder embed.Embedder,
	logger *zap.SugaredLogger,
) (*ImportService, error) {
	if rules == nil {
		return nil, errors.New("rule storage is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ImportService{
		rules:    rules,
		vectors:  vectors,
		embedder: embedder,
		parser:   sigma.NewParser(logger),
		logger:   logger,
	}, nil
}

// ImportDirectory imports every parseable rule file under a directory.
// Per-rule failures are counted and skipped.
func (s *ImportService) ImportDirectory(ctx context.Context, directory string) (*ImportStats, error) {
	rules, err := s.parser.ParseDirectory(directory)
	if err != nil {
		return nil, err
	}

	stats := &ImportStats{}
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.ImportRule(ctx, rule); err != nil {
			stats.Failed++
			s.logger.Warnw("Failed to import rule",
				"title", rule.Title,
				"path", rule.FilePath,
				"error", err)
			continue
		}
		stats.Imported++
	}

	s.logger.Infow("Import complete",
		"directory", directory,
		"imported", stats.Imported,
		"failed", stats.Failed)
	return stats, nil
}

// ImportRule persists one parsed rule. A rule without an id gets a generated
// one; re-importing a rule with the same id replaces the stored row.
func (s *ImportService) ImportRule(ctx context.Context, rule *sigma.Rule) error {
	canon, err := canonical.Canonicalize(rule.Logsource, rule.Detection)
	if err != nil {
		metrics.CanonicalizeErrors.Inc()
		return fmt.Errorf("failed to canonicalize rule: %w", err)
	}
	fingerprint, err := canonical.NewFingerprint(canon)
	if err != nil {
		return err
	}
	canonicalJSON, err := canon.MarshalJSON()
	if err != nil {
		return err
	}
	if err := canonical.ValidateDocument(canonicalJSON); err != nil {
		return fmt.Errorf("canonical document rejected by schema: %w", err)
	}

	id := rule.ID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	stored := &storage.StoredRule{
		ID:               id,
		Title:            rule.Title,
		Description:      rule.Description,
		Tags:             rule.Tags,
		Severity:         rule.Level,
		Author:           rule.Author,
		YAML:             rule.RawYAML,
		LogsourceKey:     fingerprint.LogsourceKey,
		ExactHash:        fingerprint.ExactHash,
		CanonicalVersion: canonical.Version,
		CanonicalJSON:    string(canonicalJSON),
		CanonicalText:    fingerprint.CanonicalText,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.rules.SaveRule(ctx, stored); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	s.storeVectors(ctx, id, rule, canon)
	return nil
}

// storeVectors embeds and stores the rule's sections. Failures cost the
// cosine signal for this rule, never the import.
func (s *ImportService) storeVectors(ctx context.Context, ruleID string, rule *sigma.Rule, canon *canonical.CanonicalRule) {
	if s.vectors == nil || s.embedder == nil {
		return
	}

	texts := embed.SectionTexts(embed.BuildSections(rule.Title, rule.Description, rule.Tags, canon))
	rawVectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		s.logger.Warnw("Importing rule without vectors", "rule_id", ruleID, "error", err)
		return
	}
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	if err := s.vectors.UpsertRuleVectors(ctx, ruleID, embed.ZipSections(rawVectors)); err != nil {
		s.logger.Warnw("Failed to store rule vectors", "rule_id", ruleID, "error", err)
	}
}
