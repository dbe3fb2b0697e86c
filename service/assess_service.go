package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"argus/assess"
	"argus/canonical"
	"argus/embed"
	"argus/metrics"
	"argus/sigma"
	"argus/storage"
)

// candidateReader is the corpus view the assessment pipeline consumes.
// Defined here (consumer package) following Interface Segregation Principle.
type candidateReader interface {
	GetRuleByExactHash(ctx context.Context, exactHash string) (*storage.StoredRule, error)
	CandidatesByLogsource(ctx context.Context, logsourceKey string, topK int) ([]*storage.StoredRule, error)
}

// vectorReader fetches stored section vectors for candidate scoring.
type vectorReader interface {
	GetRuleVectors(ctx context.Context, ruleIDs []string) (map[string]map[string][]float32, error)
}

// AssessmentConfig tunes the novelty pipeline. Zero values fall back to the
// published defaults so tests can construct a service from a bare struct.
type AssessmentConfig struct {
	TopK           int
	MaxMatches     int
	NoveltyWeights assess.NoveltyWeights
	SectionWeights assess.SectionWeights
}

func (c *AssessmentConfig) applyDefaults() {
	if c.TopK <= 0 {
		c.TopK = 50
	}
	if c.MaxMatches <= 0 {
		c.MaxMatches = 10
	}
	zero := assess.NoveltyWeights{}
	if c.NoveltyWeights == zero {
		c.NoveltyWeights = assess.DefaultNoveltyWeights()
	}
	if (c.SectionWeights == assess.SectionWeights{}) {
		c.SectionWeights = assess.DefaultSectionWeights()
	}
}

// AssessmentService runs the novelty pipeline: canonicalize, exact-hash
// lookup, gated candidate retrieval, per-candidate scoring, clustering and
// classification.
type AssessmentService struct {
	rules    candidateReader
	vectors  vectorReader
	embedder embed.Embedder
	cache    *embed.VectorCache
	config   AssessmentConfig
	logger   *zap.SugaredLogger
}

// NewAssessmentService creates an assessment service. The vector reader,
// embedder and cache are optional: without them scoring degrades to the
// structural signals and cosine contributes 0.
func NewAssessmentService(
	rules candidateReader,
	vectors vectorReader,
	embedder embed.Embedder,
	cache *embed.VectorCache,
	config AssessmentConfig,
	logger *zap.SugaredLogger,
) (*AssessmentService, error) {
	if rules == nil {
		return nil, errors.New("rule storage is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	config.applyDefaults()
	if err := config.NoveltyWeights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid novelty weights: %w", err)
	}
	if err := config.SectionWeights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid section weights: %w", err)
	}

	return &AssessmentService{
		rules:    rules,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
		config:   config,
		logger:   logger,
	}, nil
}

// AssessRule classifies a proposed rule against the stored corpus.
func (s *AssessmentService) AssessRule(ctx context.Context, rule *sigma.Rule) (*assess.NoveltyAssessment, error) {
	start := time.Now()
	defer func() {
		metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	}()

	canon, err := canonical.Canonicalize(rule.Logsource, rule.Detection)
	if err != nil {
		metrics.CanonicalizeErrors.Inc()
		return nil, fmt.Errorf("failed to canonicalize rule: %w", err)
	}
	fingerprint, err := canonical.NewFingerprint(canon)
	if err != nil {
		return nil, err
	}

	result := &assess.NoveltyAssessment{
		LogsourceKey: fingerprint.LogsourceKey,
		ExactHash:    fingerprint.ExactHash,
		TopMatches:   []assess.MatchResult{},
	}

	existing, err := s.rules.GetRuleByExactHash(ctx, fingerprint.ExactHash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("exact hash lookup failed: %w", err)
	}
	if existing != nil {
		metrics.ExactHashHits.Inc()
		result.Label, result.Score = assess.ClassifyNovelty(true, nil)
		result.TopMatches = []assess.MatchResult{{
			RuleID:      existing.ID,
			Title:       existing.Title,
			AtomJaccard: 1,
			LogicShape:  1,
			Cosine:      1,
			Weighted:    1,
			Explain:     assess.Explain(canon, canon),
		}}
		metrics.AssessmentsTotal.WithLabelValues(result.Label).Inc()
		return result, nil
	}

	candidates, err := s.retrieveCandidates(ctx, fingerprint.LogsourceKey)
	if err != nil {
		return nil, err
	}
	metrics.CandidatesRetrieved.Observe(float64(len(candidates)))

	scored, candidateCanon := s.scoreCandidates(ctx, rule, canon, candidates)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Weighted > scored[j].Weighted
	})
	result.Label, result.Score = assess.ClassifyNovelty(false, scored)

	ordered := assess.ClusterCandidates(scored)
	if len(ordered) > s.config.MaxMatches {
		ordered = ordered[:s.config.MaxMatches]
	}
	for i := range ordered {
		if candCanon := candidateCanon[ordered[i].RuleID]; candCanon != nil {
			ordered[i].Explain = assess.Explain(canon, candCanon)
		}
	}
	result.TopMatches = ordered

	metrics.AssessmentsTotal.WithLabelValues(result.Label).Inc()
	s.logger.Infow("Assessed rule",
		"title", rule.Title,
		"label", result.Label,
		"score", result.Score,
		"candidates", len(candidates),
		"duration", time.Since(start))
	return result, nil
}

// retrieveCandidates fetches candidates sharing the rule's logsource key. A
// key that cannot gate retrieval fails closed to zero candidates rather than
// scanning the whole corpus.
func (s *AssessmentService) retrieveCandidates(ctx context.Context, logsourceKey string) ([]*storage.StoredRule, error) {
	if !canonical.LogsourceKeyValid(logsourceKey) {
		s.logger.Debugw("Logsource key cannot gate retrieval, assessing with no candidates",
			"logsource_key", logsourceKey)
		return nil, nil
	}
	candidates, err := s.rules.CandidatesByLogsource(ctx, logsourceKey, s.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("candidate retrieval failed: %w", err)
	}
	return candidates, nil
}

// scoreCandidates computes the three structural and semantic signals per
// candidate. A candidate with unusable canonical fields is skipped, never
// fatal. Returns the scored list plus the parsed canonical forms for
// explanation of the surviving matches.
func (s *AssessmentService) scoreCandidates(
	ctx context.Context,
	rule *sigma.Rule,
	canon *canonical.CanonicalRule,
	candidates []*storage.StoredRule,
) ([]assess.MatchResult, map[string]*canonical.CanonicalRule) {
	candidateCanon := make(map[string]*canonical.CanonicalRule, len(candidates))
	if len(candidates) == 0 {
		return nil, candidateCanon
	}

	proposedVectors, degraded := s.embedSections(ctx, rule.Title, rule.Description, rule.Tags, canon)
	candidateVectors := s.fetchCandidateVectors(ctx, candidates)

	proposedPositive := canon.PositiveAtoms()
	scored := make([]assess.MatchResult, 0, len(candidates))
	for _, candidate := range candidates {
		candCanon, err := parseStoredCanonical(candidate)
		if err != nil {
			metrics.CandidateErrors.Inc()
			s.logger.Warnw("Skipping candidate with unusable canonical form",
				"rule_id", candidate.ID,
				"error", err)
			continue
		}
		candidateCanon[candidate.ID] = candCanon

		breakdown := assess.SectionBreakdown(proposedVectors, candidateVectors[candidate.ID])
		cosine := assess.WeightedSections(breakdown, s.config.SectionWeights)
		jaccard := assess.AtomJaccard(proposedPositive, candCanon.PositiveAtoms())
		shape := assess.LogicShape(canon.Detection.Logic, candCanon.Detection.Logic)

		scored = append(scored, assess.MatchResult{
			RuleID:      candidate.ID,
			Title:       candidate.Title,
			AtomJaccard: assess.Round4(jaccard),
			LogicShape:  assess.Round4(shape),
			Cosine:      assess.Round4(cosine),
			Weighted:    assess.Round4(assess.NoveltyWeighted(jaccard, shape, cosine, s.config.NoveltyWeights)),
			Breakdown:   breakdown,
			Degraded:    degraded,
		})
	}
	return scored, candidateCanon
}

// embedSections produces the proposed rule's section vectors, consulting the
// cache first. Any embedding failure degrades to zero vectors so the
// structural signals still carry the assessment; the second return reports
// that degradation.
func (s *AssessmentService) embedSections(
	ctx context.Context,
	title, description string,
	tags []string,
	canon *canonical.CanonicalRule,
) (map[string][]float32, bool) {
	if s.embedder == nil {
		return embed.ZipSections(nil), true
	}

	texts := embed.SectionTexts(embed.BuildSections(title, description, tags, canon))
	cacheKey := embed.CacheKey(texts)

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.Warnw("Vector cache lookup failed", "error", err)
		}
		if hit {
			metrics.EmbeddingCacheHits.WithLabelValues("hit").Inc()
			return cached, false
		}
		metrics.EmbeddingCacheHits.WithLabelValues("miss").Inc()
	}

	rawVectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		s.logger.Warnw("Embedding degraded to zero vectors", "error", err)
		return embed.ZipSections(nil), true
	}
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	vectors := embed.ZipSections(rawVectors)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, vectors); err != nil {
			s.logger.Warnw("Vector cache store failed", "error", err)
		}
	}
	return vectors, false
}

// fetchCandidateVectors pulls stored section vectors for all candidates in
// one batch. A vector store failure costs only the cosine signal.
func (s *AssessmentService) fetchCandidateVectors(ctx context.Context, candidates []*storage.StoredRule) map[string]map[string][]float32 {
	if s.vectors == nil {
		return nil
	}
	ids := make([]string, len(candidates))
	for i, candidate := range candidates {
		ids[i] = candidate.ID
	}
	vectors, err := s.vectors.GetRuleVectors(ctx, ids)
	if err != nil {
		s.logger.Warnw("Candidate vector fetch failed, cosine degraded to 0", "error", err)
		return nil
	}
	return vectors
}

// parseStoredCanonical restores a candidate's persisted canonical form.
func parseStoredCanonical(rule *storage.StoredRule) (*canonical.CanonicalRule, error) {
	if rule.CanonicalJSON == "" {
		return nil, errors.New("rule has no canonical form, reindex required")
	}
	var canon canonical.CanonicalRule
	if err := canon.UnmarshalJSON([]byte(rule.CanonicalJSON)); err != nil {
		return nil, fmt.Errorf("failed to parse canonical form: %w", err)
	}
	return &canon, nil
}
