package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"argus/assess"
	"argus/canonical"
	"argus/embed"
	"argus/metrics"
	"argus/sigma"
	"argus/storage"
)

// matchRuleReader fetches individual corpus rules for coverage scoring.
type matchRuleReader interface {
	GetRule(ctx context.Context, id string) (*storage.StoredRule, error)
	CandidatesByLogsource(ctx context.Context, logsourceKey string, topK int) ([]*storage.StoredRule, error)
}

// vectorSearcher is the nearest-neighbor view of the vector store.
type vectorSearcher interface {
	NearestBySection(ctx context.Context, section string, query []float32, limit int) ([]storage.VectorMatch, error)
	GetRuleVectors(ctx context.Context, ruleIDs []string) (map[string]map[string][]float32, error)
}

// MatchRequest is a rule drafted from an intelligence article plus the
// article's extracted behavior indicators.
type MatchRequest struct {
	Rule      *sigma.Rule
	Behaviors []string
}

// MatchConfig tunes the coverage pipeline.
type MatchConfig struct {
	Limit          int
	SectionWeights assess.SectionWeights
}

func (c *MatchConfig) applyDefaults() {
	if c.Limit <= 0 {
		c.Limit = 20
	}
	if (c.SectionWeights == assess.SectionWeights{}) {
		c.SectionWeights = assess.DefaultSectionWeights()
	}
}

// MatchService answers whether the corpus already covers the behaviors an
// intelligence article describes. Retrieval is broad vector similarity over
// the detection-fields section, not logsource-gated: coverage should surface
// functionally equivalent rules even under a different telemetry selector.
type MatchService struct {
	rules    matchRuleReader
	vectors  vectorSearcher
	embedder embed.Embedder
	config   MatchConfig
	logger   *zap.SugaredLogger
}

// NewMatchService creates a coverage matching service.
func NewMatchService(
	rules matchRuleReader,
	vectors vectorSearcher,
	embedder embed.Embedder,
	config MatchConfig,
	logger *zap.SugaredLogger,
) (*MatchService, error) {
	if rules == nil {
		return nil, errors.New("rule storage is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	config.applyDefaults()
	if err := config.SectionWeights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid section weights: %w", err)
	}

	return &MatchService{
		rules:    rules,
		vectors:  vectors,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// MatchCoverage scores the corpus against an article's drafted rule and
// behavior indicators, returning one coverage decision per candidate ordered
// by descending similarity.
func (s *MatchService) MatchCoverage(ctx context.Context, request *MatchRequest) ([]assess.CoverageResult, error) {
	if request == nil || request.Rule == nil {
		return nil, errors.New("a drafted rule is required")
	}

	canon, err := canonical.Canonicalize(request.Rule.Logsource, request.Rule.Detection)
	if err != nil {
		metrics.CanonicalizeErrors.Inc()
		return nil, fmt.Errorf("failed to canonicalize drafted rule: %w", err)
	}

	queryVectors, embedded := s.embedQuery(ctx, request.Rule, canon)

	var results []assess.CoverageResult
	if embedded && s.vectors != nil {
		results, err = s.matchByVectors(ctx, request, queryVectors)
		if err != nil {
			s.logger.Warnw("Vector matching failed, falling back to structural matching", "error", err)
			results = nil
		}
	}
	if results == nil {
		// Total embedding or vector-store unavailability: fall back to
		// gated structural similarity instead of failing the request.
		results, err = s.matchStructural(ctx, request, canon)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	for _, result := range results {
		metrics.MatchesTotal.WithLabelValues(result.Label).Inc()
	}
	return results, nil
}

// embedQuery embeds the drafted rule's sections. The second return reports
// whether any section produced a usable non-zero vector.
func (s *MatchService) embedQuery(ctx context.Context, rule *sigma.Rule, canon *canonical.CanonicalRule) (map[string][]float32, bool) {
	if s.embedder == nil {
		return embed.ZipSections(nil), false
	}
	texts := embed.SectionTexts(embed.BuildSections(rule.Title, rule.Description, rule.Tags, canon))
	rawVectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		s.logger.Warnw("Embedding unavailable for match query", "error", err)
		return embed.ZipSections(nil), false
	}
	metrics.EmbeddingRequests.WithLabelValues("success").Inc()

	vectors := embed.ZipSections(rawVectors)
	return vectors, anyNonZero(vectors)
}

// matchByVectors runs the primary path: ungated nearest-neighbor retrieval on
// the detection-fields section, then full section-weighted scoring plus
// behavior overlap per candidate.
func (s *MatchService) matchByVectors(ctx context.Context, request *MatchRequest, queryVectors map[string][]float32) ([]assess.CoverageResult, error) {
	neighbors, err := s.vectors.NearestBySection(ctx, assess.SectionDetectionFields,
		queryVectors[assess.SectionDetectionFields], s.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor search failed: %w", err)
	}
	if len(neighbors) == 0 {
		return []assess.CoverageResult{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, neighbor := range neighbors {
		ids[i] = neighbor.RuleID
	}
	candidateVectors, err := s.vectors.GetRuleVectors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("candidate vector fetch failed: %w", err)
	}

	results := make([]assess.CoverageResult, 0, len(neighbors))
	for _, neighbor := range neighbors {
		candidate, err := s.rules.GetRule(ctx, neighbor.RuleID)
		if err != nil {
			metrics.CandidateErrors.Inc()
			s.logger.Warnw("Skipping unloadable match candidate",
				"rule_id", neighbor.RuleID,
				"error", err)
			continue
		}

		breakdown := assess.SectionBreakdown(queryVectors, candidateVectors[candidate.ID])
		similarity := assess.Round4(assess.WeightedSections(breakdown, s.config.SectionWeights))
		results = append(results, s.classify(request.Behaviors, candidate, similarity))
	}
	return results, nil
}

// matchStructural is the degraded path: retrieve by the drafted rule's
// logsource gate and score candidates on behavior overlap with similarity
// from atom and logic overlap only.
func (s *MatchService) matchStructural(ctx context.Context, request *MatchRequest, canon *canonical.CanonicalRule) ([]assess.CoverageResult, error) {
	logsourceKey := canon.Logsource.Key()
	if !canonical.LogsourceKeyValid(logsourceKey) {
		return []assess.CoverageResult{}, nil
	}
	candidates, err := s.rules.CandidatesByLogsource(ctx, logsourceKey, s.config.Limit)
	if err != nil {
		return nil, fmt.Errorf("structural candidate retrieval failed: %w", err)
	}

	proposedPositive := canon.PositiveAtoms()
	results := make([]assess.CoverageResult, 0, len(candidates))
	for _, candidate := range candidates {
		candCanon, err := parseStoredCanonical(candidate)
		if err != nil {
			metrics.CandidateErrors.Inc()
			continue
		}
		jaccard := assess.AtomJaccard(proposedPositive, candCanon.PositiveAtoms())
		shape := assess.LogicShape(canon.Detection.Logic, candCanon.Detection.Logic)
		similarity := assess.Round4((jaccard + shape) / 2)
		results = append(results, s.classify(request.Behaviors, candidate, similarity))
	}
	return results, nil
}

// classify scores one candidate's behavior overlap and labels its coverage.
func (s *MatchService) classify(behaviors []string, candidate *storage.StoredRule, similarity float64) assess.CoverageResult {
	var patterns []string
	if candCanon, err := parseStoredCanonical(candidate); err == nil {
		patterns = assess.RulePatterns(candCanon, candidate.Title)
	} else {
		patterns = assess.RulePatterns(nil, candidate.Title)
	}

	overlap, matched, unmatched := assess.BehaviorOverlap(behaviors, patterns)
	label := assess.ClassifyCoverage(similarity, overlap)
	return assess.CoverageResult{
		RuleID:       candidate.ID,
		Label:        label,
		Similarity:   similarity,
		OverlapRatio: assess.Round4(overlap),
		Reasoning: fmt.Sprintf("matched %d of %d behaviors at similarity %.4f",
			len(matched), len(matched)+len(unmatched), similarity),
		Matched:   matched,
		Unmatched: unmatched,
	}
}

func anyNonZero(vectors map[string][]float32) bool {
	for _, vector := range vectors {
		for _, v := range vector {
			if v != 0 {
				return true
			}
		}
	}
	return false
}
