package assess

// Novelty labels, terminal states of the novelty classifier.
const (
	NoveltyDuplicate = "DUPLICATE"
	NoveltySimilar   = "SIMILAR"
	NoveltyNovel     = "NOVEL"
)

// Coverage labels for article-behavior matching.
const (
	CoverageCovered = "covered"
	CoverageExtend  = "extend"
	CoverageNew     = "new"
)

// MatchResult is one scored candidate from the corpus.
type MatchResult struct {
	RuleID      string             `json:"rule_id"`
	Title       string             `json:"title,omitempty"`
	AtomJaccard float64            `json:"atom_jaccard"`
	LogicShape  float64            `json:"logic_shape_similarity"`
	Cosine      float64            `json:"cosine_similarity"`
	Weighted    float64            `json:"weighted_similarity"`
	Breakdown   map[string]float64 `json:"similarity_breakdown,omitempty"`
	// Degraded reports that the proposal's embeddings were zero-padded, so
	// the cosine term understates similarity.
	Degraded bool         `json:"embedding_degraded,omitempty"`
	Explain  *Explanation `json:"explanation,omitempty"`
}

// NoveltyAssessment is the full decision for one proposed rule.
type NoveltyAssessment struct {
	Label        string        `json:"novelty_label"`
	Score        float64       `json:"novelty_score"`
	LogsourceKey string        `json:"logsource_key"`
	ExactHash    string        `json:"exact_hash"`
	TopMatches   []MatchResult `json:"top_matches"`
}

// CoverageResult is the decision for one rule against one article's
// behavior indicators.
type CoverageResult struct {
	RuleID       string   `json:"rule_id"`
	Label        string   `json:"coverage_label"`
	Similarity   float64  `json:"similarity"`
	OverlapRatio float64  `json:"overlap_ratio"`
	Reasoning    string   `json:"reasoning,omitempty"`
	Matched      []string `json:"matched_behaviors,omitempty"`
	Unmatched    []string `json:"unmatched_behaviors,omitempty"`
}
