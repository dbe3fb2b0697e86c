package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassifyNovelty_ExactMatch tests the hash short-circuit.
func TestClassifyNovelty_ExactMatch(t *testing.T) {
	label, score := ClassifyNovelty(true, nil)
	assert.Equal(t, NoveltyDuplicate, label)
	assert.Equal(t, 0.0, score)

	// The short-circuit wins even when candidates exist.
	label, score = ClassifyNovelty(true, []MatchResult{{Weighted: 0.1}})
	assert.Equal(t, NoveltyDuplicate, label)
	assert.Equal(t, 0.0, score)
}

// TestClassifyNovelty_NoCandidates tests the empty-corpus outcome.
func TestClassifyNovelty_NoCandidates(t *testing.T) {
	label, score := ClassifyNovelty(false, nil)
	assert.Equal(t, NoveltyNovel, label)
	assert.Equal(t, 1.0, score)
}

// TestClassifyNovelty_StructuralDuplicate tests the jaccard+shape duplicate
// rung.
func TestClassifyNovelty_StructuralDuplicate(t *testing.T) {
	label, score := ClassifyNovelty(false, []MatchResult{
		{AtomJaccard: 0.97, LogicShape: 0.96, Cosine: 0.50, Weighted: 0.92},
	})
	assert.Equal(t, NoveltyDuplicate, label)
	assert.Equal(t, 0.0, score, "confirmed duplicates report score 0")
}

// TestClassifyNovelty_SimilarViaCosine tests the jaccard+cosine rung.
func TestClassifyNovelty_SimilarViaCosine(t *testing.T) {
	label, score := ClassifyNovelty(false, []MatchResult{
		{AtomJaccard: 0.75, LogicShape: 0.40, Cosine: 0.85, Weighted: 0.6825},
	})
	assert.Equal(t, NoveltySimilar, label)
	assert.InDelta(t, 0.3175, score, 1e-9)
}

// TestClassifyNovelty_SimilarViaJaccardAlone tests that high structural
// overlap classifies as SIMILAR even with a degraded embedding signal.
func TestClassifyNovelty_SimilarViaJaccardAlone(t *testing.T) {
	label, _ := ClassifyNovelty(false, []MatchResult{
		{AtomJaccard: 0.85, LogicShape: 0.50, Cosine: 0.0, Weighted: 0.5925},
	})
	assert.Equal(t, NoveltySimilar, label)
}

// TestClassifyNovelty_Novel tests the fall-through.
func TestClassifyNovelty_Novel(t *testing.T) {
	label, score := ClassifyNovelty(false, []MatchResult{
		{AtomJaccard: 0.20, LogicShape: 0.30, Cosine: 0.40, Weighted: 0.2650},
	})
	assert.Equal(t, NoveltyNovel, label)
	assert.InDelta(t, 0.7350, score, 1e-9)
}

// TestClassifyNovelty_TopCandidateDecides tests that the highest weighted
// candidate drives the decision regardless of list order.
func TestClassifyNovelty_TopCandidateDecides(t *testing.T) {
	label, _ := ClassifyNovelty(false, []MatchResult{
		{AtomJaccard: 0.10, LogicShape: 0.10, Cosine: 0.10, Weighted: 0.10},
		{AtomJaccard: 0.97, LogicShape: 0.97, Cosine: 0.90, Weighted: 0.95},
	})
	assert.Equal(t, NoveltyDuplicate, label)
}

// TestClassifyNovelty_Monotonic tests that raising atom jaccard with other
// signals fixed never moves the label toward NOVEL.
func TestClassifyNovelty_Monotonic(t *testing.T) {
	rank := map[string]int{NoveltyNovel: 0, NoveltySimilar: 1, NoveltyDuplicate: 2}

	previous := -1
	for _, jaccard := range []float64{0.10, 0.50, 0.71, 0.81, 0.96} {
		label, _ := ClassifyNovelty(false, []MatchResult{
			{AtomJaccard: jaccard, LogicShape: 0.96, Cosine: 0.85, Weighted: 0.5},
		})
		assert.GreaterOrEqual(t, rank[label], previous,
			"label regressed toward NOVEL at jaccard %v", jaccard)
		previous = rank[label]
	}
}
