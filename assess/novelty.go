package assess

// Novelty decision thresholds over the top weighted candidate.
const (
	duplicateJaccardThreshold = 0.95
	duplicateShapeThreshold   = 0.95
	similarJaccardThreshold   = 0.70
	similarCosineThreshold    = 0.80
	similarJaccardOverride    = 0.80
)

// ClassifyNovelty labels a proposed rule against its scored candidates. The
// exactMatch flag short-circuits to DUPLICATE with score 0: an exact-hash hit
// is canonical-form identity, no similarity evidence can override it. With no
// candidates at all the rule is NOVEL with score 1. Otherwise the top
// weighted candidate decides, and the score is 1 minus its weighted
// similarity.
func ClassifyNovelty(exactMatch bool, candidates []MatchResult) (label string, score float64) {
	if exactMatch {
		return NoveltyDuplicate, 0
	}
	if len(candidates) == 0 {
		return NoveltyNovel, 1.0
	}

	top := topWeighted(candidates)
	score = Round4(1.0 - top.Weighted)

	switch {
	case top.AtomJaccard > duplicateJaccardThreshold && top.LogicShape > duplicateShapeThreshold:
		return NoveltyDuplicate, 0
	case top.AtomJaccard > similarJaccardThreshold && top.Cosine > similarCosineThreshold:
		return NoveltySimilar, score
	case top.AtomJaccard > similarJaccardOverride:
		// High structural overlap alone is enough; a degraded embedding
		// must not promote a near-copy to NOVEL.
		return NoveltySimilar, score
	default:
		return NoveltyNovel, score
	}
}

func topWeighted(candidates []MatchResult) MatchResult {
	top := candidates[0]
	for _, c := range candidates[1:] {
		if c.Weighted > top.Weighted {
			top = c
		}
	}
	return top
}
