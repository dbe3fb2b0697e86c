package assess

import (
	"math"

	"argus/canonical"
)

// Section names used as similarity-breakdown keys. These match the embedded
// section order and the stored vector column names.
const (
	SectionTitle              = "title"
	SectionDescription        = "description"
	SectionTags               = "tags"
	SectionLogsource          = "logsource"
	SectionDetectionStructure = "detection_structure"
	SectionDetectionFields    = "detection_fields"
)

// SectionNames lists every embedded section in canonical order.
var SectionNames = []string{
	SectionTitle,
	SectionDescription,
	SectionTags,
	SectionLogsource,
	SectionDetectionStructure,
	SectionDetectionFields,
}

// AtomJaccard computes set overlap between two positive-atom lists using the
// field|sorted-ops:value key. Two empty sets are identical, so the result is
// 1.0; one empty set against a non-empty one scores 0.
func AtomJaccard(a, b []canonical.Atom) float64 {
	setA := atomKeySet(a)
	setB := atomKeySet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for key := range setA {
		if setB[key] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func atomKeySet(atoms []canonical.Atom) map[string]bool {
	set := make(map[string]bool, len(atoms))
	for _, atom := range atoms {
		set[atom.Key()] = true
	}
	return set
}

// LogicShape compares the structure of two canonical logic trees. Identical
// canonical serializations score 1.0 outright; otherwise the score decays with
// the relative differences in tree depth and operator count.
func LogicShape(a, b *canonical.LogicNode) float64 {
	keyA, keyB := logicKey(a), logicKey(b)
	if keyA == keyB {
		return 1.0
	}

	depthA, depthB := treeDepth(a), treeDepth(b)
	opsA, opsB := operatorCount(a), operatorCount(b)

	depthDiff := relativeDiff(depthA, depthB)
	opsDiff := relativeDiff(opsA, opsB)

	return clamp01(1.0 - (depthDiff+opsDiff)/2.0)
}

func logicKey(n *canonical.LogicNode) string {
	if n == nil {
		return ""
	}
	return n.CanonicalKey()
}

func treeDepth(n *canonical.LogicNode) int {
	if n == nil {
		return 0
	}
	return n.Depth()
}

func operatorCount(n *canonical.LogicNode) int {
	if n == nil {
		return 0
	}
	return n.OperatorCount()
}

// relativeDiff normalizes |a-b| by the larger operand, flooring the
// denominator at 1 so two empty trees do not divide by zero.
func relativeDiff(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	denom := a
	if b > denom {
		denom = b
	}
	if denom < 1 {
		denom = 1
	}
	return float64(diff) / float64(denom)
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths,
// empty vectors and zero vectors all score 0 rather than erroring, so a
// degraded embedding contributes nothing instead of aborting the assessment.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// SectionBreakdown computes per-section cosine similarities between two
// section-vector maps. Every known section appears in the result; sections
// missing on either side contribute 0, never a null.
func SectionBreakdown(a, b map[string][]float32) map[string]float64 {
	breakdown := make(map[string]float64, len(SectionNames))
	for _, section := range SectionNames {
		breakdown[section] = Round4(Cosine(a[section], b[section]))
	}
	return breakdown
}

// WeightedSections folds a per-section breakdown into a single matching score.
func WeightedSections(breakdown map[string]float64, weights SectionWeights) float64 {
	var sum float64
	for section, weight := range weights.byName() {
		sum += weight * breakdown[section]
	}
	return clamp01(sum)
}

// NoveltyWeighted folds the three structural signals into the novelty
// similarity score.
func NoveltyWeighted(atomJaccard, logicShape, cosine float64, weights NoveltyWeights) float64 {
	return clamp01(weights.AtomJaccard*atomJaccard + weights.LogicShape*logicShape + weights.Cosine*cosine)
}

// Round4 rounds to four decimal places for stable display and comparison.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
