package assess

import "fmt"

// NoveltyWeights combine the three structural signals into the novelty score.
// Atom overlap dominates because two rules matching the same predicates are
// functionally redundant even when their prose differs.
type NoveltyWeights struct {
	AtomJaccard float64
	LogicShape  float64
	Cosine      float64
}

// SectionWeights combine the six embedded sections into the matching score.
// Detection fields carry most of the weight: functional equivalence is
// determined by what a rule actually matches, not by its prose.
type SectionWeights struct {
	Title              float64
	Description        float64
	Tags               float64
	Logsource          float64
	DetectionStructure float64
	DetectionFields    float64
}

// DefaultNoveltyWeights returns the production novelty composition.
func DefaultNoveltyWeights() NoveltyWeights {
	return NoveltyWeights{
		AtomJaccard: 0.55,
		LogicShape:  0.25,
		Cosine:      0.20,
	}
}

// DefaultSectionWeights returns the production matching composition.
func DefaultSectionWeights() SectionWeights {
	return SectionWeights{
		Title:              0.042,
		Description:        0.042,
		Tags:               0.042,
		Logsource:          0.105,
		DetectionStructure: 0.095,
		DetectionFields:    0.674,
	}
}

const weightSumTolerance = 1e-9

// Validate checks that the weights form a convex combination.
func (w NoveltyWeights) Validate() error {
	sum := w.AtomJaccard + w.LogicShape + w.Cosine
	if diff := sum - 1.0; diff > weightSumTolerance || diff < -weightSumTolerance {
		return fmt.Errorf("novelty weights sum to %v, want 1.0", sum)
	}
	if w.AtomJaccard < 0 || w.LogicShape < 0 || w.Cosine < 0 {
		return fmt.Errorf("novelty weights must be non-negative: %+v", w)
	}
	return nil
}

// Validate checks that the weights form a convex combination.
func (w SectionWeights) Validate() error {
	sum := w.Title + w.Description + w.Tags + w.Logsource + w.DetectionStructure + w.DetectionFields
	if diff := sum - 1.0; diff > weightSumTolerance || diff < -weightSumTolerance {
		return fmt.Errorf("section weights sum to %v, want 1.0", sum)
	}
	for name, v := range w.byName() {
		if v < 0 {
			return fmt.Errorf("section weight %s is negative: %v", name, v)
		}
	}
	return nil
}

// byName maps section names to their weights, keyed the same way the
// similarity breakdown is keyed.
func (w SectionWeights) byName() map[string]float64 {
	return map[string]float64{
		SectionTitle:              w.Title,
		SectionDescription:        w.Description,
		SectionTags:               w.Tags,
		SectionLogsource:          w.Logsource,
		SectionDetectionStructure: w.DetectionStructure,
		SectionDetectionFields:    w.DetectionFields,
	}
}
