package embed

import (
	"strings"

	"argus/assess"
	"argus/canonical"
)

// Dimension of every embedding vector produced and stored by the system.
const Dimension = 768

// attackPrefix is stripped from MITRE technique tags before embedding so the
// model sees "t1059.001" instead of the namespaced form.
const attackPrefix = "attack."

// BuildSections renders the six embedded text sections of a rule. Every
// section key is always present; a rule missing a field embeds the empty
// string, which the client turns into a zero vector.
func BuildSections(title, description string, tags []string, rule *canonical.CanonicalRule) map[string]string {
	sections := map[string]string{
		assess.SectionTitle:       strings.TrimSpace(title),
		assess.SectionDescription: strings.TrimSpace(description),
		assess.SectionTags:        tagsText(tags),
	}

	if rule == nil {
		sections[assess.SectionLogsource] = ""
		sections[assess.SectionDetectionStructure] = ""
		sections[assess.SectionDetectionFields] = ""
		return sections
	}

	sections[assess.SectionLogsource] = logsourceText(rule.Logsource)
	sections[assess.SectionDetectionStructure] = structureText(rule)
	sections[assess.SectionDetectionFields] = fieldsText(rule)
	return sections
}

func tagsText(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(tag), attackPrefix))
		if tag != "" {
			cleaned = append(cleaned, tag)
		}
	}
	return strings.Join(cleaned, " ")
}

func logsourceText(ls canonical.Logsource) string {
	parts := make([]string, 0, 2)
	if ls.Product != "" {
		parts = append(parts, ls.Product)
	}
	if ls.Category != "" {
		parts = append(parts, ls.Category)
	}
	return strings.Join(parts, " ")
}

// structureText renders the shape of the logic tree without atom values, so
// structurally similar rules embed close together even when their literals
// differ.
func structureText(rule *canonical.CanonicalRule) string {
	if rule.Detection.Logic == nil {
		return ""
	}
	return rule.Detection.Logic.CanonicalKey()
}

// fieldsText renders what the rule actually matches: each field with its
// modifiers and values, in canonical atom order, negations marked.
func fieldsText(rule *canonical.CanonicalRule) string {
	atoms := rule.Detection.Atoms
	if len(atoms) == 0 {
		return ""
	}
	lines := make([]string, 0, len(atoms))
	for _, atom := range atoms {
		lines = append(lines, atom.DisplayKey())
	}
	return strings.Join(lines, "\n")
}

// SectionTexts flattens a section map into the canonical section order,
// producing the batch sent to the embedding service. The order matches
// assess.SectionNames so the response vectors can be zipped back by index.
func SectionTexts(sections map[string]string) []string {
	texts := make([]string, len(assess.SectionNames))
	for i, name := range assess.SectionNames {
		texts[i] = sections[name]
	}
	return texts
}

// ZipSections pairs section names with their vectors. Short vector lists are
// padded with zero vectors so the result always covers every section.
func ZipSections(vectors [][]float32) map[string][]float32 {
	out := make(map[string][]float32, len(assess.SectionNames))
	for i, name := range assess.SectionNames {
		if i < len(vectors) && len(vectors[i]) == Dimension {
			out[name] = vectors[i]
		} else {
			out[name] = make([]float32, Dimension)
		}
	}
	return out
}
