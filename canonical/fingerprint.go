package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint bundles the dedup signals derived from a canonical rule: the
// exact hash for equality lookups, the human-diffable canonical text, and the
// logsource gate key.
type Fingerprint struct {
	ExactHash     string `json:"exact_hash"`
	CanonicalText string `json:"canonical_text"`
	LogsourceKey  string `json:"logsource_key"`
}

// ExactHash computes the SHA-256 of the canonical JSON document. Equal hashes
// imply logically identical rules; the hash is stable across key ordering,
// parenthesization and macro rewrites of the source YAML.
func ExactHash(rule *CanonicalRule) (string, error) {
	data, err := rule.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to serialize canonical rule: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalText renders a line-based view of the canonical rule for human
// diffing and candidate explanation: one logsource line, one logic-expression
// line, then one line per atom in canonical order (negative atoms wrapped in
// NOT).
func CanonicalText(rule *CanonicalRule) string {
	var sb strings.Builder

	sb.WriteString("logsource: ")
	sb.WriteString(rule.Logsource.Key())
	sb.WriteByte('\n')

	sb.WriteString("logic: ")
	if rule.Detection.Logic != nil {
		sb.WriteString(rule.Detection.Logic.CanonicalKey())
	} else {
		sb.WriteString("(none)")
	}
	sb.WriteByte('\n')

	for _, atom := range rule.Detection.Atoms {
		sb.WriteString("atom: ")
		sb.WriteString(atom.DisplayKey())
		sb.WriteByte('\n')
	}

	return sb.String()
}

// NewFingerprint derives all fingerprint fields from a canonical rule.
func NewFingerprint(rule *CanonicalRule) (*Fingerprint, error) {
	hash, err := ExactHash(rule)
	if err != nil {
		return nil, err
	}
	return &Fingerprint{
		ExactHash:     hash,
		CanonicalText: CanonicalText(rule),
		LogsourceKey:  rule.Logsource.Key(),
	}, nil
}
