package sigma

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Rule represents a SIGMA detection rule as parsed from YAML. Logsource and
// Detection stay loosely typed: canonicalization owns their interpretation
// and tolerates malformed content, so the parser does not reject it.
type Rule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`
	Date        string `json:"date,omitempty"`
	Modified    string `json:"modified,omitempty"`

	Status string `json:"status,omitempty"` // experimental, test, stable, deprecated
	Level  string `json:"level,omitempty"`  // informational, low, medium, high, critical

	References     []string               `json:"references,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	Logsource      map[string]interface{} `json:"logsource,omitempty"`
	FalsePositives []string               `json:"falsepositives,omitempty"`

	Detection map[string]interface{} `json:"detection"`

	// RawYAML holds the original file content, persisted verbatim so the
	// corpus can be re-canonicalized after a canonical version bump.
	RawYAML string `json:"-"`

	FilePath string `json:"file_path,omitempty"`
}

var validStatuses = map[string]bool{
	"experimental": true,
	"test":         true,
	"stable":       true,
	"deprecated":   true,
}

var validLevels = map[string]bool{
	"informational": true,
	"low":           true,
	"medium":        true,
	"high":          true,
	"critical":      true,
}

// Validate checks the fields the assessment pipeline requires. A missing ID
// is allowed; one is generated at store time.
func (r *Rule) Validate() error {
	if r.Title == "" {
		return errors.New("rule title is required")
	}
	if len(r.Detection) == 0 {
		return errors.New("rule detection logic is required")
	}
	if r.Status != "" && !validStatuses[r.Status] {
		return errors.New("invalid status: must be experimental, test, stable, or deprecated")
	}
	if r.Level != "" && !validLevels[r.Level] {
		return errors.New("invalid level: must be informational, low, medium, high, or critical")
	}
	return nil
}

// ContentHash computes a SHA-256 over the raw YAML for import provenance.
// This is byte-level identity of the source file, unlike the canonical exact
// hash which is identity of meaning.
func (r *Rule) ContentHash() string {
	sum := sha256.Sum256([]byte(r.RawYAML))
	return hex.EncodeToString(sum[:])
}
