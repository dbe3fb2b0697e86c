package sigma

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRuleYAML = `title: Suspicious Cmd Execution
id: 4f4eaa9f-5ad4-410c-a4be-bc6132b0175a
status: experimental
description: Detects suspicious cmd.exe usage
author: tester
tags:
  - attack.execution
  - attack.t1059.003
logsource:
  product: windows
  category: process_creation
detection:
  selection:
    Image|endswith: '\cmd.exe'
    CommandLine|contains:
      - '/c'
      - '/k'
  condition: selection
level: medium
`

// TestParseYAML tests parsing a complete rule.
func TestParseYAML(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())

	rule, err := parser.ParseYAML([]byte(sampleRuleYAML))
	require.NoError(t, err)

	assert.Equal(t, "4f4eaa9f-5ad4-410c-a4be-bc6132b0175a", rule.ID)
	assert.Equal(t, "Suspicious Cmd Execution", rule.Title)
	assert.Equal(t, "medium", rule.Level)
	assert.Equal(t, []string{"attack.execution", "attack.t1059.003"}, rule.Tags)
	assert.Equal(t, "windows", rule.Logsource["product"])
	assert.Contains(t, rule.Detection, "selection")
	assert.Contains(t, rule.Detection, "condition")
	assert.Equal(t, sampleRuleYAML, rule.RawYAML)
	assert.Len(t, rule.ContentHash(), 64)
}

// TestParseYAML_Invalid tests validation failures.
func TestParseYAML_Invalid(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())

	cases := map[string]string{
		"not yaml":          "{{{{",
		"missing title":     "detection:\n  selection:\n    a: b\n  condition: selection\n",
		"missing detection": "title: No Detection\n",
		"bad level":         "title: X\nlevel: urgent\ndetection:\n  selection:\n    a: b\n  condition: selection\n",
		"bad status":        "title: X\nstatus: draft\ndetection:\n  selection:\n    a: b\n  condition: selection\n",
	}
	for name, doc := range cases {
		_, err := parser.ParseYAML([]byte(doc))
		assert.Error(t, err, name)
	}
}

// TestParseYAML_MissingIDAllowed tests that rules without an id still parse.
func TestParseYAML_MissingIDAllowed(t *testing.T) {
	parser := NewParser(zap.NewNop().Sugar())

	rule, err := parser.ParseYAML([]byte("title: No ID\ndetection:\n  selection:\n    a: b\n  condition: selection\n"))
	require.NoError(t, err)
	assert.Empty(t, rule.ID)
}

// TestParseDirectory tests bulk parsing with bad files skipped.
func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yml"), []byte(sampleRuleYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("{{{{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not a rule"), 0644))

	parser := NewParser(zap.NewNop().Sugar())
	rules, err := parser.ParseDirectory(dir)

	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Suspicious Cmd Execution", rules[0].Title)
	assert.Equal(t, filepath.Join(dir, "good.yml"), rules[0].FilePath)
}
