package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"argus/embed"
	"argus/sigma"
	"argus/storage"
)

// stubEmbedder returns a deterministic unit vector for every non-blank text,
// so identical section texts score cosine 1 and blanks stay zero. Err, when
// set, simulates a total embedding outage.
type stubEmbedder struct {
	Err   error
	calls atomic.Int32
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, embed.Dimension)
		if strings.TrimSpace(text) != "" {
			vec[0] = 1
		}
		out[i] = vec
	}
	return out, nil
}

func parseRule(t *testing.T, doc string) *sigma.Rule {
	t.Helper()
	rule, err := sigma.NewParser(zap.NewNop().Sugar()).ParseYAML([]byte(doc))
	require.NoError(t, err)
	return rule
}

// seedCorpus imports rules into the given stores with canonical fields and
// section vectors precomputed.
func seedCorpus(t *testing.T, rules *storage.MemoryRuleStore, vectors *storage.MemoryVectorStore, docs ...string) {
	t.Helper()
	importer, err := NewImportService(rules, vectors, &stubEmbedder{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, importer.ImportRule(context.Background(), parseRule(t, doc)))
	}
}

const cmdRuleYAML = `title: Suspicious Cmd Execution
id: rule-cmd
description: Detects suspicious cmd.exe child process flags
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
      - '/r'
      - '/s'
  condition: selection
level: medium
`

// cmdRuleReorderedYAML is logically identical to cmdRuleYAML: keys and list
// values reordered, condition parenthesized.
const cmdRuleReorderedYAML = `title: Cmd Execution Variant
id: rule-cmd-copy
description: Same detection written differently
tags:
  - attack.t1059.003
  - attack.execution
logsource:
  category: process_creation
  product: windows
detection:
  selection:
    CommandLine|contains:
      - '/s'
      - '/r'
      - '/k'
      - '/c'
    Image|endswith: '\cmd.exe'
  condition: (selection)
level: medium
`

const powershellRuleYAML = `title: Encoded PowerShell Command
id: rule-psh
description: Detects encoded PowerShell invocations
tags:
  - attack.execution
logsource:
  product: windows
  category: process_creation
detection:
  selection:
    Image|endswith: '\powershell.exe'
    CommandLine|contains: '-enc'
  condition: selection
level: high
`

const noLogsourceRuleYAML = `title: Rule Without Telemetry Selector
detection:
  selection:
    Image|endswith: '\cmd.exe'
  condition: selection
`
