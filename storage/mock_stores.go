package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryRuleStore implements RuleStore in memory for testing.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]*StoredRule
}

// NewMemoryRuleStore creates an empty in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]*StoredRule)}
}

func (m *MemoryRuleStore) SaveRule(ctx context.Context, rule *StoredRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *rule
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	clone.UpdatedAt = time.Now().UTC()
	m.rules[rule.ID] = &clone
	return nil
}

func (m *MemoryRuleStore) GetRule(ctx context.Context, id string) (*StoredRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *rule
	return &clone, nil
}

func (m *MemoryRuleStore) GetRuleByExactHash(ctx context.Context, exactHash string) (*StoredRule, error) {
	if exactHash == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rule := range m.rules {
		if rule.ExactHash == exactHash {
			clone := *rule
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRuleStore) CandidatesByLogsource(ctx context.Context, logsourceKey string, topK int) ([]*StoredRule, error) {
	if !validLogsourceKey(logsourceKey) {
		return nil, nil
	}
	if topK <= 0 {
		topK = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []*StoredRule
	for _, rule := range m.rules {
		if rule.LogsourceKey == logsourceKey {
			clone := *rule
			candidates = append(candidates, &clone)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (m *MemoryRuleStore) ListRuleIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.rules {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *MemoryRuleStore) CountRules(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.rules)), nil
}

func (m *MemoryRuleStore) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

// ApplyCanonicalUpdate mirrors the transactional batch update for tests.
func (m *MemoryRuleStore) ApplyCanonicalUpdate(u CanonicalUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[u.RuleID]
	if !ok {
		return
	}
	rule.LogsourceKey = u.LogsourceKey
	rule.ExactHash = u.ExactHash
	rule.CanonicalVersion = u.CanonicalVersion
	rule.CanonicalJSON = u.CanonicalJSON
	rule.CanonicalText = u.CanonicalText
	rule.UpdatedAt = time.Now().UTC()
}

// MemoryVectorStore implements VectorStore in memory for testing.
type MemoryVectorStore struct {
	mu      sync.RWMutex
	vectors map[string]map[string][]float32

	// NearestErr, when set, is returned by NearestBySection to exercise the
	// embedding-degraded fallback path.
	NearestErr error
}

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{vectors: make(map[string]map[string][]float32)}
}

func (m *MemoryVectorStore) UpsertRuleVectors(ctx context.Context, ruleID string, vectors map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := make(map[string][]float32, len(vectors))
	for section, vec := range vectors {
		clone[section] = append([]float32(nil), vec...)
	}
	m.vectors[ruleID] = clone
	return nil
}

func (m *MemoryVectorStore) NearestBySection(ctx context.Context, section string, query []float32, limit int) ([]VectorMatch, error) {
	if m.NearestErr != nil {
		return nil, m.NearestErr
	}
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []VectorMatch
	for ruleID, sections := range m.vectors {
		matches = append(matches, VectorMatch{
			RuleID:     ruleID,
			Similarity: cosine32(query, sections[section]),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].RuleID < matches[j].RuleID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryVectorStore) GetRuleVectors(ctx context.Context, ruleIDs []string) (map[string]map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string][]float32, len(ruleIDs))
	for _, id := range ruleIDs {
		sections, ok := m.vectors[id]
		if !ok {
			continue
		}
		clone := make(map[string][]float32, len(sections))
		for section, vec := range sections {
			clone[section] = append([]float32(nil), vec...)
		}
		out[id] = clone
	}
	return out, nil
}

func (m *MemoryVectorStore) DeleteRuleVectors(ctx context.Context, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, ruleID)
	return nil
}

func cosine32(a, b []float32) float64 {
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
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MemoryCheckpointStore implements CheckpointStore in memory for testing.
type MemoryCheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]*Checkpoint
	rules       *MemoryRuleStore

	// CommitErr, when set, fails CommitBatch to exercise crash recovery.
	CommitErr error
}

// NewMemoryCheckpointStore creates a checkpoint store that applies batch
// updates to the given rule store, mirroring the transactional coupling of
// the SQLite implementation.
func NewMemoryCheckpointStore(rules *MemoryRuleStore) *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*Checkpoint),
		rules:       rules,
	}
}

func (m *MemoryCheckpointStore) GetCheckpoint(ctx context.Context, job string) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[job]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cp
	return &clone, nil
}

func (m *MemoryCheckpointStore) CommitBatch(ctx context.Context, updates []CanonicalUpdate, checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	if m.rules != nil {
		for _, u := range updates {
			m.rules.ApplyCanonicalUpdate(u)
		}
	}
	clone := *checkpoint
	clone.UpdatedAt = time.Now().UTC()
	m.checkpoints[checkpoint.Job] = &clone
	return nil
}

func (m *MemoryCheckpointStore) ResetCheckpoint(ctx context.Context, job string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, job)
	return nil
}
