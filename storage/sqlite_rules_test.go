package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestSQLite creates a file-backed test database so both pools share it.
func setupTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	sqlite, err := NewSQLite(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create SQLite database")
	t.Cleanup(func() { _ = sqlite.Close() })

	return sqlite
}

func testRule(id, logsourceKey, exactHash string) *StoredRule {
	return &StoredRule{
		ID:               id,
		Title:            "Test Rule " + id,
		Description:      "a rule",
		Tags:             []string{"attack.t1059"},
		Severity:         "high",
		Author:           "tester",
		YAML:             "title: Test Rule\n",
		LogsourceKey:     logsourceKey,
		ExactHash:        exactHash,
		CanonicalVersion: 1,
		CanonicalJSON:    `{"version":1}`,
		CanonicalText:    "logsource: " + logsourceKey + "\n",
	}
}

// TestSQLiteRuleStorage_SaveAndGet tests the upsert round trip.
func TestSQLiteRuleStorage_SaveAndGet(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())
	ctx := context.Background()

	rule := testRule("rule-1", "windows|process_creation", "hash-1")
	require.NoError(t, storage.SaveRule(ctx, rule))

	got, err := storage.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, rule.Title, got.Title)
	assert.Equal(t, rule.Tags, got.Tags)
	assert.Equal(t, rule.ExactHash, got.ExactHash)
	assert.Equal(t, rule.CanonicalJSON, got.CanonicalJSON)
	assert.False(t, got.CreatedAt.IsZero())

	// Upsert replaces fields but keeps the row.
	rule.Title = "Renamed"
	require.NoError(t, storage.SaveRule(ctx, rule))
	got, err = storage.GetRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	count, err := storage.CountRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

// TestSQLiteRuleStorage_GetMissing tests the ErrNotFound contract.
func TestSQLiteRuleStorage_GetMissing(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())

	_, err := storage.GetRule(context.Background(), "absent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestSQLiteRuleStorage_GetRuleByExactHash tests the duplicate short-circuit
// lookup.
func TestSQLiteRuleStorage_GetRuleByExactHash(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, storage.SaveRule(ctx, testRule("rule-1", "windows|process_creation", "hash-abc")))

	got, err := storage.GetRuleByExactHash(ctx, "hash-abc")
	require.NoError(t, err)
	assert.Equal(t, "rule-1", got.ID)

	_, err = storage.GetRuleByExactHash(ctx, "hash-missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Empty hashes never match anything, including rows that have not been
	// canonicalized yet.
	_, err = storage.GetRuleByExactHash(ctx, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestSQLiteRuleStorage_CandidatesByLogsource tests gated retrieval with the
// fail-closed invalid-key contract.
func TestSQLiteRuleStorage_CandidatesByLogsource(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, storage.SaveRule(ctx, testRule("rule-1", "windows|process_creation", "h1")))
	require.NoError(t, storage.SaveRule(ctx, testRule("rule-2", "windows|process_creation", "h2")))
	require.NoError(t, storage.SaveRule(ctx, testRule("rule-3", "linux|process_creation", "h3")))

	candidates, err := storage.CandidatesByLogsource(ctx, "windows|process_creation", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "rule-1", candidates[0].ID)
	assert.Equal(t, "rule-2", candidates[1].ID)

	// topK cap.
	candidates, err = storage.CandidatesByLogsource(ctx, "windows|process_creation", 1)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	// Invalid keys fail closed instead of scanning the corpus: an empty
	// candidate list, never an error.
	for _, key := range []string{"", "|"} {
		candidates, err = storage.CandidatesByLogsource(ctx, key, 10)
		require.NoError(t, err, "key %q must fail closed without error", key)
		assert.Empty(t, candidates, "key %q must return no candidates", key)
	}
}

// TestSQLiteRuleStorage_ListRuleIDs tests resumable id pagination.
func TestSQLiteRuleStorage_ListRuleIDs(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, storage.SaveRule(ctx, testRule(id, "windows|process_creation", "hash-"+id)))
	}

	ids, err := storage.ListRuleIDs(ctx, "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids, err = storage.ListRuleIDs(ctx, "c", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids)
}

// TestSQLiteRuleStorage_Delete tests deletion and its ErrNotFound case.
func TestSQLiteRuleStorage_Delete(t *testing.T) {
	storage := NewSQLiteRuleStorage(setupTestSQLite(t), zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, storage.SaveRule(ctx, testRule("rule-1", "windows|process_creation", "h1")))
	require.NoError(t, storage.DeleteRule(ctx, "rule-1"))

	_, err := storage.GetRule(ctx, "rule-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(storage.DeleteRule(ctx, "rule-1"), ErrNotFound))
}

// TestNewSQLite_RejectsTraversal tests database path validation.
func TestNewSQLite_RejectsTraversal(t *testing.T) {
	_, err := NewSQLite("../../etc/passwd.db", zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = NewSQLite("", zap.NewNop().Sugar())
	assert.Error(t, err)
}
