package canonical

import (
	"regexp"
	"strings"
	"testing"
)

// TestNewFingerprint verifies that the fingerprint carries a 64-hex hash, the
// canonical text and the logsource gate key.
func TestNewFingerprint(t *testing.T) {
	rule := mustCanonicalize(t, testLogsource, map[string]interface{}{
		"selection": map[string]interface{}{"Image|endswith": "\\cmd.exe"},
		"condition": "selection",
	})

	fp, err := NewFingerprint(rule)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}

	if matched, _ := regexp.MatchString(`^[0-9a-f]{64}$`, fp.ExactHash); !matched {
		t.Errorf("expected 64 lowercase hex chars, got %q", fp.ExactHash)
	}
	if fp.LogsourceKey != "windows|process_creation" {
		t.Errorf("unexpected logsource key %q", fp.LogsourceKey)
	}
	if !strings.HasPrefix(fp.CanonicalText, "logsource: windows|process_creation\n") {
		t.Errorf("unexpected canonical text:\n%s", fp.CanonicalText)
	}
	if !strings.Contains(fp.CanonicalText, "atom: Image|endswith:\\cmd.exe") {
		t.Errorf("expected atom line, got:\n%s", fp.CanonicalText)
	}
}

// TestExactHash_SensitiveToValue verifies that changing a single predicate
// value changes the hash.
func TestExactHash_SensitiveToValue(t *testing.T) {
	base := mustCanonicalize(t, testLogsource, map[string]interface{}{
		"selection": map[string]interface{}{"Image|endswith": "\\cmd.exe"},
		"condition": "selection",
	})
	changed := mustCanonicalize(t, testLogsource, map[string]interface{}{
		"selection": map[string]interface{}{"Image|endswith": "\\powershell.exe"},
		"condition": "selection",
	})

	if mustHash(t, base) == mustHash(t, changed) {
		t.Error("expected different hashes for different values")
	}
}

// TestExactHash_SensitiveToLogsource verifies that logsource participates in
// the hash.
func TestExactHash_SensitiveToLogsource(t *testing.T) {
	detection := map[string]interface{}{
		"selection": map[string]interface{}{"Image": "x"},
		"condition": "selection",
	}

	windows := mustCanonicalize(t, testLogsource, detection)
	linux := mustCanonicalize(t, map[string]interface{}{
		"product": "linux", "category": "process_creation",
	}, detection)

	if mustHash(t, windows) == mustHash(t, linux) {
		t.Error("expected different hashes for different logsources")
	}
}
