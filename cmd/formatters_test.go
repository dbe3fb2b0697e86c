package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "a-very-...", truncate("a-very-long-identifier", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "deadbeef", shortHash("deadbeef"))
	assert.Equal(t, "0123456789abcdef...", shortHash("0123456789abcdef0123456789abcdef"))
}

func TestValidateFilePath(t *testing.T) {
	assert.NoError(t, validateFilePath("rules/cmd.yml"))
	assert.NoError(t, validateFilePath("/abs/path/rule.yml"))
	assert.Error(t, validateFilePath("../etc/passwd"))
	assert.Error(t, validateFilePath("rules/../../secret.yml"))
}
