package middlewares

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeStageName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tests", SanitizeStageName("tests"))
	assert.Equal(t, "db_reset", SanitizeStageName("db/reset"))
	assert.NotContains(t, SanitizeStageName("a:b|c"), ":")
	assert.Equal(t, "unnamed", SanitizeStageName(""))
}

func TestSanitizeFilenameLength(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 300) + ".log"
	safe := SanitizeFilename(long)
	assert.LessOrEqual(t, len(safe), 255)
	assert.True(t, strings.HasSuffix(safe, ".log"))
}

func TestValidateSaveFolder(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultSanitizer.ValidateSaveFolder("logs"))
	assert.Error(t, DefaultSanitizer.ValidateSaveFolder("../escape"))
	assert.Error(t, DefaultSanitizer.ValidateSaveFolder("/etc/finbench"))
}
