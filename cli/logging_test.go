package cli

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestApplyLogLevel(t *testing.T) {
	// Mutates the global logrus level, so no t.Parallel.
	prev := logrus.GetLevel()
	defer logrus.SetLevel(prev)

	cases := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		// core.Logger level names the config validator accepts but logrus
		// does not parse.
		{"notice", logrus.InfoLevel},
		{"critical", logrus.ErrorLevel},
		{"NOTICE", logrus.InfoLevel},
	}
	for _, tc := range cases {
		ApplyLogLevel(tc.level)
		assert.Equal(t, tc.want, logrus.GetLevel(), "level %q", tc.level)
	}

	logrus.SetLevel(logrus.WarnLevel)
	ApplyLogLevel("not-a-level")
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	ApplyLogLevel("")
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())
}
