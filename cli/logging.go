package cli

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ApplyLogLevel sets the global logging level if level is valid. The config
// accepts the core.Logger level names notice and critical, which logrus does
// not parse; they map to the nearest logrus level.
func ApplyLogLevel(level string) {
	if level == "" {
		return
	}

	var lvl logrus.Level
	switch strings.ToLower(level) {
	case "notice":
		lvl = logrus.InfoLevel
	case "critical":
		lvl = logrus.ErrorLevel
	default:
		var err error
		lvl, err = logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			return
		}
	}
	logrus.SetLevel(lvl)
}
