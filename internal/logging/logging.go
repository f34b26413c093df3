package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup configures the standard logrus logger. It is called once by the CLI
// before any command runs.
func Setup(out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(format) {
	case "", FormatText:
		formatter = &logrus.TextFormatter{
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
		}
	case FormatJSON:
		formatter = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", format, FormatText, FormatJSON)
	}

	logrus.SetOutput(out)
	logrus.SetLevel(lvl)
	logrus.SetFormatter(formatter)
	return nil
}
