package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	prefixLen = 15
)

/* Public */

// Init configures the global logrus logger. verbosity 0 is info, 1 is debug and anything
// higher is trace. An empty logFile disables the rotating file hook.
func Init(verbosity int, logFile string) error {
	useColour := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	logLevel := logrus.InfoLevel
	switch {
	case verbosity == 1:
		logLevel = logrus.DebugLevel
	case verbosity > 1:
		logLevel = logrus.TraceLevel
	}

	logrus.SetLevel(logLevel)
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(newFormatter(useColour))

	if logFile == "" {
		return nil
	}

	hook, err := NewRotateFileHook(RotateFileConfig{
		Filename:   logFile,
		MaxSize:    5,
		MaxBackups: 10,
		Level:      logLevel,
		Formatter:  newFormatter(false),
	})
	if err != nil {
		return fmt.Errorf("initialise rotate file hook: %w", err)
	}

	logrus.AddHook(hook)
	return nil
}

// GetLogger returns an entry tagged with prefix, used as the component name in output.
func GetLogger(prefix string) *logrus.Entry {
	if len(prefix) > prefixLen {
		prefixLen = len(prefix)
	}

	return logrus.WithFields(logrus.Fields{"prefix": fmt.Sprintf("%-*s", prefixLen, strings.TrimSpace(prefix))})
}

/* Private */

func newFormatter(colour bool) *prefixed.TextFormatter {
	return &prefixed.TextFormatter{
		ForceColors:      colour,
		DisableColors:    !colour,
		ForceFormatting:  true,
		DisableTimestamp: false,
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05",
		DisableSorting:   false,
		QuoteEmptyFields: true,
	}
}
